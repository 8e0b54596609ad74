//go:build linux

package platform

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ethtool ioctl constants; the kernel ABI for SIOCETHTOOL is a fixed,
// cmd-tagged struct that golang.org/x/sys/unix doesn't expose as Go types.
const (
	siocEthtool    = 0x8946
	ethtoolSRxCsum = 0x00000015
	ethtoolSTxCsum = 0x00000017
)

// ethtoolValue mirrors struct ethtool_value: a command tag followed by a
// single on/off data word.
type ethtoolValue struct {
	Cmd  uint32
	Data uint32
}

// ifreqData mirrors the portion of struct ifreq the ethtool ioctl uses: a
// 16-byte interface name followed by a pointer to the command payload.
type ifreqData struct {
	name [unix.IFNAMSIZ]byte
	data unsafe.Pointer
	_    [16]byte // pad ifr_ifru to the kernel's expected union size
}

// EthtoolChecksumDisabler implements ChecksumDisabler with SIOCETHTOOL
// ioctls on a throwaway AF_INET socket, the standard way ethtool itself
// flips these offload flags.
type EthtoolChecksumDisabler struct{}

func NewEthtoolChecksumDisabler() *EthtoolChecksumDisabler { return &EthtoolChecksumDisabler{} }

// DisableChecksumOffload clears rx-checksumming and tx-checksumming on
// ifName, needed so frames crossing a veth into a namespace arrive with a
// real, verifiable checksum instead of an offload placeholder.
func (d *EthtoolChecksumDisabler) DisableChecksumOffload(ifName string) error {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return fmt.Errorf("platform: open control socket: %w", err)
	}
	defer unix.Close(fd)

	if err := setEthtoolFlag(fd, ifName, ethtoolSRxCsum); err != nil {
		return fmt.Errorf("platform: disable rx checksum offload on %s: %w", ifName, err)
	}
	if err := setEthtoolFlag(fd, ifName, ethtoolSTxCsum); err != nil {
		return fmt.Errorf("platform: disable tx checksum offload on %s: %w", ifName, err)
	}
	return nil
}

func setEthtoolFlag(fd int, ifName string, cmd uint32) error {
	ev := ethtoolValue{Cmd: cmd, Data: 0}
	var req ifreqData
	copy(req.name[:], ifName)
	req.data = unsafe.Pointer(&ev)

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), siocEthtool, uintptr(unsafe.Pointer(&req))); errno != 0 {
		return errno
	}
	return nil
}
