//go:build darwin

package nio

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

const vmnetKextName = "com.vmware.kext.vmnet"

// VmnetNIO talks to the VMware Fusion vmnet kernel extension over a
// PF_SYSTEM/SYSPROTO_CONTROL socket, per spec.md §4.1: resolve the kext's
// control id via CTLIOCGINFO, then connect with the parsed hub number as
// the control unit. ABI negotiation and IFF_UP|IFF_PROMISC are handled by
// the kext itself at connect time for this control family; nothing further
// is required on the client side to start exchanging frames.
type VmnetNIO struct {
	Counters
	fd  int
	hub int
}

// NewVmnet opens a control socket against com.vmware.kext.vmnet and binds
// to the hub number parsed out of a name like "vmnet3".
func NewVmnet(name string) (*VmnetNIO, error) {
	hub, err := parseHubNumber(name)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_SYSTEM, unix.SOCK_DGRAM, unix.SYSPROTO_CONTROL)
	if err != nil {
		return nil, err
	}

	info := &unix.CtlInfo{}
	copy(info.Name[:], vmnetKextName)
	if err := unix.IoctlCtlInfo(fd, info); err != nil {
		unix.Close(fd)
		return nil, err
	}

	sa := &unix.SockaddrCtl{ID: info.Id, Unit: uint32(hub)}
	if err := unix.Connect(fd, sa); err != nil {
		unix.Close(fd)
		return nil, err
	}

	tv := unix.NsecToTimeval(RecvPollInterval.Nanoseconds())
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		unix.Close(fd)
		return nil, err
	}

	return &VmnetNIO{fd: fd, hub: hub}, nil
}

func parseHubNumber(name string) (int, error) {
	n := strings.TrimPrefix(name, "vmnet")
	v, err := strconv.Atoi(n)
	if err != nil {
		return 0, fmt.Errorf("nio: invalid vmnet interface name %q: %w", name, err)
	}
	return v, nil
}

func (v *VmnetNIO) Send(buf []byte) (int, error) {
	n, err := unix.Write(v.fd, buf)
	if err == nil {
		v.addOut(n)
	}
	return n, err
}

// Recv relies on the SO_RCVTIMEO set in NewVmnet so a quiet hub returns
// ErrTimeout instead of blocking forever.
func (v *VmnetNIO) Recv(buf []byte) (int, error) {
	n, err := unix.Read(v.fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, ErrTimeout
		}
		return 0, err
	}
	v.addIn(n)
	return n, nil
}

func (v *VmnetNIO) Close() error {
	return unix.Close(v.fd)
}

func (v *VmnetNIO) Stats() Snapshot            { return v.Counters.Snapshot() }
func (v *VmnetNIO) ResetStats()                { v.Counters.Reset() }
func (v *VmnetNIO) SetBPFFilter(string) error  { return ErrUnsupported }

func (v *VmnetNIO) String() string {
	return fmt.Sprintf("fusion_vmnet:vmnet%d", v.hub)
}
