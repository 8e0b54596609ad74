//go:build linux

package nio

import (
	"fmt"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	ifNameSize = 16

	iffTap     = 0x0002
	iffNoPI    = 0x1000
	iffVnetHdr = 0x4000
)

// ifreqFlags mirrors struct ifreq for the TUNSETIFF ioctl: a 16-byte name
// field followed by a 2-byte flags field, padded to the kernel's expected
// size.
type ifreqFlags struct {
	name  [ifNameSize]byte
	flags uint16
	_     [22]byte
}

// TapNIO wraps a Linux /dev/net/tun device opened in TAP mode. It holds
// the raw fd (rather than an *os.File) so that Recv can poll with a short
// timeout and cooperatively observe cancellation without closing the
// device, per spec.md §5's stop/start requirements.
type TapNIO struct {
	Counters
	fd   int
	name string
}

// NewTap opens /dev/net/tun with IFF_TAP|IFF_NO_PI. If the supplied name
// looks like a path it is opened directly and IFF_VNET_HDR is explicitly
// cleared, matching spec.md §4.1's TAP contract.
func NewTap(name string) (*TapNIO, error) {
	devPath := "/dev/net/tun"
	if strings.HasPrefix(name, "/dev/") {
		devPath = name
	}
	fd, err := unix.Open(devPath, unix.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	var req ifreqFlags
	copy(req.name[:], name)
	req.flags = iffTap | iffNoPI
	req.flags &^= iffVnetHdr

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), unix.TUNSETIFF, uintptr(unsafe.Pointer(&req))); errno != 0 {
		unix.Close(fd)
		return nil, errno
	}

	actualName := strings.TrimRight(string(req.name[:]), "\x00")
	return &TapNIO{fd: fd, name: actualName}, nil
}

func (t *TapNIO) Send(buf []byte) (int, error) {
	n, err := unix.Write(t.fd, buf)
	if err != nil {
		return n, err
	}
	t.addOut(n)
	return n, nil
}

// Recv polls the fd with RecvPollInterval before reading so a quiet
// device returns ErrTimeout instead of blocking forever.
func (t *TapNIO) Recv(buf []byte) (int, error) {
	pfd := []unix.PollFd{{Fd: int32(t.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(pfd, int(RecvPollInterval/1e6))
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrTimeout
	}
	read, err := unix.Read(t.fd, buf)
	if err != nil {
		return 0, err
	}
	t.addIn(read)
	return read, nil
}

func (t *TapNIO) Close() error {
	return unix.Close(t.fd)
}

func (t *TapNIO) Stats() Snapshot            { return t.Counters.Snapshot() }
func (t *TapNIO) ResetStats()                { t.Counters.Reset() }
func (t *TapNIO) SetBPFFilter(string) error  { return ErrUnsupported }

func (t *TapNIO) String() string {
	return fmt.Sprintf("tap:%s", t.name)
}
