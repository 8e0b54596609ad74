//go:build darwin || freebsd

package nio

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// TapNIO wraps a BSD/macOS /dev/tap<N> device, opened directly (BSD tap
// devices are already named character devices, unlike Linux's
// /dev/net/tun + TUNSETIFF cloning device). It holds the raw fd so Recv
// can poll with a short timeout, matching the Linux variant's cancellation
// model.
type TapNIO struct {
	Counters
	fd   int
	name string
}

func NewTap(name string) (*TapNIO, error) {
	devPath := name
	if !strings.HasPrefix(name, "/dev/") {
		devPath = "/dev/" + name
	}
	fd, err := unix.Open(devPath, unix.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &TapNIO{fd: fd, name: name}, nil
}

func (t *TapNIO) Send(buf []byte) (int, error) {
	n, err := unix.Write(t.fd, buf)
	if err != nil {
		return n, err
	}
	t.addOut(n)
	return n, nil
}

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
