package nio

import (
	"fmt"
	"net"
	"os"
	"time"
)

// UnixNIO is bound to a local UNIX datagram socket path and sends to a
// remote path via sendto, matching the nio_unix.c "stat-then-unlink-then-
// bind" idiom: any pre-existing file at the local path is unlinked first.
type UnixNIO struct {
	Counters
	conn         *net.UnixConn
	localPath    string
	remotePath   string
	remoteAddr   *net.UnixAddr
}

func NewUnix(localPath, remotePath string) (*UnixNIO, error) {
	_ = os.Remove(localPath)
	laddr := &net.UnixAddr{Name: localPath, Net: "unixgram"}
	conn, err := net.ListenUnixgram("unixgram", laddr)
	if err != nil {
		return nil, err
	}
	raddr := &net.UnixAddr{Name: remotePath, Net: "unixgram"}
	return &UnixNIO{
		conn:       conn,
		localPath:  localPath,
		remotePath: remotePath,
		remoteAddr: raddr,
	}, nil
}

func (u *UnixNIO) Send(buf []byte) (int, error) {
	n, err := u.conn.WriteToUnix(buf, u.remoteAddr)
	if err == nil {
		u.addOut(n)
	}
	return n, err
}

func (u *UnixNIO) Recv(buf []byte) (int, error) {
	_ = u.conn.SetReadDeadline(time.Now().Add(RecvPollInterval))
	n, _, err := u.conn.ReadFromUnix(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, ErrTimeout
		}
		return 0, err
	}
	u.addIn(n)
	return n, nil
}

func (u *UnixNIO) Close() error {
	err := u.conn.Close()
	_ = os.Remove(u.localPath)
	return err
}

func (u *UnixNIO) Stats() Snapshot    { return u.Counters.Snapshot() }
func (u *UnixNIO) ResetStats()        { u.Counters.Reset() }
func (u *UnixNIO) SetBPFFilter(string) error { return ErrUnsupported }

func (u *UnixNIO) String() string {
	return fmt.Sprintf("unix:%s<->%s", u.localPath, u.remotePath)
}
