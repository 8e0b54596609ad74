package nio

import (
	"fmt"
	"net"
	"time"
)

// UDPNIO binds a local UDP port and connects to a remote host:port, so that
// Send is connected-mode and Recv only ever sees datagrams from the
// connected peer (the kernel filters ingress).
type UDPNIO struct {
	Counters
	conn       *net.UDPConn
	localPort  int
	remoteHost string
	remotePort int
}

// NewUDP resolves every candidate local/remote address pairing implied by
// localPort/remoteHost/remotePort and binds+connects the first one that
// succeeds, matching the teacher's dial-retry shape in
// processors.Forwarder.newConnection generalized to a bind-then-connect
// UDP socket instead of a plain dial.
func NewUDP(localPort int, remoteHost string, remotePort int) (*UDPNIO, error) {
	remoteAddrs, err := net.LookupHost(remoteHost)
	if err != nil || len(remoteAddrs) == 0 {
		// allow literal IPs to pass straight through
		remoteAddrs = []string{remoteHost}
	}

	var lastErr error
	for _, ra := range remoteAddrs {
		raddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", ra, remotePort))
		if err != nil {
			lastErr = err
			continue
		}
		laddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf(":%d", localPort))
		if err != nil {
			lastErr = err
			continue
		}
		conn, err := net.DialUDP("udp", laddr, raddr)
		if err != nil {
			lastErr = err
			continue
		}
		return &UDPNIO{
			conn:       conn,
			localPort:  localPort,
			remoteHost: remoteHost,
			remotePort: remotePort,
		}, nil
	}
	if lastErr == nil {
		lastErr = ErrNoCandidates
	}
	return nil, lastErr
}

func (u *UDPNIO) Send(buf []byte) (int, error) {
	n, err := u.conn.Write(buf)
	if err == nil {
		u.addOut(n)
	}
	return n, err
}

// Recv applies the shared RecvPollInterval as a read deadline so that a
// quiet connection returns ErrTimeout periodically instead of blocking
// forever, letting the forwarder loop observe cancellation.
func (u *UDPNIO) Recv(buf []byte) (int, error) {
	_ = u.conn.SetReadDeadline(time.Now().Add(RecvPollInterval))
	n, err := u.conn.Read(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, ErrTimeout
		}
		return 0, err
	}
	u.addIn(n)
	return n, nil
}

func (u *UDPNIO) Close() error {
	return u.conn.Close()
}

func (u *UDPNIO) Stats() Snapshot    { return u.Counters.Snapshot() }
func (u *UDPNIO) ResetStats()        { u.Counters.Reset() }
func (u *UDPNIO) SetBPFFilter(string) error { return ErrUnsupported }

func (u *UDPNIO) String() string {
	return fmt.Sprintf("udp:%d<->%s:%d", u.localPort, u.remoteHost, u.remotePort)
}

// LocalPort, RemoteHost, RemotePort expose the binding triple used by
// delete_nio_udp's match predicate (spec.md §4.5, and the corrected
// matching semantics from the resolved Open Question in SPEC_FULL.md).
func (u *UDPNIO) LocalPort() int     { return u.localPort }
func (u *UDPNIO) RemoteHost() string { return u.remoteHost }
func (u *UDPNIO) RemotePort() int    { return u.remotePort }

// Matches implements the corrected delete_nio_udp predicate: local_port,
// remote_port, and remote_host must ALL equal the requested values. The
// original C source's host-equality check was `strcmp(...) != -1`, which
// is always true regardless of the actual strings; that bug is not
// reproduced here.
func (u *UDPNIO) Matches(localPort int, remoteHost string, remotePort int) bool {
	return u.localPort == localPort && u.remotePort == remotePort && u.remoteHost == remoteHost
}
