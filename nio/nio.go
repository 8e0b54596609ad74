// Package nio implements the polymorphic network I/O endpoint abstraction:
// a bidirectional frame transport with send/recv/destroy plus traffic
// counters, realized over UDP, UNIX datagrams, TAP devices, libpcap
// Ethernet capture, Linux raw sockets, and macOS Fusion vmnet.
package nio

import (
	"errors"
	"sync/atomic"
	"time"
)

// MaxFrame is the largest frame the forwarder will ever move in one call.
const MaxFrame = 65535

var (
	ErrClosed       = errors.New("nio: endpoint closed")
	ErrFrameTooBig  = errors.New("nio: frame exceeds MaxFrame")
	ErrNoCandidates = errors.New("nio: no address candidate could be bound")

	// ErrTimeout is returned by Recv when no frame arrived within the
	// variant's internal poll interval. It is a transient condition: the
	// forwarder loop treats it exactly like ECONNREFUSED/ENETDOWN — check
	// for cancellation, then retry — which is how every NIO variant
	// supports cooperative cancellation without POSIX thread cancellation
	// (DESIGN NOTES §9, "portable re-architecture").
	ErrTimeout = errors.New("nio: recv timed out")
)

// RecvPollInterval is the bound the NIO variants use for their internal
// read timeout (the Ethernet-pcap variant instead relies on its shorter
// pcap read timeout), so that a blocked Recv call returns periodically and
// lets the forwarder loop observe cancellation.
const RecvPollInterval = 100 * time.Millisecond

// Counters holds the four monotonic traffic counters shared by every NIO
// variant. Only the owning forwarder goroutine writes to these; readers
// (stats/reset control commands) use atomic loads/stores so that racy
// single-word access under the control mutex never tears.
type Counters struct {
	PacketsIn  atomic.Uint64
	BytesIn    atomic.Uint64
	PacketsOut atomic.Uint64
	BytesOut   atomic.Uint64
}

// Snapshot is a point-in-time copy of a Counters, safe to hand to a caller.
type Snapshot struct {
	PacketsIn  uint64
	BytesIn    uint64
	PacketsOut uint64
	BytesOut   uint64
}

func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		PacketsIn:  c.PacketsIn.Load(),
		BytesIn:    c.BytesIn.Load(),
		PacketsOut: c.PacketsOut.Load(),
		BytesOut:   c.BytesOut.Load(),
	}
}

func (c *Counters) Reset() {
	c.PacketsIn.Store(0)
	c.BytesIn.Store(0)
	c.PacketsOut.Store(0)
	c.BytesOut.Store(0)
}

func (c *Counters) addIn(n int) {
	c.PacketsIn.Add(1)
	c.BytesIn.Add(uint64(n))
}

func (c *Counters) addOut(n int) {
	c.PacketsOut.Add(1)
	c.BytesOut.Add(uint64(n))
}

// NIO is the capability trait every endpoint variant implements: this is
// the Go realization of the "tagged-variant + capability trait" guidance
// in the design notes, replacing a union-of-function-pointer-tables.
type NIO interface {
	// Send transmits buf as one frame and returns the bytes sent, or an
	// error. It never allocates on the hot path.
	Send(buf []byte) (int, error)
	// Recv waits for a frame for at most the variant's poll interval,
	// copies it into buf, and returns its length, truncated to len(buf);
	// if no frame arrives in that time it returns ErrTimeout.
	Recv(buf []byte) (int, error)
	// Close tears down the endpoint: closes descriptors/handles and
	// removes any filesystem object the endpoint created. Idempotent.
	Close() error
	// Stats returns a snapshot of the traffic counters.
	Stats() Snapshot
	// ResetStats zeroes the traffic counters.
	ResetStats()
	// String returns a short human-readable description, e.g.
	// "udp:20000<->127.0.0.1:20001".
	String() string
	// SetBPFFilter installs (or, if expr=="", clears) a BPF expression on
	// the receive path. Only Ethernet-pcap NIOs support this; others
	// return ErrUnsupported.
	SetBPFFilter(expr string) error
}

// ErrUnsupported is returned by operations a particular NIO variant does
// not implement (e.g. SetBPFFilter on a UDP NIO).
var ErrUnsupported = errors.New("nio: operation not supported by this variant")
