// Package capture implements the thread-safe pcap capture sink: a writer
// of observed frames to a pcap-format file, serialized by its own mutex
// independent of the bridge control mutex, per spec.md §4.3.
package capture

import (
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

const snaplen = 65535

// linkTypeByName resolves a textual link-type name to a gopacket LinkType,
// defaulting to EN10MB (Ethernet) for the empty string or anything
// unrecognized, per spec.md §4.3.
func linkTypeByName(name string) layers.LinkType {
	switch name {
	case "", "EN10MB":
		return layers.LinkTypeEthernet
	case "LINUX_SLL":
		return layers.LinkTypeLinuxSLL
	case "RAW":
		return layers.LinkTypeRaw
	default:
		return layers.LinkTypeEthernet
	}
}

// Sink wraps a pcapgo.Writer with the mutex that serializes writes from
// both of a bridge's forwarder goroutines (or, for an IOL port, its port
// listener and the bridge listener).
type Sink struct {
	mu     sync.Mutex
	f      *os.File
	w      *pcapgo.Writer
	closed bool
}

// New opens path, writes the pcap file header with the given link-type
// name (falling back to EN10MB) and the fixed 65535 snaplen, and returns a
// ready-to-use Sink.
func New(path, linkTypeName string) (*Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(snaplen, linkTypeByName(linkTypeName)); err != nil {
		f.Close()
		return nil, err
	}
	return &Sink{f: f, w: w}, nil
}

// Write composes a pcap record (timestamp = now, captured length =
// min(len(frame), snaplen), original length = len(frame)) and appends it,
// flushing to disk before releasing the sink mutex.
func (s *Sink) Write(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return os.ErrClosed
	}
	capLen := len(frame)
	if capLen > snaplen {
		capLen = snaplen
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     time.Now(),
		CaptureLength: capLen,
		Length:        len(frame),
	}
	if err := s.w.WritePacket(ci, frame[:capLen]); err != nil {
		return err
	}
	return s.f.Sync()
}

// Close flushes and closes the underlying file. Idempotent.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.f.Close()
}
