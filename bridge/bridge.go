// Package bridge implements the Bridge object (two NIO slots, a shared
// filter chain, an optional capture sink, and the bidirectional forwarder),
// plus the bridge registry operations that create, start, stop, and tear
// them down, all serialized on the registry's control mutex per spec.md
// §4.4/§4.5.
package bridge

import (
	"context"
	"errors"
	"sync"

	"github.com/ubridge/ubridge/capture"
	"github.com/ubridge/ubridge/filter"
	"github.com/ubridge/ubridge/log"
	"github.com/ubridge/ubridge/nio"
)

var (
	ErrNoSlot       = errors.New("bridge: both NIO slots already occupied")
	ErrNotRunning   = errors.New("bridge: not running")
	ErrAlreadyRun   = errors.New("bridge: already running")
	ErrMissingNIOs  = errors.New("bridge: both NIO slots must be occupied to start")
	ErrCaptureExists = errors.New("bridge: capture already started")
	ErrNoCapture    = errors.New("bridge: no capture running")
	ErrNotStopped   = errors.New("bridge: bridge must be stopped for this operation")
	ErrNoEthernet   = errors.New("bridge: neither slot holds an Ethernet-pcap NIO")
)

// Bridge is a named pair of NIO slots plus the shared state the forwarder
// and control plane both touch. All mutation happens through Registry
// methods, which hold the single process-wide control mutex; Bridge itself
// has no internal lock, matching spec.md §4.5's "mutations only happen
// under the control mutex" rule.
type Bridge struct {
	name    string
	source  nio.NIO
	dest    nio.NIO
	running bool
	capture *capture.Sink
	filters *filter.Chain

	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *log.Logger
}

func newBridge(name string, logger *log.Logger) *Bridge {
	if logger == nil {
		logger = log.NewDiscardLogger()
	}
	return &Bridge{
		name:    name,
		filters: filter.NewChain(),
		logger:  logger,
	}
}

func (b *Bridge) Name() string { return b.name }

func (b *Bridge) Running() bool { return b.running }

func (b *Bridge) Source() nio.NIO      { return b.source }
func (b *Bridge) Destination() nio.NIO { return b.dest }

func (b *Bridge) Filters() *filter.Chain { return b.filters }

// addNIO fills the first empty slot (source then destination), per
// spec.md §4.5's add_nio_<kind> contract.
func (b *Bridge) addNIO(n nio.NIO) error {
	if b.source == nil {
		b.source = n
		return nil
	}
	if b.dest == nil {
		b.dest = n
		return nil
	}
	return ErrNoSlot
}

// start spawns the source and destination forwarder goroutines. Requires
// both slots occupied and the bridge not already running.
func (b *Bridge) start() error {
	if b.running {
		return ErrAlreadyRun
	}
	if b.source == nil || b.dest == nil {
		return ErrMissingNIOs
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.wg.Add(2)
	go b.forward(ctx, b.source, b.dest)
	go b.forward(ctx, b.dest, b.source)
	b.running = true
	return nil
}

// stop cancels and joins both forwarder goroutines. It does not close the
// NIOs: every variant's Recv bounds its blocking wait to
// nio.RecvPollInterval and returns nio.ErrTimeout, so each forwarder
// goroutine observes ctx.Done() within one poll interval without needing
// its descriptor torn down — which matters because stop/start must be
// able to cycle a bridge without re-issuing add_nio_* (spec.md §8).
func (b *Bridge) stop() error {
	if !b.running {
		return ErrNotRunning
	}
	b.cancel()
	b.wg.Wait()
	b.running = false
	return nil
}

// destroy stops the bridge (if running) and releases every owned
// resource: NIOs, filter chain, capture sink, in reverse order of
// construction per spec.md §5.
func (b *Bridge) destroy() {
	if b.running {
		b.stop()
	}
	if b.capture != nil {
		b.capture.Close()
		b.capture = nil
	}
	if b.dest != nil {
		b.dest.Close()
		b.dest = nil
	}
	if b.source != nil {
		b.source.Close()
		b.source = nil
	}
	b.filters.Reset()
}
