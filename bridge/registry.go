package bridge

import (
	"errors"
	"sync"

	"github.com/ubridge/ubridge/capture"
	"github.com/ubridge/ubridge/filter"
	"github.com/ubridge/ubridge/log"
	"github.com/ubridge/ubridge/nio"
)

var (
	ErrExists   = errors.New("bridge: name already exists")
	ErrNotFound = errors.New("bridge: no such bridge")
)

// Registry is the process-wide named set of bridges. Every mutating
// method is serialized on mu, matching spec.md §4.5/§5's single
// process-wide control mutex; the bridge package's own Bridge type has no
// internal lock precisely because all of its mutation happens here.
type Registry struct {
	mu      sync.Mutex
	bridges map[string]*Bridge
	logger  *log.Logger
}

// NewRegistry returns an empty bridge registry. A nil logger is replaced
// with a discard logger, matching the teacher's NewDiscardLogger idiom for
// tests that don't care about log output.
func NewRegistry(logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.NewDiscardLogger()
	}
	return &Registry{bridges: make(map[string]*Bridge), logger: logger}
}

// Create adds a new, empty, not-running bridge. Fails if name exists.
func (r *Registry) Create(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bridges[name]; ok {
		return ErrExists
	}
	r.bridges[name] = newBridge(name, r.logger)
	return nil
}

// Delete halts a running bridge's threads, destroys its NIOs/filters/
// capture, and removes it from the registry.
func (r *Registry) Delete(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bridges[name]
	if !ok {
		return ErrNotFound
	}
	b.destroy()
	delete(r.bridges, name)
	return nil
}

// Start requires both NIO slots occupied and running=false.
func (r *Registry) Start(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bridges[name]
	if !ok {
		return ErrNotFound
	}
	return b.start()
}

// Stop requires running=true.
func (r *Registry) Stop(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bridges[name]
	if !ok {
		return ErrNotFound
	}
	return b.stop()
}

// Rename requires new to be unused.
func (r *Registry) Rename(oldName, newName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bridges[oldName]
	if !ok {
		return ErrNotFound
	}
	if _, ok := r.bridges[newName]; ok {
		return ErrExists
	}
	delete(r.bridges, oldName)
	b.name = newName
	r.bridges[newName] = b
	return nil
}

// Get returns the named bridge for read-only diagnostics (show, list,
// get_stats). The caller must not mutate the returned Bridge.
func (r *Registry) Get(name string) (*Bridge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bridges[name]
	if !ok {
		return nil, ErrNotFound
	}
	return b, nil
}

// List returns every bridge name currently registered.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.bridges))
	for n := range r.bridges {
		names = append(names, n)
	}
	return names
}

// ResetStats zeroes both NIO slots' counters.
func (r *Registry) ResetStats(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bridges[name]
	if !ok {
		return ErrNotFound
	}
	if b.source != nil {
		b.source.ResetStats()
	}
	if b.dest != nil {
		b.dest.ResetStats()
	}
	return nil
}

// Reset destroys every bridge in the registry and empties it, backing the
// hypervisor module's `reset` command.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bridges {
		b.destroy()
	}
	r.bridges = make(map[string]*Bridge)
}

// --- add_nio_<kind> operations ---

func (r *Registry) AddNIOUDP(name string, localPort int, remoteHost string, remotePort int) error {
	n, err := nio.NewUDP(localPort, remoteHost, remotePort)
	if err != nil {
		return err
	}
	return r.attachNIO(name, n)
}

func (r *Registry) AddNIOUnix(name, localPath, remotePath string) error {
	n, err := nio.NewUnix(localPath, remotePath)
	if err != nil {
		return err
	}
	return r.attachNIO(name, n)
}

func (r *Registry) AddNIOTap(name, device string) error {
	n, err := nio.NewTap(device)
	if err != nil {
		return err
	}
	return r.attachNIO(name, n)
}

func (r *Registry) AddNIOEthernet(name, device string) error {
	n, err := nio.NewEthernet(device)
	if err != nil {
		return err
	}
	return r.attachNIO(name, n)
}

func (r *Registry) AddNIOLinuxRaw(name, device string) error {
	n, err := nio.NewLinuxRaw(device)
	if err != nil {
		return err
	}
	return r.attachNIO(name, n)
}

func (r *Registry) AddNIOFusionVmnet(name, device string) error {
	n, err := nio.NewFusionVmnet(device)
	if err != nil {
		return err
	}
	return r.attachNIO(name, n)
}

func (r *Registry) attachNIO(name string, n nio.NIO) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bridges[name]
	if !ok {
		n.Close()
		return ErrNotFound
	}
	if err := b.addNIO(n); err != nil {
		n.Close()
		return err
	}
	return nil
}

// DeleteNIOUDP matches a UDP NIO in either slot by (local_port,
// remote_port, remote_host) — all three must agree, per the resolved
// Open Question on delete_nio_udp matching — and is only allowed while
// the bridge is stopped.
func (r *Registry) DeleteNIOUDP(name string, localPort int, remoteHost string, remotePort int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bridges[name]
	if !ok {
		return ErrNotFound
	}
	if b.running {
		return ErrNotStopped
	}
	if u, ok := b.source.(*nio.UDPNIO); ok && u.Matches(localPort, remoteHost, remotePort) {
		u.Close()
		b.source = nil
		return nil
	}
	if u, ok := b.dest.(*nio.UDPNIO); ok && u.Matches(localPort, remoteHost, remotePort) {
		u.Close()
		b.dest = nil
		return nil
	}
	return ErrNotFound
}

// --- capture ---

func (r *Registry) StartCapture(name, file, linkType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bridges[name]
	if !ok {
		return ErrNotFound
	}
	if b.capture != nil {
		return ErrCaptureExists
	}
	sink, err := capture.New(file, linkType)
	if err != nil {
		return err
	}
	b.capture = sink
	return nil
}

func (r *Registry) StopCapture(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bridges[name]
	if !ok {
		return ErrNotFound
	}
	if b.capture == nil {
		return ErrNoCapture
	}
	err := b.capture.Close()
	b.capture = nil
	return err
}

// --- packet filters ---

func (r *Registry) AddPacketFilter(name string, f filter.Filter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bridges[name]
	if !ok {
		return ErrNotFound
	}
	return b.filters.Add(f)
}

func (r *Registry) DeletePacketFilter(name, filterName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bridges[name]
	if !ok {
		return ErrNotFound
	}
	return b.filters.Delete(filterName)
}

func (r *Registry) ResetPacketFilters(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bridges[name]
	if !ok {
		return ErrNotFound
	}
	b.filters.Reset()
	return nil
}

// SetPcapFilter compiles and installs expr on whichever slot holds an
// Ethernet-pcap NIO; an empty expr clears the filter.
func (r *Registry) SetPcapFilter(name, expr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bridges[name]
	if !ok {
		return ErrNotFound
	}
	if e, ok := b.source.(*nio.EthernetNIO); ok {
		return e.SetBPFFilter(expr)
	}
	if e, ok := b.dest.(*nio.EthernetNIO); ok {
		return e.SetBPFFilter(expr)
	}
	return ErrNoEthernet
}
