package iol

import (
	"errors"
	"sync"

	"github.com/ubridge/ubridge/log"
)

var (
	ErrExists   = errors.New("iol: name already exists")
	ErrNotFound = errors.New("iol: no such bridge")
)

// Registry is the process-wide named set of IOL bridges, serialized on its
// own mutex exactly like bridge.Registry — spec.md §4.5/§5 treats the
// bridge registry and the IOL bridge registry as two independently locked
// maps.
type Registry struct {
	mu      sync.Mutex
	bridges map[string]*Bridge
	logger  *log.Logger
}

func NewRegistry(logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.NewDiscardLogger()
	}
	return &Registry{bridges: make(map[string]*Bridge), logger: logger}
}

// Create implements spec.md §4.6's create(name, application_id).
func (r *Registry) Create(name string, applicationID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bridges[name]; ok {
		return ErrExists
	}
	b, err := create(name, applicationID, r.logger)
	if err != nil {
		return err
	}
	r.bridges[name] = b
	return nil
}

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

func (r *Registry) Start(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bridges[name]
	if !ok {
		return ErrNotFound
	}
	return b.start()
}

func (r *Registry) Stop(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bridges[name]
	if !ok {
		return ErrNotFound
	}
	return b.stop()
}

// AddNIOUDP implements spec.md §4.6's add_nio_udp(name, iol_id, bay, unit,
// local_port, host, remote_port).
func (r *Registry) AddNIOUDP(name string, iolID, bay, unit, localPort int, host string, remotePort int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bridges[name]
	if !ok {
		return ErrNotFound
	}
	return b.addNIOUDP(iolID, bay, unit, localPort, host, remotePort)
}

func (r *Registry) Get(name string) (*Bridge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bridges[name]
	if !ok {
		return nil, ErrNotFound
	}
	return b, nil
}

func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.bridges))
	for n := range r.bridges {
		names = append(names, n)
	}
	return names
}

// Reset destroys every IOL bridge, backing the hypervisor module's
// top-level `reset` command alongside bridge.Registry.Reset.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bridges {
		b.destroy()
	}
	r.bridges = make(map[string]*Bridge)
}
