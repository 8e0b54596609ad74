// Package filter implements the inline packet-filter chain applied during
// forwarding: an ordered, named list of per-frame transforms producing
// PASS/DROP decisions, plus the five filter variants from spec.md §4.2.
package filter

import (
	"errors"
	"math/rand"
	"sync"
)

var (
	ErrExists   = errors.New("filter: name already exists in chain")
	ErrNotFound = errors.New("filter: no such name in chain")
)

// Decision is the outcome of running one frame through a Filter.
type Decision int

const (
	Pass Decision = iota
	Drop
)

// Filter is the capability trait every filter type implements: Apply
// mutates buf in place (for corrupt) and returns a PASS/DROP decision;
// Close releases any private state.
type Filter interface {
	Name() string
	Apply(buf []byte) Decision
	Close() error
}

type node struct {
	f Filter
}

// Chain is the ordered list of filters attached to a bridge
// or IOL port. Traversal happens in insertion order; the first DROP
// short-circuits. Names are unique within a chain; deletion preserves the
// order of the remaining entries.
type Chain struct {
	mu    sync.Mutex
	nodes []node
}

// NewChain returns an empty filter chain.
func NewChain() *Chain {
	return &Chain{}
}

// Add appends f to the end of the chain. Fails if a filter with the same
// name is already present.
func (c *Chain) Add(f Filter) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range c.nodes {
		if n.f.Name() == f.Name() {
			return ErrExists
		}
	}
	c.nodes = append(c.nodes, node{f: f})
	return nil
}

// Delete removes the named filter, preserving the order of the rest.
func (c *Chain) Delete(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.nodes {
		if n.f.Name() == name {
			n.f.Close()
			c.nodes = append(c.nodes[:i], c.nodes[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// Reset destroys every filter in the chain and empties it.
func (c *Chain) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range c.nodes {
		n.f.Close()
	}
	c.nodes = nil
}

// Run walks the chain in insertion order; the first DROP short-circuits
// and Run returns Drop immediately.
func (c *Chain) Run(buf []byte) Decision {
	c.mu.Lock()
	nodes := c.nodes
	c.mu.Unlock()
	for _, n := range nodes {
		if n.f.Apply(buf) == Drop {
			return Drop
		}
	}
	return Pass
}

// Names returns the filter names in chain order, for "show"-style
// diagnostics.
func (c *Chain) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, len(c.nodes))
	for i, n := range c.nodes {
		names[i] = n.f.Name()
	}
	return names
}

// rng is the package-level seedable source backing packet_loss, corrupt,
// and delay's jitter. Per the resolved Open Question in SPEC_FULL.md
// ("Packet-loss / corrupt / delay randomness"), this seeds deterministically
// by default so tests are reproducible, with a runtime override via Seed.
var rngMu sync.Mutex
var rngSrc = rand.New(rand.NewSource(1))

// Seed overrides the package-level PRNG seed, for test setup or any caller
// that wants a different reproducible sequence; production defaults to
// the fixed seed above rather than time-based seeding so that repeated
// fuzz/soak runs of the same scenario are bit-for-bit reproducible.
func Seed(seed int64) {
	rngMu.Lock()
	defer rngMu.Unlock()
	rngSrc = rand.New(rand.NewSource(seed))
}

func randFloat64() float64 {
	rngMu.Lock()
	defer rngMu.Unlock()
	return rngSrc.Float64()
}

func randIntn(n int) int {
	rngMu.Lock()
	defer rngMu.Unlock()
	return rngSrc.Intn(n)
}
