package bridge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ubridge/ubridge/filter"
)

func TestDeleteNIOUDPRequiresStopped(t *testing.T) {
	r := NewRegistry(nil)
	mustCreate(t, r, "br0")
	if err := r.AddNIOUDP("br0", 32000, "127.0.0.1", 32001); err != nil {
		t.Fatalf("AddNIOUDP A: %v", err)
	}
	if err := r.AddNIOUDP("br0", 32001, "127.0.0.1", 32000); err != nil {
		t.Fatalf("AddNIOUDP B: %v", err)
	}
	if err := r.Start("br0"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.DeleteNIOUDP("br0", 32000, "127.0.0.1", 32001); err != ErrNotStopped {
		t.Fatalf("expected ErrNotStopped while running, got %v", err)
	}
	if err := r.Stop("br0"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := r.DeleteNIOUDP("br0", 32000, "127.0.0.1", 32001); err != nil {
		t.Fatalf("DeleteNIOUDP: %v", err)
	}
	b, err := r.Get("br0")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if b.Source() != nil {
		t.Fatalf("expected source slot cleared after DeleteNIOUDP")
	}
	// A mismatched host must not match, reproducing the corrected (not the
	// original buggy) delete_nio_udp predicate.
	if err := r.DeleteNIOUDP("br0", 32001, "10.0.0.9", 32000); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for host mismatch, got %v", err)
	}

	if err := r.Delete("br0"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestPacketFilterLifecycle(t *testing.T) {
	r := NewRegistry(nil)
	mustCreate(t, r, "br0")

	if err := r.AddPacketFilter("br0", filter.NewFrequencyDrop("fd", 3)); err != nil {
		t.Fatalf("AddPacketFilter: %v", err)
	}
	if err := r.AddPacketFilter("br0", filter.NewFrequencyDrop("fd", 5)); err != filter.ErrExists {
		t.Fatalf("expected ErrExists on duplicate filter name, got %v", err)
	}
	if err := r.DeletePacketFilter("br0", "fd"); err != nil {
		t.Fatalf("DeletePacketFilter: %v", err)
	}
	if err := r.DeletePacketFilter("br0", "fd"); err != filter.ErrNotFound {
		t.Fatalf("expected ErrNotFound on repeat delete, got %v", err)
	}

	if err := r.AddPacketFilter("br0", filter.NewFrequencyDrop("fd", 3)); err != nil {
		t.Fatalf("AddPacketFilter re-add: %v", err)
	}
	if err := r.ResetPacketFilters("br0"); err != nil {
		t.Fatalf("ResetPacketFilters: %v", err)
	}
	b, err := r.Get("br0")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if names := b.Filters().Names(); len(names) != 0 {
		t.Fatalf("expected empty filter chain after reset, got %v", names)
	}

	if err := r.Delete("br0"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestCaptureLifecycle(t *testing.T) {
	r := NewRegistry(nil)
	mustCreate(t, r, "br0")

	dir := t.TempDir()
	path := filepath.Join(dir, "capture.pcap")

	if err := r.StartCapture("br0", path, "ethernet"); err != nil {
		t.Fatalf("StartCapture: %v", err)
	}
	if err := r.StartCapture("br0", path, "ethernet"); err != ErrCaptureExists {
		t.Fatalf("expected ErrCaptureExists, got %v", err)
	}
	if err := r.StopCapture("br0"); err != nil {
		t.Fatalf("StopCapture: %v", err)
	}
	if err := r.StopCapture("br0"); err != ErrNoCapture {
		t.Fatalf("expected ErrNoCapture, got %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected capture file to exist: %v", err)
	}

	if err := r.Delete("br0"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestSetPcapFilterRequiresEthernetNIO(t *testing.T) {
	r := NewRegistry(nil)
	mustCreate(t, r, "br0")
	if err := r.AddNIOUDP("br0", 32100, "127.0.0.1", 32101); err != nil {
		t.Fatalf("AddNIOUDP: %v", err)
	}
	if err := r.SetPcapFilter("br0", "tcp port 80"); err != ErrNoEthernet {
		t.Fatalf("expected ErrNoEthernet for a bridge with no Ethernet NIO, got %v", err)
	}
	if err := r.Delete("br0"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestResetDestroysEverything(t *testing.T) {
	r := NewRegistry(nil)
	mustCreate(t, r, "a")
	mustCreate(t, r, "b")
	if err := r.AddNIOUDP("a", 32200, "127.0.0.1", 32201); err != nil {
		t.Fatalf("AddNIOUDP: %v", err)
	}

	r.Reset()

	if names := r.List(); len(names) != 0 {
		t.Fatalf("expected empty registry after Reset, got %v", names)
	}
}
