package bridge

import (
	"testing"
)

func TestRegistryCreateDeleteCycle(t *testing.T) {
	r := NewRegistry(nil)

	if err := r.Create("br0"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := r.Create("br0"); err != ErrExists {
		t.Fatalf("expected ErrExists on duplicate create, got %v", err)
	}
	if err := r.Delete("br0"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := r.Delete("br0"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	// A name can be reused once deleted.
	if err := r.Create("br0"); err != nil {
		t.Fatalf("recreate after delete: %v", err)
	}
}

func TestRegistryRenameCollision(t *testing.T) {
	r := NewRegistry(nil)
	mustCreate(t, r, "a")
	mustCreate(t, r, "b")

	if err := r.Rename("a", "b"); err != ErrExists {
		t.Fatalf("expected ErrExists renaming onto existing name, got %v", err)
	}
	if err := r.Rename("a", "c"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if _, err := r.Get("c"); err != nil {
		t.Fatalf("Get(c): %v", err)
	}
	if _, err := r.Get("a"); err != ErrNotFound {
		t.Fatalf("expected old name gone, got %v", err)
	}
}

func TestStartRequiresBothSlots(t *testing.T) {
	r := NewRegistry(nil)
	mustCreate(t, r, "br0")

	if err := r.Start("br0"); err != ErrMissingNIOs {
		t.Fatalf("expected ErrMissingNIOs, got %v", err)
	}

	if err := r.AddNIOUDP("br0", 21000, "127.0.0.1", 21001); err != nil {
		t.Fatalf("AddNIOUDP source: %v", err)
	}
	if err := r.Start("br0"); err != ErrMissingNIOs {
		t.Fatalf("expected ErrMissingNIOs with one slot filled, got %v", err)
	}

	if err := r.AddNIOUDP("br0", 21001, "127.0.0.1", 21000); err != nil {
		t.Fatalf("AddNIOUDP dest: %v", err)
	}
	if err := r.Start("br0"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.Start("br0"); err != ErrAlreadyRun {
		t.Fatalf("expected ErrAlreadyRun, got %v", err)
	}

	if err := r.Delete("br0"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestStopStartCyclesWithoutReAddingNIOs(t *testing.T) {
	r := NewRegistry(nil)
	mustCreate(t, r, "br0")
	if err := r.AddNIOUDP("br0", 21100, "127.0.0.1", 21101); err != nil {
		t.Fatalf("AddNIOUDP source: %v", err)
	}
	if err := r.AddNIOUDP("br0", 21101, "127.0.0.1", 21100); err != nil {
		t.Fatalf("AddNIOUDP dest: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := r.Start("br0"); err != nil {
			t.Fatalf("Start iteration %d: %v", i, err)
		}
		if err := r.Stop("br0"); err != nil {
			t.Fatalf("Stop iteration %d: %v", i, err)
		}
	}

	b, err := r.Get("br0")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if b.Source() == nil || b.Destination() == nil {
		t.Fatalf("expected NIOs to survive stop/start cycling, source=%v dest=%v", b.Source(), b.Destination())
	}

	if err := r.Delete("br0"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func mustCreate(t *testing.T, r *Registry, name string) {
	t.Helper()
	if err := r.Create(name); err != nil {
		t.Fatalf("Create(%q): %v", name, err)
	}
}
