package filter

import "testing"

func TestFrequencyDrop(t *testing.T) {
	f := NewFrequencyDrop("drop3", 3)
	var drops int
	for i := 0; i < 9; i++ {
		if f.Apply(nil) == Drop {
			drops++
			if i != 2 && i != 5 && i != 8 {
				t.Fatalf("unexpected drop at index %d", i)
			}
		}
	}
	if drops != 3 {
		t.Fatalf("expected 3 drops out of 9, got %d", drops)
	}
}

func TestFrequencyDropSpecialValues(t *testing.T) {
	allDrop := NewFrequencyDrop("all", -1)
	if allDrop.Apply(nil) != Drop {
		t.Fatal("n=-1 must drop everything")
	}
	allPass := NewFrequencyDrop("none", 0)
	if allPass.Apply(nil) != Pass {
		t.Fatal("n=0 must pass everything")
	}
}

func TestChainOrderingAndShortCircuit(t *testing.T) {
	c := NewChain()
	var called []string
	track := func(name string, d Decision) Filter {
		return trackingFilter{name: name, d: d, log: &called}
	}
	if err := c.Add(track("first", Pass)); err != nil {
		t.Fatal(err)
	}
	if err := c.Add(track("second", Drop)); err != nil {
		t.Fatal(err)
	}
	if err := c.Add(track("third", Pass)); err != nil {
		t.Fatal(err)
	}

	if c.Run(nil) != Drop {
		t.Fatal("expected overall Drop")
	}
	if len(called) != 2 || called[0] != "first" || called[1] != "second" {
		t.Fatalf("expected short-circuit after second filter, got %v", called)
	}
}

func TestChainDuplicateNameRejected(t *testing.T) {
	c := NewChain()
	if err := c.Add(NewFrequencyDrop("f", 1)); err != nil {
		t.Fatal(err)
	}
	if err := c.Add(NewFrequencyDrop("f", 2)); err != ErrExists {
		t.Fatalf("expected ErrExists, got %v", err)
	}
}

func TestChainDeletePreservesOrder(t *testing.T) {
	c := NewChain()
	c.Add(NewFrequencyDrop("a", 0))
	c.Add(NewFrequencyDrop("b", 0))
	c.Add(NewFrequencyDrop("c", 0))
	if err := c.Delete("b"); err != nil {
		t.Fatal(err)
	}
	names := c.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "c" {
		t.Fatalf("expected [a c], got %v", names)
	}
	if err := c.Delete("missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestChainReset(t *testing.T) {
	c := NewChain()
	c.Add(NewFrequencyDrop("a", 0))
	c.Add(NewFrequencyDrop("b", 0))
	c.Reset()
	if len(c.Names()) != 0 {
		t.Fatal("expected empty chain after reset")
	}
}

func TestCorruptXorsMiddleQuarter(t *testing.T) {
	f := NewCorrupt("c", 100)
	buf := make([]byte, 16)
	orig := make([]byte, 16)
	copy(orig, buf)
	f.Apply(buf)
	for i := range buf {
		inMiddle := i >= 4 && i < 8
		if inMiddle && buf[i] == orig[i] {
			t.Fatalf("expected byte %d in middle quarter to change", i)
		}
		if !inMiddle && buf[i] != orig[i] {
			t.Fatalf("byte %d outside middle quarter changed unexpectedly", i)
		}
	}
}

func TestPacketLossBounds(t *testing.T) {
	none := NewPacketLoss("none", 0)
	for i := 0; i < 50; i++ {
		if none.Apply(nil) == Drop {
			t.Fatal("pct=0 must never drop")
		}
	}
	all := NewPacketLoss("all", 100)
	for i := 0; i < 50; i++ {
		if all.Apply(nil) == Pass {
			t.Fatal("pct=100 must always drop")
		}
	}
}

type trackingFilter struct {
	name string
	d    Decision
	log  *[]string
}

func (t trackingFilter) Name() string { return t.name }
func (t trackingFilter) Apply([]byte) Decision {
	*t.log = append(*t.log, t.name)
	return t.d
}
func (t trackingFilter) Close() error { return nil }
