package platform

import "testing"

// fakeLinker is a minimal in-memory Linker used to exercise the interface
// contract without touching the real netlink stack, so these tests run in
// CI environments without CAP_NET_ADMIN.
type fakeLinker struct {
	veths     map[string]string
	bridged   map[string]string
	namespace map[string]int
}

func newFakeLinker() *fakeLinker {
	return &fakeLinker{
		veths:     make(map[string]string),
		bridged:   make(map[string]string),
		namespace: make(map[string]int),
	}
}

func (f *fakeLinker) CreateVeth(hostSide, peerSide string) error {
	f.veths[hostSide] = peerSide
	return nil
}

func (f *fakeLinker) DeleteVeth(name string) error {
	delete(f.veths, name)
	return nil
}

func (f *fakeLinker) AddIfToBridge(bridgeName, ifName string) error {
	f.bridged[ifName] = bridgeName
	return nil
}

func (f *fakeLinker) MoveToNamespace(ifName string, pid int) error {
	f.namespace[ifName] = pid
	return nil
}

func TestFakeLinkerSatisfiesInterface(t *testing.T) {
	var l Linker = newFakeLinker()
	if err := l.CreateVeth("veth0", "veth0peer"); err != nil {
		t.Fatalf("CreateVeth: %v", err)
	}
	if err := l.AddIfToBridge("br0", "veth0"); err != nil {
		t.Fatalf("AddIfToBridge: %v", err)
	}
	if err := l.MoveToNamespace("veth0peer", 1234); err != nil {
		t.Fatalf("MoveToNamespace: %v", err)
	}
	if err := l.DeleteVeth("veth0"); err != nil {
		t.Fatalf("DeleteVeth: %v", err)
	}

	fl := l.(*fakeLinker)
	if fl.bridged["veth0"] != "br0" {
		t.Fatalf("expected veth0 bridged onto br0, got %q", fl.bridged["veth0"])
	}
	if fl.namespace["veth0peer"] != 1234 {
		t.Fatalf("expected veth0peer moved to pid 1234, got %d", fl.namespace["veth0peer"])
	}
}
