package filter

import (
	"fmt"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"golang.org/x/net/bpf"
)

const defaultLinkType = layers.LinkTypeEthernet

// linkTypeByName resolves a textual link-type name to a gopacket LinkType,
// falling back to EN10MB (Ethernet) for unknown names, per spec.md §4.3's
// capture-sink rule applied here to the bpf filter's optional link-type.
func linkTypeByName(name string) layers.LinkType {
	switch name {
	case "", "EN10MB", "ethernet", "Ethernet":
		return defaultLinkType
	case "LINUX_SLL":
		return layers.LinkTypeLinuxSLL
	case "RAW":
		return layers.LinkTypeRaw
	default:
		return defaultLinkType
	}
}

// BPF DROPs a frame if a compiled BPF program matches it. Compilation uses
// gopacket/pcap.CompileBPFFilter, which needs no live pcap handle;
// evaluation against the arbitrary byte slices the forwarder passes around
// uses golang.org/x/net/bpf's standalone VM — both libraries are already
// present in the dependency surface (gopacket direct, golang.org/x/net
// indirect via gopacket's own requirements).
type BPF struct {
	name     string
	expr     string
	linkType string
	vm       *bpf.VM
}

// NewBPF compiles expr against the given link-type name (empty => EN10MB).
func NewBPF(name, expr, linkType string) (*BPF, error) {
	lt := linkTypeByName(linkType)
	insns, err := pcap.CompileBPFFilter(lt, 65535, expr)
	if err != nil {
		return nil, fmt.Errorf("filter: bpf compile: %w", err)
	}

	raw := make([]bpf.RawInstruction, 0, len(insns))
	for _, in := range insns {
		raw = append(raw, bpf.RawInstruction{
			Op: in.Code,
			Jt:  in.Jt,
			Jf:  in.Jf,
			K:   in.K,
		})
	}
	vm, err := bpf.NewVM(rawToInstructions(raw))
	if err != nil {
		return nil, fmt.Errorf("filter: bpf vm: %w", err)
	}
	return &BPF{name: name, expr: expr, linkType: linkType, vm: vm}, nil
}

// rawToInstructions turns the raw cBPF words produced by
// pcap.CompileBPFFilter into the Instruction slice bpf.NewVM expects;
// RawInstruction itself already satisfies the Instruction interface via
// its Assemble method, so this is just a slice-type conversion.
func rawToInstructions(raw []bpf.RawInstruction) []bpf.Instruction {
	out := make([]bpf.Instruction, len(raw))
	for i, r := range raw {
		out[i] = r
	}
	return out
}

func (f *BPF) Name() string { return f.name }

func (f *BPF) Apply(buf []byte) Decision {
	n, err := f.vm.Run(buf)
	if err != nil {
		return Pass
	}
	if n > 0 {
		return Drop
	}
	return Pass
}

func (f *BPF) Close() error { return nil }
