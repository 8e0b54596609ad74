// Package platform collects the thin, mockable collaborators the
// hypervisor's docker and brctl modules use to touch the host network
// stack: veth pair creation, bridge-master attachment, namespace moves,
// and NIC checksum offload control.
package platform

import "errors"

// ErrUnsupported is returned by every Linker/ChecksumDisabler method on a
// platform that doesn't implement the underlying facility (anything but
// Linux, for netlink-based veth/bridge plumbing).
var ErrUnsupported = errors.New("platform: operation not supported on this platform")

// Linker is the docker/brctl modules' collaborator for veth pair creation,
// bridge-master attachment, and network namespace moves. It is deliberately
// narrow — just the four operations the hypervisor's container-networking
// commands need — so it can be faked in tests without dragging in a real
// netlink socket.
type Linker interface {
	// CreateVeth creates a veth pair named hostSide/peerSide.
	CreateVeth(hostSide, peerSide string) error
	// DeleteVeth removes the named veth pair via either of its two ends.
	DeleteVeth(name string) error
	// AddIfToBridge attaches ifName as a slave of the bridge-master device
	// bridgeName, matching `brctl addif`.
	AddIfToBridge(bridgeName, ifName string) error
	// MoveToNamespace moves ifName into the network namespace identified
	// by pid (the target process's /proc/<pid>/ns/net).
	MoveToNamespace(ifName string, pid int) error
}

// ChecksumDisabler turns off NIC rx/tx checksum offload on an
// interface, needed because veth peers crossing a namespace boundary
// otherwise ship frames with offload-only "checksums" that look corrupt to
// anything reading the wire.
type ChecksumDisabler interface {
	DisableChecksumOffload(ifName string) error
}
