//go:build linux

package platform

import (
	"fmt"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"
)

// NetlinkLinker implements Linker on top of github.com/vishvananda/netlink
// and github.com/vishvananda/netns, the same stack the orbstack-swift-nio
// example repo's scon package uses for container-networking plumbing.
type NetlinkLinker struct{}

// NewNetlinkLinker returns the Linux netlink-backed Linker.
func NewNetlinkLinker() *NetlinkLinker { return &NetlinkLinker{} }

// CreateVeth creates a veth pair with hostSide as the link name and
// peerSide as its PeerName, then brings hostSide up.
func (l *NetlinkLinker) CreateVeth(hostSide, peerSide string) error {
	veth := &netlink.Veth{
		LinkAttrs: netlink.LinkAttrs{Name: hostSide},
		PeerName:  peerSide,
	}
	if err := netlink.LinkAdd(veth); err != nil {
		return fmt.Errorf("platform: create veth %s/%s: %w", hostSide, peerSide, err)
	}
	link, err := netlink.LinkByName(hostSide)
	if err != nil {
		return fmt.Errorf("platform: lookup veth %s after create: %w", hostSide, err)
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("platform: set veth %s up: %w", hostSide, err)
	}
	return nil
}

// DeleteVeth removes the named link; deleting either end of a veth pair
// removes both.
func (l *NetlinkLinker) DeleteVeth(name string) error {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return fmt.Errorf("platform: lookup veth %s: %w", name, err)
	}
	if err := netlink.LinkDel(link); err != nil {
		return fmt.Errorf("platform: delete veth %s: %w", name, err)
	}
	return nil
}

// AddIfToBridge attaches ifName as a slave of the bridge-master device
// bridgeName, matching `brctl addif bridgeName ifName`.
func (l *NetlinkLinker) AddIfToBridge(bridgeName, ifName string) error {
	br, err := netlink.LinkByName(bridgeName)
	if err != nil {
		return fmt.Errorf("platform: lookup bridge %s: %w", bridgeName, err)
	}
	iface, err := netlink.LinkByName(ifName)
	if err != nil {
		return fmt.Errorf("platform: lookup interface %s: %w", ifName, err)
	}
	if err := netlink.LinkSetMaster(iface, br); err != nil {
		return fmt.Errorf("platform: add %s to bridge %s: %w", ifName, bridgeName, err)
	}
	return nil
}

// MoveToNamespace moves ifName into the network namespace of the process
// identified by pid.
func (l *NetlinkLinker) MoveToNamespace(ifName string, pid int) error {
	link, err := netlink.LinkByName(ifName)
	if err != nil {
		return fmt.Errorf("platform: lookup interface %s: %w", ifName, err)
	}
	ns, err := netns.GetFromPid(pid)
	if err != nil {
		return fmt.Errorf("platform: open netns of pid %d: %w", pid, err)
	}
	defer ns.Close()
	if err := netlink.LinkSetNsFd(link, int(ns)); err != nil {
		return fmt.Errorf("platform: move %s to netns of pid %d: %w", ifName, pid, err)
	}
	return nil
}
