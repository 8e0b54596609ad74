//go:build !linux

package platform

// NetlinkLinker is a stub on non-Linux platforms: netlink, veth, and
// bridge-master devices are Linux kernel facilities with no macOS/BSD
// equivalent, so the docker/brctl modules fail with ErrUnsupported here
// instead of failing to build.
type NetlinkLinker struct{}

func NewNetlinkLinker() *NetlinkLinker { return &NetlinkLinker{} }

func (l *NetlinkLinker) CreateVeth(hostSide, peerSide string) error { return ErrUnsupported }
func (l *NetlinkLinker) DeleteVeth(name string) error               { return ErrUnsupported }
func (l *NetlinkLinker) AddIfToBridge(bridgeName, ifName string) error {
	return ErrUnsupported
}
func (l *NetlinkLinker) MoveToNamespace(ifName string, pid int) error { return ErrUnsupported }
