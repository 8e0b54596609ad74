//go:build !linux

package nio

// NewLinuxRaw is a stub on non-Linux platforms: PF_PACKET/SOCK_RAW is a
// Linux-only facility, so add_nio_linux_raw fails with ErrUnsupported here
// instead of failing to build.
func NewLinuxRaw(ifname string) (NIO, error) {
	return nil, ErrUnsupported
}
