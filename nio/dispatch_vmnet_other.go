//go:build !darwin

package nio

// NewFusionVmnet is a stub on non-darwin platforms: the vmnet kext only
// exists under macOS Fusion, so add_nio_fusion_vmnet fails with
// ErrUnsupported here instead of failing to build.
func NewFusionVmnet(name string) (NIO, error) {
	return nil, ErrUnsupported
}
