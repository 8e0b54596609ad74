package hypervisor

import (
	"strconv"

	"github.com/ubridge/ubridge/platform"
)

// NewDockerModule builds the `docker` module's command table: veth
// creation/deletion and namespace moves, backed by a platform.Linker.
func NewDockerModule(l platform.Linker) *Module {
	return &Module{
		Name: "docker",
		Commands: map[string]Command{
			"create_veth": {2, 2, func(a []string) Reply {
				return linkerErrReply(l.CreateVeth(a[0], a[1]), "created veth "+a[0]+"/"+a[1])
			}},
			"delete_veth": {1, 1, func(a []string) Reply {
				return linkerErrReply(l.DeleteVeth(a[0]), "deleted veth "+a[0])
			}},
			"move_to_ns": {2, 2, func(a []string) Reply {
				pid, err := strconv.Atoi(a[1])
				if err != nil {
					return Err(StatusInvalidParam, "bad pid: "+a[1])
				}
				return linkerErrReply(l.MoveToNamespace(a[0], pid), "moved "+a[0]+" to namespace of pid "+a[1])
			}},
		},
	}
}

// NewBrctlModule builds the `brctl` module's command table: attaching an
// interface to a bridge-master device.
func NewBrctlModule(l platform.Linker) *Module {
	return &Module{
		Name: "brctl",
		Commands: map[string]Command{
			"addif": {2, 2, func(a []string) Reply {
				return linkerErrReply(l.AddIfToBridge(a[0], a[1]), "added "+a[1]+" to bridge "+a[0])
			}},
		},
	}
}

func linkerErrReply(err error, okMsg string) Reply {
	if err == nil {
		return OK(okMsg)
	}
	return Err(StatusUnspecified, err.Error())
}
