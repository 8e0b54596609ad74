package hypervisor

import (
	"github.com/ubridge/ubridge/bridge"
	"github.com/ubridge/ubridge/iol"
)

// Version is the control protocol's reported version string, surfaced by
// `hypervisor version`.
const Version = "ubridge-hypervisor 1.0"

// NewHypervisorModule builds the `hypervisor` module's command table:
// version, module_list, cmd_list, reset, close, stop, per spec.md §4.8.
// close and stop don't touch net.Conn directly — they set Reply.Action,
// which the control server acts on after writing the reply — so this
// module's command table, like every other module's, is built once at
// startup and never mutated per connection.
func NewHypervisorModule(mr *ModuleRegistry, bridges *bridge.Registry, iolBridges *iol.Registry) *Module {
	return &Module{
		Name: "hypervisor",
		Commands: map[string]Command{
			"version":     {0, 0, func(a []string) Reply { return OK(Version) }},
			"module_list": {0, 0, func(a []string) Reply { return Multi(StatusInfo, mr.ModuleNames()...) }},
			"cmd_list": {1, 1, func(a []string) Reply {
				names, ok := mr.CommandNames(a[0])
				if !ok {
					return Err(StatusUnknownModule, "unknown module: "+a[0])
				}
				return Multi(StatusInfo, names...)
			}},
			"reset": {0, 0, func(a []string) Reply {
				bridges.Reset()
				iolBridges.Reset()
				return OK("reset")
			}},
			"close": {0, 0, func(a []string) Reply {
				return Reply{Status: StatusOK, Lines: []string{"closing connection"}, Action: ActionCloseConn}
			}},
			"stop": {0, 0, func(a []string) Reply {
				return Reply{Status: StatusOK, Lines: []string{"stopping server"}, Action: ActionStopServer}
			}},
		},
	}
}
