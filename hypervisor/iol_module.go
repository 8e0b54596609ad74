package hypervisor

import (
	"fmt"
	"strconv"

	"github.com/ubridge/ubridge/iol"
)

// NewIOLBridgeModule builds the `iol_bridge` module's command table over
// reg: an analogous set to `bridge`, parameterized by bay/unit instead of
// arbitrary NIO pairing, per spec.md §6.
func NewIOLBridgeModule(reg *iol.Registry) *Module {
	return &Module{
		Name: "iol_bridge",
		Commands: map[string]Command{
			"create": {2, 2, func(a []string) Reply { return createIOL(reg, a) }},
			"delete": {1, 1, func(a []string) Reply { return iolErrReply(reg.Delete(a[0]), StatusDelete, "deleted "+a[0]) }},
			"start":  {1, 1, func(a []string) Reply { return iolErrReply(reg.Start(a[0]), StatusStart, "started "+a[0]) }},
			"stop":   {1, 1, func(a []string) Reply { return iolErrReply(reg.Stop(a[0]), StatusStop, "stopped "+a[0]) }},
			"list":   {0, 0, func(a []string) Reply { return Multi(StatusInfo, reg.List()...) }},
			"show":   {1, 1, func(a []string) Reply { return showIOLBridge(reg, a[0]) }},
			"add_nio_udp": {7, 7, func(a []string) Reply { return addIOLNIOUDP(reg, a) }},
		},
	}
}

func iolErrReply(err error, failStatus Status, okMsg string) Reply {
	if err == nil {
		return OK(okMsg)
	}
	status := failStatus
	switch err {
	case iol.ErrNotFound:
		status = StatusUnknownObject
	case iol.ErrExists:
		status = StatusCreate
	case iol.ErrAlreadyRunning, iol.ErrNotRunning:
		status = StatusBadObject
	case iol.ErrSameID, iol.ErrBadPortKey:
		status = StatusInvalidParam
	}
	return Err(status, err.Error())
}

func createIOL(reg *iol.Registry, a []string) Reply {
	appID, err := strconv.Atoi(a[1])
	if err != nil || appID < 0 || appID > 65535 {
		return Err(StatusInvalidParam, "bad application_id: "+a[1])
	}
	// Lock contention (spec.md §7's "Reply 206 with the holder's PID") and
	// a duplicate bridge name both land on StatusCreate; acquireLock
	// already embeds the holding PID in its error message.
	if err := reg.Create(a[0], appID); err != nil {
		return Err(StatusCreate, err.Error())
	}
	return OK("created " + a[0])
}

func addIOLNIOUDP(reg *iol.Registry, a []string) Reply {
	iolID, err := strconv.Atoi(a[1])
	if err != nil {
		return Err(StatusInvalidParam, "bad iol_id: "+a[1])
	}
	bay, err := strconv.Atoi(a[2])
	if err != nil {
		return Err(StatusInvalidParam, "bad bay: "+a[2])
	}
	unit, err := strconv.Atoi(a[3])
	if err != nil {
		return Err(StatusInvalidParam, "bad unit: "+a[3])
	}
	localPort, err := strconv.Atoi(a[4])
	if err != nil {
		return Err(StatusInvalidParam, "bad local_port: "+a[4])
	}
	host := a[5]
	remotePort, err := strconv.Atoi(a[6])
	if err != nil {
		return Err(StatusInvalidParam, "bad remote_port: "+a[6])
	}
	return iolErrReply(reg.AddNIOUDP(a[0], iolID, bay, unit, localPort, host, remotePort), StatusBinding, "added udp nio to "+a[0])
}

func showIOLBridge(reg *iol.Registry, name string) Reply {
	b, err := reg.Get(name)
	if err != nil {
		return iolErrReply(err, StatusUnknownObject, "")
	}
	return Multi(StatusInfo,
		fmt.Sprintf("name: %s", b.Name()),
		fmt.Sprintf("application_id: %d", b.ApplicationID()),
		fmt.Sprintf("running: %t", b.Running()),
		fmt.Sprintf("socket: %s", b.SocketPath()),
	)
}
