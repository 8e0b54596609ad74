package hypervisor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ubridge/ubridge/bridge"
	"github.com/ubridge/ubridge/filter"
)

// NewBridgeModule builds the `bridge` module's command table over reg,
// matching the command list in spec.md §6: create, delete, start, stop,
// show, get_stats, reset_stats, rename, add_nio_*, delete_nio_udp,
// start_capture, stop_capture, *_packet_filter*, set_pcap_filter, list.
func NewBridgeModule(reg *bridge.Registry) *Module {
	return &Module{
		Name: "bridge",
		Commands: map[string]Command{
			"create":  {1, 1, func(a []string) Reply { return bridgeErrReply(reg.Create(a[0]), StatusCreate, "created "+a[0]) }},
			"delete":  {1, 1, func(a []string) Reply { return bridgeErrReply(reg.Delete(a[0]), StatusDelete, "deleted "+a[0]) }},
			"start":   {1, 1, func(a []string) Reply { return bridgeErrReply(reg.Start(a[0]), StatusStart, "started "+a[0]) }},
			"stop":    {1, 1, func(a []string) Reply { return bridgeErrReply(reg.Stop(a[0]), StatusStop, "stopped "+a[0]) }},
			"rename":  {2, 2, func(a []string) Reply { return bridgeErrReply(reg.Rename(a[0], a[1]), StatusRename, "renamed "+a[0]+" to "+a[1]) }},
			"list":    {0, 0, func(a []string) Reply { return Multi(StatusInfo, reg.List()...) }},
			"show":    {1, 1, func(a []string) Reply { return showBridge(reg, a[0]) }},
			"get_stats": {1, 1, func(a []string) Reply { return getBridgeStats(reg, a[0]) }},
			"reset_stats": {1, 1, func(a []string) Reply {
				return bridgeErrReply(reg.ResetStats(a[0]), StatusUnspecified, "reset stats for "+a[0])
			}},
			"add_nio_udp": {4, 4, func(a []string) Reply { return addNIOUDP(reg, a) }},
			"add_nio_unix": {3, 3, func(a []string) Reply {
				return bridgeErrReply(reg.AddNIOUnix(a[0], a[1], a[2]), StatusBinding, "added unix nio to "+a[0])
			}},
			"add_nio_tap": {2, 2, func(a []string) Reply {
				return bridgeErrReply(reg.AddNIOTap(a[0], a[1]), StatusBinding, "added tap nio to "+a[0])
			}},
			"add_nio_ethernet": {2, 2, func(a []string) Reply {
				return bridgeErrReply(reg.AddNIOEthernet(a[0], a[1]), StatusBinding, "added ethernet nio to "+a[0])
			}},
			"add_nio_linux_raw": {2, 2, func(a []string) Reply {
				return bridgeErrReply(reg.AddNIOLinuxRaw(a[0], a[1]), StatusBinding, "added linux_raw nio to "+a[0])
			}},
			"add_nio_fusion_vmnet": {2, 2, func(a []string) Reply {
				return bridgeErrReply(reg.AddNIOFusionVmnet(a[0], a[1]), StatusBinding, "added fusion_vmnet nio to "+a[0])
			}},
			"delete_nio_udp": {4, 4, func(a []string) Reply { return deleteNIOUDP(reg, a) }},
			"start_capture": {2, 3, func(a []string) Reply { return startCapture(reg, a) }},
			"stop_capture": {1, 1, func(a []string) Reply {
				return bridgeErrReply(reg.StopCapture(a[0]), StatusUnspecified, "stopped capture on "+a[0])
			}},
			"add_packet_filter":    {3, 6, func(a []string) Reply { return addPacketFilter(reg, a) }},
			"delete_packet_filter": {2, 2, func(a []string) Reply { return bridgeErrReply(reg.DeletePacketFilter(a[0], a[1]), StatusUnspecified, "deleted filter "+a[1]+" from "+a[0]) }},
			"reset_packet_filters": {1, 1, func(a []string) Reply { return bridgeErrReply(reg.ResetPacketFilters(a[0]), StatusUnspecified, "reset filters on "+a[0]) }},
			"set_pcap_filter":      {2, 2, func(a []string) Reply { return bridgeErrReply(reg.SetPcapFilter(a[0], a[1]), StatusUnspecified, "set pcap filter on "+a[0]) }},
		},
	}
}

// bridgeErrReply maps a bridge-package error into the closed reply-status
// set, or returns an OK reply with okMsg if err is nil.
func bridgeErrReply(err error, failStatus Status, okMsg string) Reply {
	if err == nil {
		return OK(okMsg)
	}
	return Err(statusForBridgeErr(err, failStatus), err.Error())
}

func statusForBridgeErr(err error, fallback Status) Status {
	switch err {
	case bridge.ErrNotFound:
		return StatusUnknownObject
	case bridge.ErrExists:
		return StatusCreate
	case bridge.ErrNoSlot, bridge.ErrMissingNIOs, bridge.ErrAlreadyRun, bridge.ErrNotRunning, bridge.ErrNotStopped:
		return StatusBadObject
	case bridge.ErrCaptureExists, bridge.ErrNoCapture, bridge.ErrNoEthernet:
		return StatusBadObject
	case filter.ErrExists, filter.ErrNotFound:
		return StatusInvalidParam
	default:
		return fallback
	}
}

func addNIOUDP(reg *bridge.Registry, a []string) Reply {
	localPort, err := strconv.Atoi(a[1])
	if err != nil {
		return Err(StatusInvalidParam, "bad local_port: "+a[1])
	}
	remotePort, err := strconv.Atoi(a[3])
	if err != nil {
		return Err(StatusInvalidParam, "bad remote_port: "+a[3])
	}
	return bridgeErrReply(reg.AddNIOUDP(a[0], localPort, a[2], remotePort), StatusBinding, "added udp nio to "+a[0])
}

func deleteNIOUDP(reg *bridge.Registry, a []string) Reply {
	localPort, err := strconv.Atoi(a[1])
	if err != nil {
		return Err(StatusInvalidParam, "bad local_port: "+a[1])
	}
	remotePort, err := strconv.Atoi(a[3])
	if err != nil {
		return Err(StatusInvalidParam, "bad remote_port: "+a[3])
	}
	return bridgeErrReply(reg.DeleteNIOUDP(a[0], localPort, a[2], remotePort), StatusDelete, "deleted udp nio from "+a[0])
}

func startCapture(reg *bridge.Registry, a []string) Reply {
	linkType := ""
	if len(a) == 3 {
		linkType = a[2]
	}
	return bridgeErrReply(reg.StartCapture(a[0], a[1], linkType), StatusFile, "started capture on "+a[0])
}

// addPacketFilter's third token names the filter type; the rest are
// type-specific parameters, matching the IOU/IOL control protocol's
// variable-argument filter commands.
func addPacketFilter(reg *bridge.Registry, a []string) Reply {
	name, filterName, kind := a[0], a[1], a[2]
	rest := a[3:]
	f, err := buildFilter(filterName, kind, rest)
	if err != nil {
		return Err(StatusInvalidParam, err.Error())
	}
	return bridgeErrReply(reg.AddPacketFilter(name, f), StatusInvalidParam, "added filter "+filterName+" to "+name)
}

func buildFilter(name, kind string, params []string) (filter.Filter, error) {
	switch strings.ToLower(kind) {
	case "frequency_drop":
		n, err := intParam(params, 0, "n")
		if err != nil {
			return nil, err
		}
		return filter.NewFrequencyDrop(name, n), nil
	case "packet_loss":
		pct, err := intParam(params, 0, "percent")
		if err != nil {
			return nil, err
		}
		return filter.NewPacketLoss(name, pct), nil
	case "delay":
		latency, err := intParam(params, 0, "latency_ms")
		if err != nil {
			return nil, err
		}
		jitter, err := intParam(params, 1, "jitter_ms")
		if err != nil {
			return nil, err
		}
		return filter.NewDelay(name, latency, jitter), nil
	case "corrupt":
		pct, err := intParam(params, 0, "percent")
		if err != nil {
			return nil, err
		}
		return filter.NewCorrupt(name, pct), nil
	case "bpf":
		if len(params) < 1 {
			return nil, fmt.Errorf("bpf filter requires an expression")
		}
		linkType := ""
		if len(params) > 1 {
			linkType = params[1]
		}
		return filter.NewBPF(name, params[0], linkType)
	default:
		return nil, fmt.Errorf("unknown filter type: %s", kind)
	}
}

func intParam(params []string, idx int, label string) (int, error) {
	if idx >= len(params) {
		return 0, fmt.Errorf("missing %s parameter", label)
	}
	n, err := strconv.Atoi(params[idx])
	if err != nil {
		return 0, fmt.Errorf("bad %s parameter: %s", label, params[idx])
	}
	return n, nil
}

func showBridge(reg *bridge.Registry, name string) Reply {
	b, err := reg.Get(name)
	if err != nil {
		return Err(statusForBridgeErr(err, StatusUnknownObject), err.Error())
	}
	lines := []string{
		fmt.Sprintf("name: %s", b.Name()),
		fmt.Sprintf("running: %t", b.Running()),
		fmt.Sprintf("source: %s", niosString(b.Source())),
		fmt.Sprintf("destination: %s", niosString(b.Destination())),
		fmt.Sprintf("filters: %s", strings.Join(b.Filters().Names(), ",")),
	}
	return Multi(StatusInfo, lines...)
}

func niosString(n interface{ String() string }) string {
	if n == nil {
		return "<none>"
	}
	return n.String()
}

func getBridgeStats(reg *bridge.Registry, name string) Reply {
	b, err := reg.Get(name)
	if err != nil {
		return Err(statusForBridgeErr(err, StatusUnknownObject), err.Error())
	}
	var lines []string
	if src := b.Source(); src != nil {
		s := src.Stats()
		lines = append(lines, fmt.Sprintf("source: in=%d/%dB out=%d/%dB", s.PacketsIn, s.BytesIn, s.PacketsOut, s.BytesOut))
	}
	if dst := b.Destination(); dst != nil {
		s := dst.Stats()
		lines = append(lines, fmt.Sprintf("destination: in=%d/%dB out=%d/%dB", s.PacketsIn, s.BytesIn, s.PacketsOut, s.BytesOut))
	}
	return Multi(StatusInfo, lines...)
}
