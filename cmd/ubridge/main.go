/*************************************************************************
 * Copyright 2024 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Command ubridge is the CLI front-end: it parses the INI configuration
// file into a static bridge list (batch mode) or starts the hypervisor
// control plane (hypervisor mode), per spec.md §5/§7.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/gopacket/pcap"

	"github.com/ubridge/ubridge/bridge"
	"github.com/ubridge/ubridge/config"
	"github.com/ubridge/ubridge/hypervisor"
	"github.com/ubridge/ubridge/iol"
	"github.com/ubridge/ubridge/log"
	"github.com/ubridge/ubridge/platform"
	"github.com/ubridge/ubridge/utils"
)

const version = "ubridge 1.0"

const defaultConfigFile = "ubridge.ini"
const defaultHypervisorPort = 4242

var (
	flagHelp       = flag.Bool("h", false, "Display this help text")
	flagVersion    = flag.Bool("v", false, "Display version")
	flagListDevs   = flag.Bool("e", false, "List available network devices")
	flagConfigFile = flag.String("f", defaultConfigFile, "Configuration file path")
	flagDebugLevel = flag.Int("d", 0, "Debug level (0 disables debug logging)")
	flagHypervisor = flag.String("H", "", "Enable hypervisor mode on [<ip>:]<port> (default port 4242)")
)

func main() {
	flag.Parse()

	// ignore SIGPIPE process-wide: every NIO/control-connection write path
	// handles a broken pipe as an ordinary error return, not a signal.
	signal.Ignore(syscall.SIGPIPE)

	switch {
	case *flagHelp:
		flag.Usage()
		return
	case *flagVersion:
		fmt.Println(version)
		return
	case *flagListDevs:
		if err := listDevices(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to list devices: %v\n", err)
			os.Exit(1)
		}
		return
	}

	logger := log.NewDiscardLogger()
	if *flagDebugLevel > 0 {
		l, err := log.NewFile("ubridge.log")
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
			os.Exit(1)
		}
		if err := l.SetLevel(log.Level(*flagDebugLevel)); err != nil {
			fmt.Fprintf(os.Stderr, "invalid debug level %d: %v\n", *flagDebugLevel, err)
			os.Exit(1)
		}
		logger = l
	}

	if *flagHypervisor != "" {
		runHypervisorMode(*flagHypervisor, logger)
		return
	}
	runBatchMode(*flagConfigFile, logger)
}

// runBatchMode implements spec.md §7's batch-mode lifecycle: parse the
// config file into a bridge list, spawn forwarders, sleep waiting for
// SIGINT/SIGTERM/SIGHUP. SIGHUP destroys every bridge, reparses the
// config, and respawns; SIGINT/SIGTERM destroy every bridge and exit.
func runBatchMode(confPath string, logger *log.Logger) {
	quit := utils.GetQuitChannel()
	reg := bridge.NewRegistry(logger)

	if err := loadAndStartBridges(confPath, reg, logger); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", confPath, err)
		os.Exit(1)
	}

	for {
		sig := <-quit
		logger.Infof("received signal %v", sig)
		reg.Reset()
		if sig != syscall.SIGHUP {
			return
		}
		if err := loadAndStartBridges(confPath, reg, logger); err != nil {
			fmt.Fprintf(os.Stderr, "failed to reload %s: %v\n", confPath, err)
			os.Exit(1)
		}
	}
}

// runHypervisorMode implements spec.md §7's hypervisor-mode lifecycle:
// register every module, start the control server, and tear everything
// down on SIGINT/SIGTERM.
func runHypervisorMode(bind string, logger *log.Logger) {
	addr := normalizeHypervisorAddr(bind)
	quit := utils.GetQuitChannel()

	bridges := bridge.NewRegistry(logger)
	iolBridges := iol.NewRegistry(logger)

	mr := hypervisor.NewModuleRegistry()
	mr.Register(hypervisor.NewBridgeModule(bridges))
	if runtime.GOOS == "linux" {
		linker := platform.NewNetlinkLinker()
		mr.Register(hypervisor.NewIOLBridgeModule(iolBridges))
		mr.Register(hypervisor.NewDockerModule(linker))
		mr.Register(hypervisor.NewBrctlModule(linker))
	}
	mr.Register(hypervisor.NewHypervisorModule(mr, bridges, iolBridges))

	srv := hypervisor.NewServer(mr, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(addr) }()

	select {
	case sig := <-quit:
		logger.Infof("received signal %v, shutting down hypervisor", sig)
		srv.Stop()
		<-errCh
	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(os.Stderr, "hypervisor server exited: %v\n", err)
		}
	}
	bridges.Reset()
	iolBridges.Reset()
}

// normalizeHypervisorAddr turns the -H flag's "[<ip>:]<port>" syntax into a
// net.Listen-ready address, defaulting the bind address to all-any and the
// port to defaultHypervisorPort when the flag value is a bare port.
func normalizeHypervisorAddr(bind string) string {
	if bind == "" {
		return fmt.Sprintf(":%d", defaultHypervisorPort)
	}
	if strings.Contains(bind, ":") {
		return bind
	}
	if _, err := strconv.Atoi(bind); err == nil {
		return ":" + bind
	}
	return bind
}

// loadAndStartBridges parses confPath and populates reg with one bridge per
// [Bridge "name"] section, wiring each configured NIO slot, capture sink,
// and pcap filter, then starting every bridge that ended up with both
// slots occupied, per spec.md §6's INI layout.
func loadAndStartBridges(confPath string, reg *bridge.Registry, logger *log.Logger) error {
	fc, err := config.LoadConfigFile(confPath)
	if err != nil {
		return err
	}
	for name, sec := range fc.Bridge {
		if err := reg.Create(name); err != nil {
			return fmt.Errorf("bridge %s: %w", name, err)
		}
		if err := wireBridgeSection(reg, name, sec); err != nil {
			return fmt.Errorf("bridge %s: %w", name, err)
		}
		if err := reg.Start(name); err != nil {
			logger.Warnf("bridge %s: not starting: %v", name, err)
		}
	}
	return nil
}

// wireBridgeSection adds whichever NIO slots, capture sink, and pcap
// filter sec specifies to the already-created bridge name. Keys are wired
// kind by kind (udp, unix, tap, ethernet, linux_raw, fusion_vmnet), source
// before destination within a kind, and every add fills the bridge's first
// empty slot (bridge.addNIO). A Destination_* key therefore lands in the
// source slot when no key earlier in that order has filled it.
func wireBridgeSection(reg *bridge.Registry, name string, sec *config.BridgeSection) error {
	if sec.Source_Udp != "" {
		if err := addUDPField(reg, name, sec.Source_Udp); err != nil {
			return fmt.Errorf("source_udp: %w", err)
		}
	}
	if sec.Destination_Udp != "" {
		if err := addUDPField(reg, name, sec.Destination_Udp); err != nil {
			return fmt.Errorf("destination_udp: %w", err)
		}
	}
	if sec.Source_Unix != "" {
		if err := addUnixField(reg, name, sec.Source_Unix); err != nil {
			return fmt.Errorf("source_unix: %w", err)
		}
	}
	if sec.Destination_Unix != "" {
		if err := addUnixField(reg, name, sec.Destination_Unix); err != nil {
			return fmt.Errorf("destination_unix: %w", err)
		}
	}
	if sec.Source_Tap != "" {
		if err := reg.AddNIOTap(name, sec.Source_Tap); err != nil {
			return fmt.Errorf("source_tap: %w", err)
		}
	}
	if sec.Destination_Tap != "" {
		if err := reg.AddNIOTap(name, sec.Destination_Tap); err != nil {
			return fmt.Errorf("destination_tap: %w", err)
		}
	}
	if sec.Source_Ethernet != "" {
		if err := reg.AddNIOEthernet(name, sec.Source_Ethernet); err != nil {
			return fmt.Errorf("source_ethernet: %w", err)
		}
	}
	if sec.Destination_Ethernet != "" {
		if err := reg.AddNIOEthernet(name, sec.Destination_Ethernet); err != nil {
			return fmt.Errorf("destination_ethernet: %w", err)
		}
	}
	if sec.Source_Linux_Raw != "" {
		if err := reg.AddNIOLinuxRaw(name, sec.Source_Linux_Raw); err != nil {
			return fmt.Errorf("source_linux_raw: %w", err)
		}
	}
	// destination_linux_raw goes through AddNIOLinuxRaw, which fills
	// whichever slot is still free: the destination slot when an earlier
	// key filled the source slot, otherwise the source slot.
	if sec.Destination_Linux_Raw != "" {
		if err := reg.AddNIOLinuxRaw(name, sec.Destination_Linux_Raw); err != nil {
			return fmt.Errorf("destination_linux_raw: %w", err)
		}
	}
	if sec.Source_Fusion_Vmnet != "" {
		if err := reg.AddNIOFusionVmnet(name, sec.Source_Fusion_Vmnet); err != nil {
			return fmt.Errorf("source_fusion_vmnet: %w", err)
		}
	}
	if sec.Destination_Fusion_Vmnet != "" {
		if err := reg.AddNIOFusionVmnet(name, sec.Destination_Fusion_Vmnet); err != nil {
			return fmt.Errorf("destination_fusion_vmnet: %w", err)
		}
	}
	if sec.Pcap_File != "" {
		if err := reg.StartCapture(name, sec.Pcap_File, sec.Pcap_Protocol); err != nil {
			return fmt.Errorf("pcap_file: %w", err)
		}
	}
	if sec.Pcap_Filter != "" {
		if err := reg.SetPcapFilter(name, sec.Pcap_Filter); err != nil {
			return fmt.Errorf("pcap_filter: %w", err)
		}
	}
	return nil
}

// addUDPField parses the "<local_port>:<host>:<remote_port>" syntax of a
// Source_Udp/Destination_Udp config value and wires it onto name.
func addUDPField(reg *bridge.Registry, name, field string) error {
	parts := strings.SplitN(field, ":", 3)
	if len(parts) != 3 {
		return fmt.Errorf("expected <local_port>:<host>:<remote_port>, got %q", field)
	}
	localPort, err := strconv.Atoi(parts[0])
	if err != nil {
		return fmt.Errorf("bad local_port %q: %w", parts[0], err)
	}
	remotePort, err := strconv.Atoi(parts[2])
	if err != nil {
		return fmt.Errorf("bad remote_port %q: %w", parts[2], err)
	}
	return reg.AddNIOUDP(name, localPort, parts[1], remotePort)
}

// addUnixField parses the "<local_path>:<remote_path>" syntax of a
// Source_Unix/Destination_Unix config value and wires it onto name.
func addUnixField(reg *bridge.Registry, name, field string) error {
	parts := strings.SplitN(field, ":", 2)
	if len(parts) != 2 {
		return fmt.Errorf("expected <local_path>:<remote_path>, got %q", field)
	}
	return reg.AddNIOUnix(name, parts[0], parts[1])
}

func listDevices() error {
	devs, err := pcap.FindAllDevs()
	if err != nil {
		return err
	}
	for _, d := range devs {
		fmt.Printf("%s", d.Name)
		if d.Description != "" {
			fmt.Printf(" (%s)", d.Description)
		}
		fmt.Println()
	}
	return nil
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of ubridge:\n")
		fmt.Fprintf(os.Stderr, "  -h            Display this help text\n")
		fmt.Fprintf(os.Stderr, "  -v            Display version\n")
		fmt.Fprintf(os.Stderr, "  -e            List available network devices\n")
		fmt.Fprintf(os.Stderr, "  -f <file>     Configuration file path (default %q)\n", defaultConfigFile)
		fmt.Fprintf(os.Stderr, "  -d <n>        Debug level\n")
		fmt.Fprintf(os.Stderr, "  -H [<ip>:]<port>  Enable hypervisor mode (default port %d)\n", defaultHypervisorPort)
	}
}
