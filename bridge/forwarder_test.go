package bridge

import (
	"bytes"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/ubridge/ubridge/filter"
)

// udpPair dials a connected UDP socket that talks to (and only hears from)
// the given local/remote ports, standing in for an external test harness
// peer on the other side of a bridge NIO.
func udpPair(t *testing.T, localPort, remotePort int) *net.UDPConn {
	t.Helper()
	laddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("127.0.0.1:%d", localPort))
	if err != nil {
		t.Fatalf("ResolveUDPAddr: %v", err)
	}
	raddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("127.0.0.1:%d", remotePort))
	if err != nil {
		t.Fatalf("ResolveUDPAddr: %v", err)
	}
	conn, err := net.DialUDP("udp", laddr, raddr)
	if err != nil {
		t.Fatalf("DialUDP: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// TestUDPLoopbackForwarding is scenario 1 of spec.md §8: two external UDP
// peers either side of a bridge; a frame sent into one arrives at the
// other, and PacketsIn/PacketsOut/BytesIn/BytesOut track correctly.
func TestUDPLoopbackForwarding(t *testing.T) {
	const (
		bridgeAPort = 31000
		extAPort    = 31001
		bridgeBPort = 31002
		extBPort    = 31003
	)

	r := NewRegistry(nil)
	mustCreate(t, r, "br0")
	if err := r.AddNIOUDP("br0", bridgeAPort, "127.0.0.1", extAPort); err != nil {
		t.Fatalf("AddNIOUDP A: %v", err)
	}
	if err := r.AddNIOUDP("br0", bridgeBPort, "127.0.0.1", extBPort); err != nil {
		t.Fatalf("AddNIOUDP B: %v", err)
	}

	extA := udpPair(t, extAPort, bridgeAPort)
	extB := udpPair(t, extBPort, bridgeBPort)

	if err := r.Start("br0"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer r.Delete("br0")

	payload := []byte("hello over the bridge")
	if _, err := extA.Write(payload); err != nil {
		t.Fatalf("extA.Write: %v", err)
	}

	extB.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 2048)
	n, err := extB.Read(buf)
	if err != nil {
		t.Fatalf("extB.Read: %v", err)
	}
	if !bytes.Equal(buf[:n], payload) {
		t.Fatalf("payload mismatch: got %q want %q", buf[:n], payload)
	}

	if err := r.Stop("br0"); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	b, err := r.Get("br0")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	in := b.Source().Stats()
	out := b.Destination().Stats()
	if in.PacketsIn != 1 || in.BytesIn != uint64(len(payload)) {
		t.Fatalf("source stats = %+v, want 1 packet of %d bytes in", in, len(payload))
	}
	if out.PacketsOut != 1 || out.BytesOut != uint64(len(payload)) {
		t.Fatalf("dest stats = %+v, want 1 packet of %d bytes out", out, len(payload))
	}
}

// TestFrequencyDropFilterScenario is scenario 2 of spec.md §8: a
// frequency_drop(n=2) filter on a bridge drops every second frame, so three
// sends produce exactly two deliveries.
func TestFrequencyDropFilterScenario(t *testing.T) {
	const (
		bridgeAPort = 31010
		extAPort    = 31011
		bridgeBPort = 31012
		extBPort    = 31013
	)

	r := NewRegistry(nil)
	mustCreate(t, r, "br1")
	if err := r.AddNIOUDP("br1", bridgeAPort, "127.0.0.1", extAPort); err != nil {
		t.Fatalf("AddNIOUDP A: %v", err)
	}
	if err := r.AddNIOUDP("br1", bridgeBPort, "127.0.0.1", extBPort); err != nil {
		t.Fatalf("AddNIOUDP B: %v", err)
	}
	if err := r.AddPacketFilter("br1", filter.NewFrequencyDrop("fd", 2)); err != nil {
		t.Fatalf("AddPacketFilter: %v", err)
	}

	extA := udpPair(t, extAPort, bridgeAPort)
	extB := udpPair(t, extBPort, bridgeBPort)

	if err := r.Start("br1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer r.Delete("br1")

	for i := 0; i < 3; i++ {
		if _, err := extA.Write([]byte(fmt.Sprintf("frame-%d", i))); err != nil {
			t.Fatalf("extA.Write %d: %v", i, err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	extB.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	buf := make([]byte, 2048)
	received := 0
	for {
		_, err := extB.Read(buf)
		if err != nil {
			break
		}
		received++
	}
	if received != 2 {
		t.Fatalf("expected 2 of 3 frames delivered past frequency_drop(n=2), got %d", received)
	}
}
