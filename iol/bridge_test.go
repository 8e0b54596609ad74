package iol

import (
	"net"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
)

// TestIOLHeaderFraming is scenario 4 of spec.md §8: a 100-byte UDP
// datagram arriving on a populated port emerges on the peer's backplane
// socket as a 108-byte frame whose first 8 bytes are the precomputed IOL
// header.
func TestIOLHeaderFraming(t *testing.T) {
	const (
		applicationID = 513
		iolID         = 200
		bay, unit     = 0, 1
		bridgeUDPPort = 30000
		peerUDPPort   = 30001
	)

	r := NewRegistry(nil)
	if err := r.Create("iol1", applicationID); err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer r.Delete("iol1")

	if err := r.AddNIOUDP("iol1", iolID, bay, unit, bridgeUDPPort, "127.0.0.1", peerUDPPort); err != nil {
		t.Fatalf("AddNIOUDP: %v", err)
	}

	dir, err := netioDir()
	if err != nil {
		t.Fatalf("netioDir: %v", err)
	}
	peerSockPath := socketPath(dir, iolID)

	peerAddr := &net.UnixAddr{Name: peerSockPath, Net: "unixgram"}
	peerConn, err := net.ListenUnixgram("unixgram", peerAddr)
	if err != nil {
		t.Fatalf("ListenUnixgram peer: %v", err)
	}
	defer peerConn.Close()
	defer unlinkStaleSocket(peerSockPath)

	if err := r.Start("iol1"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	udpLocal, err := net.ResolveUDPAddr("udp", "127.0.0.1:"+strconv.Itoa(peerUDPPort))
	if err != nil {
		t.Fatalf("ResolveUDPAddr: %v", err)
	}
	udpRemote, err := net.ResolveUDPAddr("udp", "127.0.0.1:"+strconv.Itoa(bridgeUDPPort))
	if err != nil {
		t.Fatalf("ResolveUDPAddr: %v", err)
	}
	udpConn, err := net.DialUDP("udp", udpLocal, udpRemote)
	if err != nil {
		t.Fatalf("DialUDP: %v", err)
	}
	defer udpConn.Close()

	payload := make([]byte, 100)
	for i := range payload {
		payload[i] = byte(i)
	}
	if _, err := udpConn.Write(payload); err != nil {
		t.Fatalf("udpConn.Write: %v", err)
	}

	peerConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1024)
	n, err := peerConn.Read(buf)
	if err != nil {
		t.Fatalf("peerConn.Read: %v", err)
	}
	if n != HeaderLen+len(payload) {
		t.Fatalf("got %d-byte frame, want %d", n, HeaderLen+len(payload))
	}

	want := []byte{0x00, 0xC8, 0x02, 0x01, 0x10, 0x10, 0x01, 0x00}
	if string(buf[:HeaderLen]) != string(want) {
		t.Fatalf("header = % X, want % X", buf[:HeaderLen], want)
	}

	if err := r.Stop("iol1"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

// TestIOLLockContention is scenario 5 of spec.md §8: a second bridge
// claiming the same application_id fails with a message naming the
// holding PID.
func TestIOLLockContention(t *testing.T) {
	r1 := NewRegistry(nil)
	if err := r1.Create("b1", 42); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	defer r1.Delete("b1")

	r2 := NewRegistry(nil)
	err := r2.Create("other", 42)
	if err == nil {
		t.Fatalf("expected second Create(application_id=42) to fail")
	}
	if want := "pid " + strconv.Itoa(os.Getpid()); !strings.Contains(err.Error(), want) {
		t.Fatalf("expected error naming holder %q, got %v", want, err)
	}
	if _, getErr := r2.Get("other"); getErr != ErrNotFound {
		t.Fatalf("expected failed create to leave no bridge registered, got %v", getErr)
	}
}
