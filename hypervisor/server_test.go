package hypervisor

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/ubridge/ubridge/bridge"
	"github.com/ubridge/ubridge/iol"
)

func startTestServer(t *testing.T) (addr string, srv *Server) {
	t.Helper()
	bridges := bridge.NewRegistry(nil)
	iolBridges := iol.NewRegistry(nil)

	mr := NewModuleRegistry()
	mr.Register(NewBridgeModule(bridges))
	mr.Register(NewHypervisorModule(mr, bridges, iolBridges))

	srv = NewServer(mr, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	addr = ln.Addr().String()
	ln.Close()

	go srv.Serve(addr)
	t.Cleanup(srv.Stop)

	// give the accept loop a moment to bind before the first dial.
	time.Sleep(50 * time.Millisecond)
	return addr, srv
}

func dialAndSend(t *testing.T, addr, line string) string {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Write([]byte(line + "\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	return reply
}

func TestServerBridgeCreateAndVersion(t *testing.T) {
	addr, _ := startTestServer(t)

	reply := dialAndSend(t, addr, "bridge create br0")
	if want := "100 created br0\r\n"; reply != want {
		t.Fatalf("reply = %q, want %q", reply, want)
	}

	reply = dialAndSend(t, addr, "hypervisor version")
	if want := "100 " + Version + "\r\n"; reply != want {
		t.Fatalf("reply = %q, want %q", reply, want)
	}

	reply = dialAndSend(t, addr, "bridge create br0")
	if reply[:3] != "206" {
		t.Fatalf("expected duplicate create to reply with status 206, got %q", reply)
	}
}

func TestServerUnknownModuleAndCommand(t *testing.T) {
	addr, _ := startTestServer(t)

	reply := dialAndSend(t, addr, "nope whatever")
	if reply[:3] != "201" {
		t.Fatalf("expected status 201 for unknown module, got %q", reply)
	}

	reply = dialAndSend(t, addr, "bridge nope")
	if reply[:3] != "202" {
		t.Fatalf("expected status 202 for unknown command, got %q", reply)
	}
}

func TestServerCloseCommandEndsConnection(t *testing.T) {
	addr, _ := startTestServer(t)

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	if _, err := conn.Write([]byte("hypervisor close\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	r := bufio.NewReader(conn)
	if _, err := r.ReadString('\n'); err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	// The server should close its end after replying; a further read
	// should observe EOF rather than hang.
	if _, err := r.ReadString('\n'); err == nil {
		t.Fatalf("expected EOF after hypervisor close, got another line")
	}
}
