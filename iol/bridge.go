package iol

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/ubridge/ubridge/filter"
	"github.com/ubridge/ubridge/log"
	"github.com/ubridge/ubridge/nio"
)

var (
	ErrSameID         = errors.New("iol: iol_id equals this bridge's application_id")
	ErrBadPortKey     = errors.New("iol: bay/unit resolves to a port_key outside [0,256)")
	ErrAlreadyRunning = errors.New("iol: bridge already running")
	ErrNotRunning     = errors.New("iol: bridge not running")
)

// Bridge is an IOL fan-out bridge: one backplane UNIX datagram socket
// multiplexing up to MaxPorts logical ports, demultiplexed by the 8-byte
// IOL header. All mutation happens through Registry methods holding the
// single process-wide control mutex, matching spec.md §4.6/§5.
type Bridge struct {
	name          string
	applicationID int

	dir      string
	sockPath string
	lockPath string
	lock     *flock.Flock
	conn     *net.UnixConn

	ports   [MaxPorts]*port
	running bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *log.Logger
}

// create implements spec.md §4.6's create(name, application_id): ensures
// the netio directory, takes the advisory lock, unlinks any stale socket,
// and binds a fresh one. The port table starts zeroed (all 256 slots nil).
func create(name string, applicationID int, logger *log.Logger) (*Bridge, error) {
	if logger == nil {
		logger = log.NewDiscardLogger()
	}
	dir, err := netioDir()
	if err != nil {
		return nil, err
	}
	lp := lockPath(dir, applicationID)
	lock, err := acquireLock(lp)
	if err != nil {
		return nil, err
	}

	sp := socketPath(dir, applicationID)
	if err := unlinkStaleSocket(sp); err != nil {
		lock.Unlock()
		return nil, err
	}

	addr := &net.UnixAddr{Name: sp, Net: "unixgram"}
	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("iol: bind backplane socket %s: %w", sp, err)
	}

	return &Bridge{
		name:          name,
		applicationID: applicationID,
		dir:           dir,
		sockPath:      sp,
		lockPath:      lp,
		lock:          lock,
		conn:          conn,
		logger:        logger,
	}, nil
}

func (b *Bridge) Name() string          { return b.name }
func (b *Bridge) ApplicationID() int    { return b.applicationID }
func (b *Bridge) Running() bool         { return b.running }
func (b *Bridge) SocketPath() string    { return b.sockPath }

// addNIOUDP implements spec.md §4.6's add_nio_udp(name, iol_id, bay, unit,
// local_port, host, remote_port): validates iol_id/port_key, replaces any
// existing entry at that key (its listener is cancelled and its NIO
// closed, but the listener goroutine is not waited for), records the
// peer path and precomputed header, and — if the bridge is already
// running — spawns the new port's listener immediately.
func (b *Bridge) addNIOUDP(iolID, bay, unit, localPort int, host string, remotePort int) error {
	if iolID == b.applicationID {
		return ErrSameID
	}
	key := PortKey(bay, unit)
	if key < 0 || key >= MaxPorts {
		return ErrBadPortKey
	}

	n, err := nio.NewUDP(localPort, host, remotePort)
	if err != nil {
		return err
	}

	if existing := b.ports[key]; existing != nil {
		existing.destroy()
	}

	peerPath := socketPath(b.dir, iolID)
	p := newPort(key, n, peerPath, iolID, b.applicationID)
	b.ports[key] = p

	if b.running {
		b.spawnPort(p)
	}
	return nil
}

func (b *Bridge) spawnPort(p *port) {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	b.wg.Add(1)
	go p.listen(ctx, &b.wg, b.conn, b.logger, b.name)
}

// start spawns the bridge listener and every populated port's listener.
func (b *Bridge) start() error {
	if b.running {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.wg.Add(1)
	go b.listenBackplane(ctx)
	for _, p := range b.ports {
		if p != nil {
			b.spawnPort(p)
		}
	}
	b.running = true
	return nil
}

// stop cancels and joins the bridge listener and every port listener,
// without closing the backplane socket or any port's NIO — matching the
// bridge package's non-destructive stop/start cycling.
func (b *Bridge) stop() error {
	if !b.running {
		return ErrNotRunning
	}
	b.cancel()
	for _, p := range b.ports {
		if p != nil && p.cancel != nil {
			p.cancel()
		}
	}
	b.wg.Wait()
	b.running = false
	return nil
}

// destroy implements spec.md §4.6's delete(name): cancel every listener,
// close/unlink the backplane socket, release the advisory lock, and
// destroy the port table and every port's NIO, in reverse order of
// construction.
func (b *Bridge) destroy() {
	if b.running {
		b.stop()
	}
	for i, p := range b.ports {
		if p != nil {
			p.destroy()
			b.ports[i] = nil
		}
	}
	b.conn.Close()
	unlinkStaleSocket(b.sockPath)
	b.lock.Unlock()
	unlinkStaleSocket(b.lockPath)
}

// listenBackplane is the bridge listener: reads a datagram on the
// backplane socket, requires len > HeaderLen, extracts port_key from the
// destination_port field, strips the header, runs that port's filter
// chain, writes to that port's capture sink, and forwards the stripped
// payload through port_table[port_key].destination_nio. Silently drops if
// that slot is empty.
func (b *Bridge) listenBackplane(ctx context.Context) {
	defer b.wg.Done()
	buf := make([]byte, HeaderLen+nio.MaxFrame)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_ = b.conn.SetReadDeadline(time.Now().Add(recvPollInterval))
		n, _, err := b.conn.ReadFromUnix(buf)
		if err != nil {
			if isTransient(err) {
				continue
			}
			b.logger.Debugf("iol bridge %q listener stopping: %v", b.name, err)
			return
		}
		if n <= HeaderLen {
			continue
		}

		h := DecodeHeader(buf[:HeaderLen])
		key := int(h.DestinationPort)
		if key < 0 || key >= MaxPorts {
			continue
		}
		p := b.ports[key]
		if p == nil {
			continue
		}

		payload := buf[HeaderLen:n]
		if p.filters.Run(payload) == filter.Drop {
			continue
		}
		if p.capture != nil {
			if err := p.capture.Write(payload); err != nil {
				b.logger.Debugf("iol bridge %q port %d capture write failed: %v", b.name, key, err)
			}
		}
		if _, err := p.n.Send(payload); err != nil {
			b.logger.Debugf("iol bridge %q port %d send failed: %v", b.name, key, err)
		}
	}
}
