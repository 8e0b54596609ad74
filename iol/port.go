package iol

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/ubridge/ubridge/capture"
	"github.com/ubridge/ubridge/filter"
	"github.com/ubridge/ubridge/log"
	"github.com/ubridge/ubridge/nio"
)

// maxPortFrame is the port listener's "bytes_received ≤ 4096" bound from
// spec.md §4.6, independent of nio.MaxFrame (the external NIO's own cap).
const maxPortFrame = 4096

// recvPollInterval bounds every blocking recv on the IOL data plane so
// stop() can cancel a listener without closing its socket, mirroring
// nio.RecvPollInterval's role in the bridge package.
const recvPollInterval = 100 * time.Millisecond

// port is one populated entry of an IOL bridge's 256-slot port table: an
// external NIO, its own filter chain and optional capture sink, the
// precomputed 8-byte header for frames headed onto the backplane, and the
// peer's backplane socket path.
type port struct {
	key      int
	n        nio.NIO
	filters  *filter.Chain
	capture  *capture.Sink
	header   [HeaderLen]byte
	peerPath string

	cancel context.CancelFunc
}

// newPort builds a port entry per add_nio_udp's step 4: peer sockaddr and
// precomputed header (dst_id=iolID, src_id=applicationID, dst_port=
// src_port=portKey, type=DATA, channel=0).
func newPort(key int, n nio.NIO, peerPath string, iolID, applicationID int) *port {
	h := Header{
		DestinationID:   uint16(iolID),
		SourceID:        uint16(applicationID),
		DestinationPort: uint8(key),
		SourcePort:      uint8(key),
		MessageType:     MessageTypeData,
		Channel:         0,
	}
	return &port{
		key:      key,
		n:        n,
		filters:  filter.NewChain(),
		header:   h.Bytes(),
		peerPath: peerPath,
	}
}

func (p *port) destroy() {
	if p.cancel != nil {
		p.cancel()
	}
	p.filters.Reset()
	if p.capture != nil {
		p.capture.Close()
	}
	p.n.Close()
}

// listen is the port listener: reads from the port's external NIO,
// filters, captures, stamps the precomputed header on, and forwards onto
// the bridge's backplane socket addressed to the peer path. Transient
// errors continue the loop; anything else terminates it.
func (p *port) listen(ctx context.Context, wg *sync.WaitGroup, backplane *net.UnixConn, logger *log.Logger, bridgeName string) {
	defer wg.Done()
	buf := make([]byte, HeaderLen+maxPortFrame)
	peerAddr := &net.UnixAddr{Name: p.peerPath, Net: "unixgram"}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := p.n.Recv(buf[HeaderLen:])
		if err != nil {
			if isTransient(err) {
				continue
			}
			logger.Debugf("iol bridge %q port %d listener stopping: %v", bridgeName, p.key, err)
			return
		}
		if n > maxPortFrame {
			logger.Debugf("iol bridge %q port %d dropped oversized frame (%d bytes)", bridgeName, p.key, n)
			continue
		}

		frame := buf[:HeaderLen+n]
		payload := frame[HeaderLen:]
		if p.filters.Run(payload) == filter.Drop {
			continue
		}
		if p.capture != nil {
			if err := p.capture.Write(payload); err != nil {
				logger.Debugf("iol bridge %q port %d capture write failed: %v", bridgeName, p.key, err)
			}
		}

		copy(frame[:HeaderLen], p.header[:])
		if _, _, err := backplane.WriteMsgUnix(frame, nil, peerAddr); err != nil {
			if isTransient(err) {
				continue
			}
			logger.Debugf("iol bridge %q port %d listener stopping on send: %v", bridgeName, p.key, err)
			return
		}
	}
}

func isTransient(err error) bool {
	if errors.Is(err, nio.ErrTimeout) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ENETDOWN) || errors.Is(err, syscall.ENOENT) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	return false
}
