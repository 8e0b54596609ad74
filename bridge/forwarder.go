package bridge

import (
	"context"
	"errors"
	"net"
	"os"
	"syscall"

	"github.com/ubridge/ubridge/filter"
	"github.com/ubridge/ubridge/nio"
)

// maxFrame is the per-recv buffer bound from spec.md §4.4.
const maxFrame = nio.MaxFrame

// forward runs one direction of a bridge's bidirectional loop: recv from
// rx, walk the filter chain, write to the capture sink if configured, then
// send to tx. It implements the eight numbered steps of spec.md §4.4
// exactly, translating transient I/O errors (including nio.ErrTimeout,
// this port's stand-in for "blocking call woke up with nothing to do")
// into "continue" and everything else into "break".
func (b *Bridge) forward(ctx context.Context, rx, tx nio.NIO) {
	defer b.wg.Done()
	buf := make([]byte, maxFrame)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := rx.Recv(buf)
		if err != nil {
			if isTransient(err) {
				continue
			}
			b.logger.Debugf("forwarder for bridge %q stopping: %v", b.name, err)
			return
		}

		if n > maxFrame {
			b.logger.Debugf("bridge %q dropped oversized frame (%d bytes)", b.name, n)
			continue
		}

		frame := buf[:n]

		if b.filters.Run(frame) == filter.Drop {
			continue
		}

		if sink := b.capture; sink != nil {
			if err := sink.Write(frame); err != nil {
				b.logger.Debugf("bridge %q capture write failed: %v", b.name, err)
			}
		}

		if _, err := tx.Send(frame); err != nil {
			if isTransient(err) || errors.Is(err, syscall.EIO) {
				continue
			}
			b.logger.Debugf("forwarder for bridge %q stopping on send error: %v", b.name, err)
			return
		}
	}
}

// isTransient reports whether err is one of the conditions spec.md §4.4
// treats as "log at debug and continue the forwarding loop": a recv/send
// timeout (this port's polling-based cancellation primitive), a refused
// connection, a down network/interface, or a missing peer path (ENOENT).
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
