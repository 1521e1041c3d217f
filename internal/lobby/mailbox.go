package lobby

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"
)

// ErrMailboxClosed is returned by Send once the owning connection has
// started tearing down.
var ErrMailboxClosed = errors.New("mailbox closed")

// Mailbox is a connection's outbound queue. Handlers and broadcasters
// enqueue pre-encoded frames; a single pump goroutine owns the socket
// writes. Frames are shared by reference between recipients and must
// never be mutated after encoding.
type Mailbox struct {
	ch      chan []byte
	closeCh chan struct{}
	once    sync.Once
}

func newMailbox(capacity int) *Mailbox {
	return &Mailbox{
		ch:      make(chan []byte, capacity),
		closeCh: make(chan struct{}),
	}
}

// Send enqueues one frame. It blocks while the queue is full, which is
// the back-pressure the protocol wants: a slow reader slows its senders
// down by at most one enqueue each, until its own deadlines kill it.
func (m *Mailbox) Send(frame []byte) error {
	select {
	case m.ch <- frame:
		return nil
	case <-m.closeCh:
		return ErrMailboxClosed
	}
}

// Close stops accepting frames. Safe to call more than once. The pump
// flushes whatever is already queued before exiting, so replies enqueued
// right before a disconnect still reach the peer.
func (m *Mailbox) Close() {
	m.once.Do(func() {
		close(m.closeCh)
	})
}

// pump writes queued frames to conn until the mailbox closes or a write
// fails. Frames are drained in batches of up to batch and handed to the
// kernel as one writev call, preserving enqueue order.
func (m *Mailbox) pump(conn net.Conn, batch int, writeTimeout time.Duration) {
	bufs := make(net.Buffers, 0, batch)

	flush := func() bool {
		if len(bufs) == 0 {
			return true
		}
		if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			slog.Warn("set write deadline failed", "peer", conn.RemoteAddr(), "error", err)
			return false
		}
		_, err := bufs.WriteTo(conn)
		bufs = bufs[:0]
		if err != nil {
			slog.Warn("write failed", "peer", conn.RemoteAddr(), "error", err)
			return false
		}
		return true
	}

	for {
		select {
		case frame := <-m.ch:
			bufs = append(bufs, frame)
		drain:
			for len(bufs) < batch {
				select {
				case extra := <-m.ch:
					bufs = append(bufs, extra)
				default:
					break drain
				}
			}
			if !flush() {
				return
			}

		case <-m.closeCh:
			// Final drain: everything queued before Close still goes out.
			for {
				select {
				case frame := <-m.ch:
					bufs = append(bufs, frame)
					if len(bufs) == batch {
						if !flush() {
							return
						}
					}
				default:
					flush()
					return
				}
			}
		}
	}
}
