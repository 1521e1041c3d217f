package lobby

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/wormnetgo/server/internal/protocol"
	"github.com/wormnetgo/server/internal/registry"
)

// errLoginRefused marks the polite end of a connection whose name was
// taken: the refusal reply is already queued and must still be flushed.
var errLoginRefused = errors.New("login refused")

// Conn is one client connection's runtime state. A single goroutine owns
// the read side; the mailbox pump owns the write side.
type Conn struct {
	conn net.Conn
	peer netip.Addr

	reg     *registry.Registry
	handler *Handler
	cfg     timers

	mb      *Mailbox
	limiter *frameLimiter
	state   atomic.Int32

	userID uint32 // set once, by the login path

	buf []byte // undecoded inbound bytes
	rd  []byte // read scratch
}

// timers is the slice of the server config a connection needs.
type timers struct {
	loginTimeout time.Duration
	idleTimeout  time.Duration
}

func newConn(conn net.Conn, peer netip.Addr, reg *registry.Registry, handler *Handler, mb *Mailbox, cfg timers, framesPerSecond, rateStrikes int) *Conn {
	c := &Conn{
		conn:    conn,
		peer:    peer,
		reg:     reg,
		handler: handler,
		cfg:     cfg,
		mb:      mb,
		limiter: newFrameLimiter(framesPerSecond, rateStrikes),
		rd:      make([]byte, 2048),
	}
	c.state.Store(int32(StateUnauthenticated))
	return c
}

func (c *Conn) State() ConnState {
	return ConnState(c.state.Load())
}

// serve runs the read side to completion. nil means the peer hung up
// cleanly; anything else names why the server is hanging up instead.
func (c *Conn) serve() error {
	pkt, err := c.nextFrame(c.cfg.loginTimeout)
	if err != nil {
		return fmt.Errorf("waiting for login: %w", err)
	}
	if pkt.Code() != protocol.CodeLogin {
		return fmt.Errorf("first frame is %s, want Login", pkt.Code())
	}

	id, ok, err := c.handler.Login(c.mb, pkt, c.peer)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if !ok {
		return errLoginRefused
	}
	c.userID = id
	c.state.Store(int32(StateAuthenticated))

	for {
		pkt, err := c.nextFrame(c.cfg.idleTimeout)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		if c.limiter.note(time.Now()) {
			return fmt.Errorf("frame rate abuse from user %d", c.userID)
		}

		if err := c.handler.Handle(c.mb, pkt, c.userID, c.peer); err != nil {
			return fmt.Errorf("handling %s: %w", pkt.Code(), err)
		}
	}
}

// nextFrame returns the next complete frame, reading more bytes as
// needed. The deadline covers the whole frame: trickling bytes forever
// does not keep a connection alive.
func (c *Conn) nextFrame(ttl time.Duration) (*protocol.Packet, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(ttl)); err != nil {
		return nil, fmt.Errorf("setting read deadline: %w", err)
	}

	for {
		pkt, n, err := protocol.Decode(c.buf)
		if err != nil {
			return nil, fmt.Errorf("malformed frame: %w", err)
		}
		if pkt != nil {
			c.buf = c.buf[n:]
			return pkt, nil
		}

		n, err = c.conn.Read(c.rd)
		if n > 0 {
			c.buf = append(c.buf, c.rd[:n]...)
		}
		if err != nil {
			return nil, err
		}
	}
}

// teardown finishes a connection: cascade first (so survivors hear about
// it), then close the mailbox and wait for the pump to flush, then the
// socket. onShutdown suppresses the cascade; everyone is going away and
// farewell frames would only race the listener closing.
func (c *Conn) teardown(onShutdown bool, pumpDone <-chan struct{}) {
	c.state.Store(int32(StateDraining))

	if !onShutdown && c.userID != 0 {
		disconnectUser(c.reg, c.userID)
	}

	c.mb.Close()
	<-pumpDone
	if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		slog.Debug("closing connection", "peer", c.peer, "error", err)
	}
}
