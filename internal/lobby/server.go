package lobby

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/wormnetgo/server/internal/config"
	"github.com/wormnetgo/server/internal/registry"
)

// Server accepts lobby connections and runs one Conn per client.
type Server struct {
	cfg     config.Server
	reg     *registry.Registry
	handler *Handler
	gate    *ipGate

	listener net.Listener
	mu       sync.Mutex
}

// NewServer wires a lobby server around the given registry.
func NewServer(cfg config.Server, reg *registry.Registry) *Server {
	return &Server{
		cfg:     cfg,
		reg:     reg,
		handler: NewHandler(reg),
		gate:    newIPGate(cfg.AcceptInterval),
	}
}

// Addr возвращает адрес, на котором слушает сервер.
// Возвращает nil если сервер ещё не запущен.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close закрывает listener и останавливает приём новых соединений.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	return s.Serve(ctx, ln)
}

// Serve принимает готовый listener и запускает accept loop.
// Используется для тестирования с произвольным listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	slog.Info("lobby server started", "address", ln.Addr())

	var wg sync.WaitGroup
	s.acceptLoop(ctx, &wg, ln)

	if ctx.Err() != nil {
		// Draining connections must not feed the ID pool anymore.
		s.reg.Stop()
	}
	wg.Wait()

	slog.Info("lobby server stopped")
	return nil
}

func (s *Server) acceptLoop(ctx context.Context, wg *sync.WaitGroup, ln net.Listener) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
					return
				}
				slog.Error("failed to accept new connection", "error", err)
				continue
			}

			peer := remoteAddr(conn)
			if !s.gate.allow(peer, time.Now()) {
				slog.Warn("connection throttled", "peer", peer)
				conn.Close()
				continue
			}

			if tc, ok := conn.(*net.TCPConn); ok {
				if err := tc.SetNoDelay(true); err != nil {
					slog.Debug("set nodelay failed", "peer", peer, "error", err)
				}
			}

			wg.Go(func() {
				s.handleConnection(ctx, conn, peer)
			})
		}
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn, peer netip.Addr) {
	done := make(chan struct{})
	defer close(done)
	defer conn.Close()

	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	slog.Info("new connection", "peer", peer)

	mb := newMailbox(s.cfg.MailboxCapacity)
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		mb.pump(conn, s.cfg.WriteBatch, s.cfg.WriteTimeout)
	}()

	c := newConn(conn, peer, s.reg, s.handler, mb,
		timers{loginTimeout: s.cfg.LoginTimeout, idleTimeout: s.cfg.IdleTimeout},
		s.cfg.FramesPerSecond, s.cfg.RateLimitStrikes)

	err := c.serve()

	onShutdown := ctx.Err() != nil
	switch {
	case onShutdown:
		slog.Debug("connection closed by shutdown", "peer", peer)
	case err == nil:
		slog.Info("peer left", "peer", peer, "user", c.userID)
	case errors.Is(err, errLoginRefused):
		// Already reported by the login path.
	default:
		slog.Warn("closing connection", "peer", peer, "user", c.userID, "error", err)
	}

	c.teardown(onShutdown, pumpDone)
}

// remoteAddr extracts the peer IP. Non-TCP test conns yield the zero
// Addr, which matches nothing the handlers compare against.
func remoteAddr(conn net.Conn) netip.Addr {
	ap, err := netip.ParseAddrPort(conn.RemoteAddr().String())
	if err != nil {
		return netip.Addr{}
	}
	return ap.Addr().Unmap()
}
