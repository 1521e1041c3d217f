package integration

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/wormnetgo/server/internal/config"
	"github.com/wormnetgo/server/internal/lobby"
	"github.com/wormnetgo/server/internal/protocol"
	"github.com/wormnetgo/server/internal/registry"
	"github.com/wormnetgo/server/internal/testutil"
)

// TestLoginHandshake проверяет полный login flow: ID из серверного
// диапазона, announce доходит до уже подключённых.
func (s *LobbySuite) TestLoginHandshake() {
	alice := s.login("alice")
	s.GreaterOrEqual(alice.UserID(), uint32(registry.IDStart))

	bob := s.newClient()
	bobID := bob.MustLogin("bob")
	s.NotEqual(alice.UserID(), bobID)

	// Алиса слышит announce о новом пользователе
	announce, err := alice.Expect(protocol.CodeLogin)
	s.Require().NoError(err)

	id, _ := announce.Value1()
	s.Equal(bobID, id)
	name, _ := announce.Name()
	s.Equal("bob", name)
	sess, ok := announce.Session()
	s.Require().True(ok, "announce without session block")
	s.Equal(protocol.SessionUser, sess.Type)
}

// TestLoginNameCollision: имена сравниваются без учёта регистра, отказ
// фатален для соединения.
func (s *LobbySuite) TestLoginNameCollision() {
	s.login("Boggy")

	imposter := s.newClient()
	_, err := imposter.Login("BOGGY")
	s.Require().Error(err, "second login with the same name should be refused")
	s.Contains(err.Error(), "error 1")

	// После отказа сервер закрывает соединение сам
	_, err = imposter.ReadPacket()
	s.Error(err, "refused connection should be closed by the server")

	s.Equal(1, s.reg.UserCount())
}

// TestSilentClientDropped: соединение без Login живёт не дольше
// login timeout. Отдельный сервер, чтобы не трогать таймауты suite.
func (s *LobbySuite) TestSilentClientDropped() {
	cfg := config.DefaultServer()
	cfg.AcceptInterval = 0
	cfg.LoginTimeout = 100 * time.Millisecond

	srv := lobby.NewServer(cfg, registry.New())
	listener, addr := testutil.ListenTCP(s.T())

	ctx, cancel := context.WithCancel(context.Background())
	s.T().Cleanup(cancel)
	go func() {
		if err := srv.Serve(ctx, listener); err != nil {
			s.T().Logf("lobby server error: %v", err)
		}
	}()
	s.Require().NoError(testutil.WaitForTCPReady(addr, 5*time.Second))

	conn, err := net.Dial("tcp", addr)
	s.Require().NoError(err)
	defer conn.Close()

	// Молчим. Сервер вешает трубку первым.
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(3 * time.Second)))
	_, err = conn.Read(make([]byte, 1))
	s.Require().ErrorIs(err, io.EOF, "server should close a silent connection")
}
