package integration

import (
	"github.com/wormnetgo/server/internal/protocol"
	"github.com/wormnetgo/server/internal/testutil"
)

// TestGameHostingFlow: хост за loopback-прокси регистрирует игру с
// заявленным адресом, второй игрок находит её и получает адрес хоста.
func (s *LobbySuite) TestGameHostingFlow() {
	host := s.login("hoster")
	roomID := s.createRoom(host, "Ranked")
	s.joinRoom(host, roomID)
	gameID := s.hostGame(host, roomID, "203.0.113.50")

	joiner := s.login("joiner")
	_, err := host.Expect(protocol.CodeLogin) // announce джойнера
	s.Require().NoError(err)
	s.joinRoom(joiner, roomID)
	_, err = host.Expect(protocol.CodeJoin)
	s.Require().NoError(err)

	// Игра в списке комнаты: ник хоста, заявленный адрес
	s.Require().NoError(joiner.Send(testutil.MakeListGamesFrame(roomID)))
	games, err := joiner.ReadList()
	s.Require().NoError(err)
	s.Require().Len(games, 1)

	id, _ := games[0].Value1()
	s.Equal(gameID, id)
	addr, _ := games[0].Data()
	s.Equal("203.0.113.50", addr)
	name, _ := games[0].Name()
	s.Equal("hoster", name, "game is listed under the host's nick")
	sess, ok := games[0].Session()
	s.Require().True(ok)
	s.Equal(protocol.SessionGame, sess.Type)
	s.Equal(protocol.AccessProtected, sess.Access)

	// ConnectGame отдаёт адрес хоста
	s.Require().NoError(joiner.Send(testutil.MakeConnectGameFrame(gameID)))
	reply, err := joiner.Expect(protocol.CodeConnectGameReply)
	s.Require().NoError(err)

	errCode, _ := reply.ErrorCode()
	s.Zero(errCode)
	addr, _ = reply.Data()
	s.Equal("203.0.113.50", addr)
}

// TestBogusHostAddrRefused: мусор вместо адреса — reply с ошибкой 2 и
// фейковая GRP-строка с объяснением, игра не регистрируется.
func (s *LobbySuite) TestBogusHostAddrRefused() {
	host := s.login("cheater")
	roomID := s.createRoom(host, "Shady")
	s.joinRoom(host, roomID)

	s.Require().NoError(host.Send(testutil.MakeCreateGameFrame(roomID, "game", "not-an-addr", 0, 2)))

	reply, err := host.Expect(protocol.CodeCreateGameReply)
	s.Require().NoError(err)
	id, _ := reply.Value1()
	s.Zero(id)
	errCode, _ := reply.ErrorCode()
	s.Equal(uint32(2), errCode)

	notice, err := host.Expect(protocol.CodeChatRoom)
	s.Require().NoError(err)
	text, _ := notice.Data()
	s.Contains(text, "fkNetcode")

	s.Equal(0, s.reg.GameCount())
}
