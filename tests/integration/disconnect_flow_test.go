package integration

import (
	"github.com/wormnetgo/server/internal/protocol"
)

// TestHostDropCascade: хост с зарегистрированной игрой молча рвёт
// соединение. Свидетель в комнате слышит каскад в протокольном порядке:
// игра умирает (Leave, Close), игра выписывается из комнаты, затем
// уходит сам пользователь. Комната с живым свидетелем переживает всё.
func (s *LobbySuite) TestHostDropCascade() {
	host := s.login("doomed")
	roomID := s.createRoom(host, "Fragile")
	s.joinRoom(host, roomID)
	gameID := s.hostGame(host, roomID, "203.0.113.50")

	witness := s.login("witness")
	_, err := host.Expect(protocol.CodeLogin) // announce свидетеля
	s.Require().NoError(err)
	s.joinRoom(witness, roomID)

	s.Require().NoError(host.Close())

	// 1. Хост покидает игру
	leave, err := witness.Expect(protocol.CodeLeave)
	s.Require().NoError(err)
	target, _ := leave.Value2()
	s.Equal(gameID, target)
	left, _ := leave.Value10()
	s.Equal(host.UserID(), left)

	// 2. Игра закрывается
	closePkt, err := witness.Expect(protocol.CodeClose)
	s.Require().NoError(err)
	closed, _ := closePkt.Value10()
	s.Equal(gameID, closed)

	// 3. Игра выписывается из комнаты
	leave, err = witness.Expect(protocol.CodeLeave)
	s.Require().NoError(err)
	target, _ = leave.Value2()
	s.Equal(roomID, target)
	left, _ = leave.Value10()
	s.Equal(gameID, left)

	// 4. Пользователь исчезает
	disc, err := witness.Expect(protocol.CodeDisconnectUser)
	s.Require().NoError(err)
	gone, _ := disc.Value10()
	s.Equal(host.UserID(), gone)

	// Свидетель всё ещё в комнате, комната жива
	s.Equal(1, s.reg.RoomCount())
	s.Equal(1, s.reg.UserCount())
	s.Equal(0, s.reg.GameCount())
}
