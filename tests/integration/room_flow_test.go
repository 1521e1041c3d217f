package integration

import (
	"github.com/wormnetgo/server/internal/protocol"
	"github.com/wormnetgo/server/internal/testutil"
)

// TestRoomLifecycle проходит полный путь комнаты: создание, листинг,
// заход второго игрока, выходы и жатва опустевшей комнаты.
func (s *LobbySuite) TestRoomLifecycle() {
	alice := s.login("alice")
	roomID := s.createRoom(alice, "Anything Goes")
	s.joinRoom(alice, roomID)

	bob := s.login("bob")
	_, err := alice.Expect(protocol.CodeLogin) // announce боба
	s.Require().NoError(err)

	// Комната видна из лобби
	s.Require().NoError(bob.Send(testutil.MakeListRoomsFrame()))
	rooms, err := bob.ReadList()
	s.Require().NoError(err)
	s.Require().Len(rooms, 1)

	id, _ := rooms[0].Value1()
	s.Equal(roomID, id)
	name, _ := rooms[0].Name()
	s.Equal("Anything Goes", name)
	sess, ok := rooms[0].Session()
	s.Require().True(ok)
	s.Equal(protocol.SessionRoom, sess.Type)

	// Боб заходит, алиса слышит Join
	s.joinRoom(bob, roomID)
	join, err := alice.Expect(protocol.CodeJoin)
	s.Require().NoError(err)
	target, _ := join.Value2()
	s.Equal(roomID, target)
	joiner, _ := join.Value10()
	s.Equal(bob.UserID(), joiner)

	// В комнате двое
	s.Require().NoError(bob.Send(testutil.MakeListUsersFrame(roomID)))
	users, err := bob.ReadList()
	s.Require().NoError(err)
	s.Len(users, 2)

	// Боб уходит: ему reply, алисе announce, комната живёт дальше
	s.Require().NoError(bob.Send(testutil.MakeLeaveFrame(roomID, bob.UserID())))
	reply, err := bob.Expect(protocol.CodeLeaveReply)
	s.Require().NoError(err)
	errCode, _ := reply.ErrorCode()
	s.Zero(errCode)

	leave, err := alice.Expect(protocol.CodeLeave)
	s.Require().NoError(err)
	left, _ := leave.Value10()
	s.Equal(bob.UserID(), left)
	s.Equal(1, s.reg.RoomCount())

	// Алиса уходит последней: комнату жнут, боб из лобби слышит
	// Leave и строго после него Close
	s.Require().NoError(alice.Send(testutil.MakeLeaveFrame(roomID, alice.UserID())))
	_, err = alice.Expect(protocol.CodeLeaveReply)
	s.Require().NoError(err)

	leave, err = bob.Expect(protocol.CodeLeave)
	s.Require().NoError(err)
	left, _ = leave.Value10()
	s.Equal(alice.UserID(), left)

	closePkt, err := bob.Expect(protocol.CodeClose)
	s.Require().NoError(err)
	closed, _ := closePkt.Value10()
	s.Equal(roomID, closed)

	s.Equal(0, s.reg.RoomCount())
}

// TestDuplicateRoomNameRefused: имя комнаты занято без учёта регистра.
func (s *LobbySuite) TestDuplicateRoomNameRefused() {
	alice := s.login("alice")
	s.createRoom(alice, "Clones")

	bob := s.login("bob")
	s.Require().NoError(bob.Send(testutil.MakeCreateRoomFrame("clones", 0)))

	reply, err := bob.Expect(protocol.CodeCreateRoomReply)
	s.Require().NoError(err)

	id, _ := reply.Value1()
	s.Zero(id)
	errCode, _ := reply.ErrorCode()
	s.Equal(uint32(1), errCode)
	s.Equal(1, s.reg.RoomCount())
}
