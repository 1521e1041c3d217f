package integration

import (
	"github.com/wormnetgo/server/internal/protocol"
	"github.com/wormnetgo/server/internal/testutil"
)

// chatRoomPair поднимает двух игроков в общей комнате. Возвращает
// клиентов с пустыми входящими очередями.
func (s *LobbySuite) chatRoomPair(roomName string) (alice, bob *testutil.LobbyClient, roomID uint32) {
	s.T().Helper()

	alice = s.login("alice")
	roomID = s.createRoom(alice, roomName)
	s.joinRoom(alice, roomID)

	bob = s.login("bob")
	_, err := alice.Expect(protocol.CodeLogin) // announce боба
	s.Require().NoError(err)
	s.joinRoom(bob, roomID)
	_, err = alice.Expect(protocol.CodeJoin)
	s.Require().NoError(err)

	return alice, bob, roomID
}

// TestRoomChat: групповое сообщение видят соседи по комнате и только они.
func (s *LobbySuite) TestRoomChat() {
	alice, bob, roomID := s.chatRoomPair("Chatty")

	outsider := s.login("carol")
	_, err := alice.Expect(protocol.CodeLogin) // announce кэрол
	s.Require().NoError(err)
	_, err = bob.Expect(protocol.CodeLogin)
	s.Require().NoError(err)

	text := "GRP:[ alice ]  hello room"
	s.Require().NoError(alice.Send(testutil.MakeChatFrame(alice.UserID(), roomID, text)))

	reply, err := alice.Expect(protocol.CodeChatRoomReply)
	s.Require().NoError(err)
	errCode, _ := reply.ErrorCode()
	s.Zero(errCode)

	relay, err := bob.Expect(protocol.CodeChatRoom)
	s.Require().NoError(err)
	speaker, _ := relay.Value0()
	s.Equal(alice.UserID(), speaker)
	got, _ := relay.Data()
	s.Equal(text, got)

	// До кэрол в лобби ничего не долетало: её очередь чиста, ListRooms
	// отвечает без посторонних вкраплений
	s.Require().NoError(outsider.Send(testutil.MakeListRoomsFrame()))
	rooms, err := outsider.ReadList()
	s.Require().NoError(err)
	s.Len(rooms, 1)
}

// TestPrivateChat: личное сообщение уходит одному адресату.
func (s *LobbySuite) TestPrivateChat() {
	alice, bob, _ := s.chatRoomPair("Whispers")

	text := "PRV:[ bob ]  for your eyes only"
	s.Require().NoError(bob.Send(testutil.MakeChatFrame(bob.UserID(), alice.UserID(), text)))

	reply, err := bob.Expect(protocol.CodeChatRoomReply)
	s.Require().NoError(err)
	errCode, _ := reply.ErrorCode()
	s.Zero(errCode)

	relay, err := alice.Expect(protocol.CodeChatRoom)
	s.Require().NoError(err)
	speaker, _ := relay.Value0()
	s.Equal(bob.UserID(), speaker)
	target, _ := relay.Value3()
	s.Equal(alice.UserID(), target)
	got, _ := relay.Data()
	s.Equal(text, got)
}

// TestForgedChatPrefixRefused: подпись чужим именем отклоняется и никому
// не пересылается.
func (s *LobbySuite) TestForgedChatPrefixRefused() {
	alice, bob, roomID := s.chatRoomPair("Forgery")

	s.Require().NoError(bob.Send(testutil.MakeChatFrame(bob.UserID(), roomID, "GRP:[ alice ]  not really bob")))

	reply, err := bob.Expect(protocol.CodeChatRoomReply)
	s.Require().NoError(err)
	errCode, _ := reply.ErrorCode()
	s.Equal(uint32(1), errCode)

	// Подделка не дошла: следующее, что слышит алиса — штатный Leave
	s.Require().NoError(bob.Send(testutil.MakeLeaveFrame(roomID, bob.UserID())))
	_, err = bob.Expect(protocol.CodeLeaveReply)
	s.Require().NoError(err)

	leave, err := alice.Expect(protocol.CodeLeave)
	s.Require().NoError(err)
	left, _ := leave.Value10()
	s.Equal(bob.UserID(), left)
}
