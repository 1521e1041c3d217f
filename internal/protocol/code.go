package protocol

// Code is the verb carried in a frame's header.
type Code uint32

const (
	CodeListRooms        Code = 200
	CodeListItem         Code = 350
	CodeListEnd          Code = 351
	CodeListUsers        Code = 400
	CodeListGames        Code = 500
	CodeLogin            Code = 600
	CodeLoginReply       Code = 601
	CodeCreateRoom       Code = 700
	CodeCreateRoomReply  Code = 701
	CodeJoin             Code = 800
	CodeJoinReply        Code = 801
	CodeLeave            Code = 900
	CodeLeaveReply       Code = 901
	CodeDisconnectUser   Code = 1000
	CodeClose            Code = 1100
	CodeCloseReply       Code = 1101
	CodeCreateGame       Code = 1200
	CodeCreateGameReply  Code = 1201
	CodeChatRoom         Code = 1300
	CodeChatRoomReply    Code = 1301
	CodeConnectGame      Code = 1326
	CodeConnectGameReply Code = 1327
)

func (c Code) String() string {
	switch c {
	case CodeListRooms:
		return "ListRooms"
	case CodeListItem:
		return "ListItem"
	case CodeListEnd:
		return "ListEnd"
	case CodeListUsers:
		return "ListUsers"
	case CodeListGames:
		return "ListGames"
	case CodeLogin:
		return "Login"
	case CodeLoginReply:
		return "LoginReply"
	case CodeCreateRoom:
		return "CreateRoom"
	case CodeCreateRoomReply:
		return "CreateRoomReply"
	case CodeJoin:
		return "Join"
	case CodeJoinReply:
		return "JoinReply"
	case CodeLeave:
		return "Leave"
	case CodeLeaveReply:
		return "LeaveReply"
	case CodeDisconnectUser:
		return "DisconnectUser"
	case CodeClose:
		return "Close"
	case CodeCloseReply:
		return "CloseReply"
	case CodeCreateGame:
		return "CreateGame"
	case CodeCreateGameReply:
		return "CreateGameReply"
	case CodeChatRoom:
		return "ChatRoom"
	case CodeChatRoomReply:
		return "ChatRoomReply"
	case CodeConnectGame:
		return "ConnectGame"
	case CodeConnectGameReply:
		return "ConnectGameReply"
	default:
		return "Unknown"
	}
}
