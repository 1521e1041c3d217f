package testutil

import "encoding/binary"

// Биты флагов и порядок полей захардкожены независимо от серверного
// кодека, чтобы тесты проверяли wire format, а не кодек против самого
// себя. Value10 идёт сразу после Value4, хотя его бит — десятый.
const (
	frameValue0 uint32 = 1 << iota
	frameValue1
	frameValue2
	frameValue3
	frameValue4
	frameDataLength
	frameData
	frameErrorCode
	frameName
	frameSession
	frameValue10
)

// frameWriter собирает поля frame. Вызывающий обязан добавлять поля в
// каноническом порядке: Value0..Value4, Value10, Data, ErrorCode, Name,
// Session.
type frameWriter struct {
	flags  uint32
	fields []byte
}

func (w *frameWriter) u32(flag, v uint32) {
	w.flags |= flag
	w.fields = binary.LittleEndian.AppendUint32(w.fields, v)
}

// data пишет DataLength и Data. Длина включает NUL-терминатор; пустая
// строка даёт присутствующее поле из одного NUL.
func (w *frameWriter) data(s string) {
	payload := append([]byte(s), 0)
	w.flags |= frameDataLength | frameData
	w.fields = binary.LittleEndian.AppendUint32(w.fields, uint32(len(payload)))
	w.fields = append(w.fields, payload...)
}

func (w *frameWriter) name(s string) {
	w.flags |= frameName
	var field [20]byte
	copy(field[:], s)
	w.fields = append(w.fields, field[:]...)
}

func (w *frameWriter) session(nation, typ, access byte) {
	w.flags |= frameSession
	w.fields = binary.LittleEndian.AppendUint32(w.fields, 0x17171717) // crc1
	w.fields = binary.LittleEndian.AppendUint32(w.fields, 0x02010101) // crc2
	w.fields = append(w.fields, nation, 49, 49, typ, access, 0x01, 0x00)
	w.fields = append(w.fields, make([]byte, 35)...)
}

func (w *frameWriter) finish(code uint32) []byte {
	frame := make([]byte, 0, 8+len(w.fields))
	frame = binary.LittleEndian.AppendUint32(frame, code)
	frame = binary.LittleEndian.AppendUint32(frame, w.flags)
	return append(frame, w.fields...)
}

// MakeLoginFrame собирает Login request так, как его шлёт frontend:
// Value1=0, Value4=0, имя и session блок типа User.
func MakeLoginFrame(name string, nation byte) []byte {
	var w frameWriter
	w.u32(frameValue1, 0)
	w.u32(frameValue4, 0)
	w.name(name)
	w.session(nation, 5, 1) // type User, access Public
	return w.finish(600)    // Login
}

// MakeListRoomsFrame собирает ListRooms request.
func MakeListRoomsFrame() []byte {
	var w frameWriter
	w.u32(frameValue4, 0)
	return w.finish(200) // ListRooms
}

// MakeListUsersFrame собирает ListUsers request для комнаты roomID.
func MakeListUsersFrame(roomID uint32) []byte {
	var w frameWriter
	w.u32(frameValue2, roomID)
	w.u32(frameValue4, 0)
	return w.finish(400) // ListUsers
}

// MakeListGamesFrame собирает ListGames request для комнаты roomID.
func MakeListGamesFrame(roomID uint32) []byte {
	var w frameWriter
	w.u32(frameValue2, roomID)
	w.u32(frameValue4, 0)
	return w.finish(500) // ListGames
}

// MakeCreateRoomFrame собирает CreateRoom request. Data присутствует,
// но пустое — ровно так его шлёт frontend.
func MakeCreateRoomFrame(name string, nation byte) []byte {
	var w frameWriter
	w.u32(frameValue1, 0)
	w.u32(frameValue4, 0)
	w.data("")
	w.name(name)
	w.session(nation, 1, 1) // type Room, access Public
	return w.finish(700)    // CreateRoom
}

// MakeJoinFrame собирает Join request: userID входит в target.
func MakeJoinFrame(target, userID uint32) []byte {
	var w frameWriter
	w.u32(frameValue2, target)
	w.u32(frameValue10, userID)
	return w.finish(800) // Join
}

// MakeLeaveFrame собирает Leave request: userID выходит из target.
func MakeLeaveFrame(target, userID uint32) []byte {
	var w frameWriter
	w.u32(frameValue2, target)
	w.u32(frameValue10, userID)
	return w.finish(900) // Leave
}

// MakeCloseFrame собирает Close request для target.
func MakeCloseFrame(target uint32) []byte {
	var w frameWriter
	w.u32(frameValue10, target)
	return w.finish(1100) // Close
}

// MakeCreateGameFrame собирает CreateGame request: хост из roomID
// объявляет игру по адресу hostIP.
func MakeCreateGameFrame(roomID uint32, name, hostIP string, nation, access byte) []byte {
	var w frameWriter
	w.u32(frameValue1, 0)
	w.u32(frameValue2, roomID)
	w.u32(frameValue4, 0x800)
	w.data(hostIP)
	w.name(name)
	w.session(nation, 4, access) // type Game
	return w.finish(1200)        // CreateGame
}

// MakeChatFrame собирает ChatRoom request от fromID к targetID (комната
// для GRP, пользователь для PRV).
func MakeChatFrame(fromID, targetID uint32, text string) []byte {
	var w frameWriter
	w.u32(frameValue0, fromID)
	w.u32(frameValue3, targetID)
	w.data(text)
	return w.finish(1300) // ChatRoom
}

// MakeConnectGameFrame собирает ConnectGame request для игры gameID.
func MakeConnectGameFrame(gameID uint32) []byte {
	var w frameWriter
	w.u32(frameValue0, gameID)
	return w.finish(1326) // ConnectGame
}
