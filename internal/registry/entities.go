package registry

import (
	"net/netip"

	"github.com/wormnetgo/server/internal/protocol"
)

// Outbox is where frames addressed to a user get queued. Implemented by
// the connection's mailbox; stored here so broadcasts can reach a user
// without touching the network layer.
type Outbox interface {
	Send(frame []byte) error
}

// User is one authenticated connection.
type User struct {
	ID      uint32
	Name    string
	Session protocol.SessionInfo
	RoomID  uint32 // 0 while in the lobby
	Outbox  Outbox
}

// Room is a named channel users gather in.
type Room struct {
	ID      uint32
	Name    string
	Session protocol.SessionInfo
}

// Game is a hosted match advertised inside a room. Name always equals the
// hosting user's name; IP is where joiners connect.
type Game struct {
	ID      uint32
	Name    string
	RoomID  uint32
	IP      netip.Addr
	Session protocol.SessionInfo
}
