package lobby

import (
	"log/slog"

	"github.com/wormnetgo/server/internal/protocol"
	"github.com/wormnetgo/server/internal/registry"
)

// disconnectUser removes a user and everything that existed only because
// of it, announcing each removal to the survivors. The order is part of
// the protocol: a hosted game dies first (Leave, then Close), then the
// room membership, then the user itself. IDs go back to the pool last,
// after every frame referencing them has been enqueued.
func disconnectUser(reg *registry.Registry, userID uint32) {
	if userID < registry.IDStart {
		return
	}

	user, ok := reg.DeleteUser(userID)
	if !ok {
		return
	}

	roomID := user.RoomID
	leftID := userID
	gameID := uint32(0)

	if game, found := reg.GameByName(user.Name); found {
		reg.DeleteGame(game.ID)
		gameID = game.ID

		broadcastAll(reg, encodeOrLog(protocol.NewPacket(protocol.CodeLeave).
			WithValue2(game.ID).
			WithValue10(userID)))
		broadcastAll(reg, encodeOrLog(protocol.NewPacket(protocol.CodeClose).
			WithValue10(game.ID)))

		roomID = game.RoomID
		leftID = game.ID
	}

	leaveRoom(reg, roomID, leftID)

	broadcastAll(reg, encodeOrLog(protocol.NewPacket(protocol.CodeDisconnectUser).
		WithValue10(userID)))

	reg.RecycleID(userID)
	if gameID != 0 {
		reg.RecycleID(gameID)
	}

	slog.Info("user disconnected", "user", userID, "name", user.Name)
}

// leaveRoom announces that leftID is out of roomID and reaps the room if
// nobody and nothing stays behind. Survivors see Leave, and for a dead
// room a Close strictly after it. leftID itself gets neither: either it
// asked to leave and gets its reply instead, or its connection is gone.
func leaveRoom(reg *registry.Registry, roomID, leftID uint32) {
	if _, exists := reg.RoomByID(roomID); !exists {
		return
	}

	abandoned := !reg.RoomOccupied(roomID, leftID)
	if abandoned {
		reg.DeleteRoom(roomID)
	}

	broadcastAllExcept(reg, encodeOrLog(protocol.NewPacket(protocol.CodeLeave).
		WithValue2(roomID).
		WithValue10(leftID)), leftID)

	if abandoned {
		broadcastAllExcept(reg, encodeOrLog(protocol.NewPacket(protocol.CodeClose).
			WithValue10(roomID)), leftID)
		reg.RecycleID(roomID)
	}
}

// encodeOrLog renders a server-built packet. These carry nothing but
// numeric fields, so failure means a bug; it is logged and the broadcast
// becomes a no-op rather than taking the process down.
func encodeOrLog(p *protocol.Packet) []byte {
	frame, err := p.Encode()
	if err != nil {
		slog.Error("encoding server packet failed", "code", p.Code(), "error", err)
		return nil
	}
	return frame
}
