package lobby

import (
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/wormnetgo/server/internal/registry"
)

// Fan-out ceiling. Enqueues are near-instant unless a recipient's mailbox
// is full, so a modest pool of workers covers even a crowded lobby.
const broadcastWorkers = 16

// broadcastAll enqueues an encoded frame to every user, the sender
// included if it is registered. All enqueues are awaited before returning
// so that anything broadcast afterwards lands later in every mailbox.
func broadcastAll(reg *registry.Registry, frame []byte) {
	fanOut(reg.Users(), frame, 0)
}

// broadcastAllExcept is broadcastAll minus one recipient.
func broadcastAllExcept(reg *registry.Registry, frame []byte, exceptID uint32) {
	fanOut(reg.Users(), frame, exceptID)
}

// broadcastRoomExcept reaches only the users inside one room.
func broadcastRoomExcept(reg *registry.Registry, roomID uint32, frame []byte, exceptID uint32) {
	fanOut(reg.UsersInRoom(roomID), frame, exceptID)
}

// fanOut delivers frame to every recipient concurrently. A recipient
// whose mailbox has closed is mid-teardown; it is skipped with a debug
// note and never fails the others.
func fanOut(users []registry.User, frame []byte, exceptID uint32) {
	if frame == nil {
		return
	}

	var g errgroup.Group
	g.SetLimit(broadcastWorkers)
	for _, u := range users {
		if u.ID == exceptID {
			continue
		}
		g.Go(func() error {
			if err := u.Outbox.Send(frame); err != nil {
				slog.Debug("skipping broadcast recipient", "user", u.ID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}
