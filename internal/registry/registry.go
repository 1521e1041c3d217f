package registry

import (
	"sync"
	"sync/atomic"
)

// IDStart is the first ID ever handed out. Everything below it is
// reserved; 0 doubles as "no room".
const IDStart = 0x1000

const initialCapacity = 1024

// Registry holds every live user, room and game, keyed by ID.
// All state is process-lifetime; nothing is persisted.
//
// Point reads and writes are atomic. Listing methods return snapshots:
// callers iterate without holding the lock, so a snapshot can go stale
// the moment it is taken. That is fine for everything the lobby does
// with them (listings, broadcasts, advisory name checks).
type Registry struct {
	mu    sync.RWMutex
	users map[uint32]User
	rooms map[uint32]Room
	games map[uint32]Game

	nextID atomic.Uint32

	freeMu  sync.Mutex
	freeIDs []uint32 // LIFO

	stopped atomic.Bool
}

func New() *Registry {
	r := &Registry{
		users: make(map[uint32]User, initialCapacity),
		rooms: make(map[uint32]Room, initialCapacity),
		games: make(map[uint32]Game, initialCapacity),
	}
	r.nextID.Store(IDStart)
	return r
}

// AllocateID hands out an unused ID, reusing recycled ones first.
func (r *Registry) AllocateID() uint32 {
	r.freeMu.Lock()
	if n := len(r.freeIDs); n > 0 {
		id := r.freeIDs[n-1]
		r.freeIDs = r.freeIDs[:n-1]
		r.freeMu.Unlock()
		return id
	}
	r.freeMu.Unlock()
	return r.nextID.Add(1) - 1
}

// RecycleID returns an ID to the pool. Reserved IDs are never pooled,
// and once Stop has been called recycling quietly ceases: connections
// tearing down during shutdown must not churn the pool.
func (r *Registry) RecycleID(id uint32) {
	if id < IDStart || r.stopped.Load() {
		return
	}
	r.freeMu.Lock()
	r.freeIDs = append(r.freeIDs, id)
	r.freeMu.Unlock()
}

// Stop marks the registry as shutting down.
func (r *Registry) Stop() {
	r.stopped.Store(true)
}

// --- users ---

func (r *Registry) InsertUser(u User) {
	r.mu.Lock()
	r.users[u.ID] = u
	r.mu.Unlock()
}

func (r *Registry) UserByID(id uint32) (User, bool) {
	r.mu.RLock()
	u, ok := r.users[id]
	r.mu.RUnlock()
	return u, ok
}

// DeleteUser removes a user and returns what was stored.
func (r *Registry) DeleteUser(id uint32) (User, bool) {
	r.mu.Lock()
	u, ok := r.users[id]
	if ok {
		delete(r.users, id)
	}
	r.mu.Unlock()
	return u, ok
}

// SetUserRoom is the single place a user's room assignment changes.
func (r *Registry) SetUserRoom(id, roomID uint32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return false
	}
	u.RoomID = roomID
	r.users[id] = u
	return true
}

// NameInUse reports whether any user carries the name. Advisory only:
// the check and a following insert are not one atomic step.
func (r *Registry) NameInUse(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if asciiFoldEqual(u.Name, name) {
			return true
		}
	}
	return false
}

func (r *Registry) Users() []User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	return out
}

func (r *Registry) UsersInRoom(roomID uint32) []User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []User
	for _, u := range r.users {
		if u.RoomID == roomID {
			out = append(out, u)
		}
	}
	return out
}

func (r *Registry) UserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// --- rooms ---

func (r *Registry) InsertRoom(room Room) {
	r.mu.Lock()
	r.rooms[room.ID] = room
	r.mu.Unlock()
}

func (r *Registry) RoomByID(id uint32) (Room, bool) {
	r.mu.RLock()
	room, ok := r.rooms[id]
	r.mu.RUnlock()
	return room, ok
}

func (r *Registry) DeleteRoom(id uint32) (Room, bool) {
	r.mu.Lock()
	room, ok := r.rooms[id]
	if ok {
		delete(r.rooms, id)
	}
	r.mu.Unlock()
	return room, ok
}

func (r *Registry) RoomNameInUse(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, room := range r.rooms {
		if asciiFoldEqual(room.Name, name) {
			return true
		}
	}
	return false
}

// RoomOccupied reports whether anyone or anything is still in the room.
// ignoreID excludes the entity that is on its way out.
func (r *Registry) RoomOccupied(roomID, ignoreID uint32) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.ID != ignoreID && u.RoomID == roomID {
			return true
		}
	}
	for _, g := range r.games {
		if g.ID != ignoreID && g.RoomID == roomID {
			return true
		}
	}
	return false
}

func (r *Registry) Rooms() []Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, room)
	}
	return out
}

func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// --- games ---

func (r *Registry) InsertGame(g Game) {
	r.mu.Lock()
	r.games[g.ID] = g
	r.mu.Unlock()
}

func (r *Registry) GameByID(id uint32) (Game, bool) {
	r.mu.RLock()
	g, ok := r.games[id]
	r.mu.RUnlock()
	return g, ok
}

func (r *Registry) DeleteGame(id uint32) (Game, bool) {
	r.mu.Lock()
	g, ok := r.games[id]
	if ok {
		delete(r.games, id)
	}
	r.mu.Unlock()
	return g, ok
}

// GameByName finds a game by its host's name. Linear scan; the map is
// keyed by ID and a second index is not worth carrying.
func (r *Registry) GameByName(name string) (Game, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, g := range r.games {
		if asciiFoldEqual(g.Name, name) {
			return g, true
		}
	}
	return Game{}, false
}

func (r *Registry) Games() []Game {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Game, 0, len(r.games))
	for _, g := range r.games {
		out = append(out, g)
	}
	return out
}

func (r *Registry) GamesInRoom(roomID uint32) []Game {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Game
	for _, g := range r.games {
		if g.RoomID == roomID {
			out = append(out, g)
		}
	}
	return out
}

func (r *Registry) GameCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.games)
}

// asciiFoldEqual compares names the way the frontend does: byte-wise,
// folding A-Z only. Anything outside ASCII compares verbatim.
func asciiFoldEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
