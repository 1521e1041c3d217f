package lobby

import (
	"fmt"
	"log/slog"
	"net/netip"
	"strings"

	"github.com/wormnetgo/server/internal/protocol"
	"github.com/wormnetgo/server/internal/registry"
)

// invalidGameMessage is pushed as a fake group-chat line when a game
// registration is refused, so the frontend shows the reason in the room.
const invalidGameMessage = "GRP:Cannot host your game. Please use FrontendKitWS with fkNetcode. " +
	"More information at worms2d.info/fkNetcode"

var loopback = netip.AddrFrom4([4]byte{127, 0, 0, 1})

// Handler implements every lobby verb. One per server; all state lives
// in the registry.
type Handler struct {
	reg *registry.Registry
}

func NewHandler(reg *registry.Registry) *Handler {
	return &Handler{reg: reg}
}

// Handle dispatches one frame from an authenticated connection.
// A returned error means the connection must close; recoverable problems
// are answered with a reply carrying a non-zero error code instead.
func (h *Handler) Handle(mb *Mailbox, pkt *protocol.Packet, callerID uint32, peer netip.Addr) error {
	switch pkt.Code() {
	case protocol.CodeListRooms:
		return h.listRooms(mb, pkt)
	case protocol.CodeListUsers:
		return h.listUsers(mb, pkt, callerID)
	case protocol.CodeListGames:
		return h.listGames(mb, pkt, callerID)
	case protocol.CodeCreateRoom:
		return h.createRoom(mb, pkt, callerID)
	case protocol.CodeJoin:
		return h.join(mb, pkt, callerID)
	case protocol.CodeLeave:
		return h.leave(mb, pkt, callerID)
	case protocol.CodeClose:
		return h.closeRoom(mb, pkt)
	case protocol.CodeCreateGame:
		return h.createGame(mb, pkt, callerID, peer)
	case protocol.CodeChatRoom:
		return h.chatRoom(mb, pkt, callerID)
	case protocol.CodeConnectGame:
		return h.connectGame(mb, pkt, callerID)
	case protocol.CodeLogin:
		// Repeated Login after authentication. Harmless, drop it.
		slog.Warn("login on authenticated connection ignored", "user", callerID)
		return nil
	default:
		return fmt.Errorf("unhandled verb %d", uint32(pkt.Code()))
	}
}

// Login processes the first frame of a connection. On success the new
// user is registered, announced to everyone (itself included) and gets
// its LoginReply. A taken name is refused with LoginReply(0, 1) and
// ok=false; the runtime flushes the reply and drops the connection.
func (h *Handler) Login(mb *Mailbox, pkt *protocol.Packet, peer netip.Addr) (uint32, bool, error) {
	name, hasName := pkt.Name()
	sess, hasSession := pkt.Session()
	if !hasName || !hasSession {
		return 0, false, fmt.Errorf("login without name or session")
	}
	if v, ok := pkt.Value1(); !ok || v != 0 {
		return 0, false, fmt.Errorf("login value1 missing or nonzero")
	}
	if v, ok := pkt.Value4(); !ok || v != 0 {
		return 0, false, fmt.Errorf("login value4 missing or nonzero")
	}
	if name == "" {
		return 0, false, fmt.Errorf("login with empty name")
	}

	if h.reg.NameInUse(name) {
		slog.Info("login refused, name in use", "name", name, "peer", peer)
		refusal := protocol.NewPacket(protocol.CodeLoginReply).WithValue1(0).WithError(1)
		if err := h.reply(mb, refusal); err != nil {
			return 0, false, err
		}
		return 0, false, nil
	}

	id := h.reg.AllocateID()
	user := registry.User{
		ID:      id,
		Name:    name,
		Session: protocol.NewSession(sess.Nation, protocol.SessionUser),
		Outbox:  mb,
	}
	h.reg.InsertUser(user)

	announce, err := protocol.NewPacket(protocol.CodeLogin).
		WithValue1(id).
		WithValue4(0).
		WithName(name).
		WithSession(user.Session).
		Encode()
	if err != nil {
		return 0, false, fmt.Errorf("encoding login announce: %w", err)
	}
	broadcastAll(h.reg, announce)

	reply := protocol.NewPacket(protocol.CodeLoginReply).WithValue1(id).WithError(0)
	if err := h.reply(mb, reply); err != nil {
		return 0, false, err
	}

	slog.Info("user logged in", "user", id, "name", name, "peer", peer)
	return id, true, nil
}

func (h *Handler) listRooms(mb *Mailbox, pkt *protocol.Packet) error {
	if v, ok := pkt.Value4(); !ok || v != 0 {
		return fmt.Errorf("list rooms value4 missing or nonzero")
	}

	for _, room := range h.reg.Rooms() {
		item := protocol.NewPacket(protocol.CodeListItem).
			WithValue1(room.ID).
			WithName(room.Name).
			WithSession(room.Session)
		if err := h.reply(mb, item); err != nil {
			return err
		}
	}
	return h.reply(mb, protocol.NewPacket(protocol.CodeListEnd))
}

func (h *Handler) listUsers(mb *Mailbox, pkt *protocol.Packet, callerID uint32) error {
	caller, err := h.roomScopedCaller(pkt, callerID)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	for _, u := range h.reg.UsersInRoom(caller.RoomID) {
		item := protocol.NewPacket(protocol.CodeListItem).
			WithValue1(u.ID).
			WithName(u.Name).
			WithSession(u.Session)
		if err := h.reply(mb, item); err != nil {
			return err
		}
	}
	return h.reply(mb, protocol.NewPacket(protocol.CodeListEnd))
}

func (h *Handler) listGames(mb *Mailbox, pkt *protocol.Packet, callerID uint32) error {
	caller, err := h.roomScopedCaller(pkt, callerID)
	if err != nil {
		return fmt.Errorf("list games: %w", err)
	}

	for _, g := range h.reg.GamesInRoom(caller.RoomID) {
		item := protocol.NewPacket(protocol.CodeListItem).
			WithValue1(g.ID).
			WithData(g.IP.String()).
			WithName(g.Name).
			WithSession(g.Session)
		if err := h.reply(mb, item); err != nil {
			return err
		}
	}
	return h.reply(mb, protocol.NewPacket(protocol.CodeListEnd))
}

// roomScopedCaller validates the shared preconditions of the room-scoped
// listings: the caller is inside a room and named that room in Value2.
func (h *Handler) roomScopedCaller(pkt *protocol.Packet, callerID uint32) (registry.User, error) {
	caller, ok := h.reg.UserByID(callerID)
	if !ok {
		return registry.User{}, fmt.Errorf("caller %d not registered", callerID)
	}
	if caller.RoomID < registry.IDStart {
		return registry.User{}, fmt.Errorf("caller %d is not in a room", callerID)
	}
	if v, ok := pkt.Value2(); !ok || v != caller.RoomID {
		return registry.User{}, fmt.Errorf("value2 does not name the caller's room")
	}
	if v, ok := pkt.Value4(); !ok || v != 0 {
		return registry.User{}, fmt.Errorf("value4 missing or nonzero")
	}
	return caller, nil
}

func (h *Handler) createRoom(mb *Mailbox, pkt *protocol.Packet, callerID uint32) error {
	if v, ok := pkt.Value1(); !ok || v != 0 {
		return fmt.Errorf("create room value1 missing or nonzero")
	}
	if v, ok := pkt.Value4(); !ok || v != 0 {
		return fmt.Errorf("create room value4 missing or nonzero")
	}
	name, hasName := pkt.Name()
	sess, hasSession := pkt.Session()
	if _, hasData := pkt.Data(); !hasData || !hasName || !hasSession {
		return fmt.Errorf("create room missing data, name or session")
	}

	if h.reg.RoomNameInUse(name) {
		slog.Info("room name already taken", "name", name, "user", callerID)
		return h.reply(mb, protocol.NewPacket(protocol.CodeCreateRoomReply).
			WithValue1(0).
			WithError(1))
	}

	id := h.reg.AllocateID()
	room := registry.Room{
		ID:      id,
		Name:    name,
		Session: protocol.NewSession(sess.Nation, protocol.SessionRoom),
	}
	h.reg.InsertRoom(room)

	announce, err := protocol.NewPacket(protocol.CodeCreateRoom).
		WithValue1(id).
		WithValue4(0).
		WithName(name).
		WithSession(room.Session).
		Encode()
	if err != nil {
		return fmt.Errorf("encoding room announce: %w", err)
	}
	broadcastAllExcept(h.reg, announce, callerID)

	slog.Info("room created", "room", id, "name", name, "user", callerID)
	return h.reply(mb, protocol.NewPacket(protocol.CodeCreateRoomReply).
		WithValue1(id).
		WithError(0))
}

func (h *Handler) join(mb *Mailbox, pkt *protocol.Packet, callerID uint32) error {
	target, ok := pkt.Value2()
	if !ok || target == 0 {
		return fmt.Errorf("join value2 missing or zero")
	}
	if v, ok := pkt.Value10(); !ok || v != callerID {
		return fmt.Errorf("join value10 does not name the caller")
	}
	caller, ok := h.reg.UserByID(callerID)
	if !ok {
		return fmt.Errorf("caller %d not registered", callerID)
	}

	joined := false
	if _, isRoom := h.reg.RoomByID(target); isRoom {
		h.reg.SetUserRoom(callerID, target)
		joined = true
	} else if game, isGame := h.reg.GameByID(target); isGame && game.RoomID == caller.RoomID {
		// Joining a game announces intent; the caller stays in the room.
		joined = true
	}

	if !joined {
		return h.reply(mb, protocol.NewPacket(protocol.CodeJoinReply).WithError(1))
	}

	announce, err := protocol.NewPacket(protocol.CodeJoin).
		WithValue2(target).
		WithValue10(callerID).
		Encode()
	if err != nil {
		return fmt.Errorf("encoding join announce: %w", err)
	}
	broadcastAllExcept(h.reg, announce, callerID)

	return h.reply(mb, protocol.NewPacket(protocol.CodeJoinReply).WithError(0))
}

func (h *Handler) leave(mb *Mailbox, pkt *protocol.Packet, callerID uint32) error {
	target, ok := pkt.Value2()
	if !ok {
		return fmt.Errorf("leave value2 missing")
	}
	if v, ok := pkt.Value10(); !ok || v != callerID {
		return fmt.Errorf("leave value10 does not name the caller")
	}
	caller, ok := h.reg.UserByID(callerID)
	if !ok {
		return fmt.Errorf("caller %d not registered", callerID)
	}

	if target != caller.RoomID {
		return h.reply(mb, protocol.NewPacket(protocol.CodeLeaveReply).WithError(1))
	}

	leaveRoom(h.reg, target, callerID)
	h.reg.SetUserRoom(callerID, 0)
	return h.reply(mb, protocol.NewPacket(protocol.CodeLeaveReply).WithError(0))
}

// closeRoom acknowledges a Close request. Rooms are reaped by occupancy,
// never by request, so the reply is all that happens. A Close without a
// target is tolerated silently.
func (h *Handler) closeRoom(mb *Mailbox, pkt *protocol.Packet) error {
	if _, ok := pkt.Value10(); !ok {
		return nil
	}
	return h.reply(mb, protocol.NewPacket(protocol.CodeCloseReply).WithError(0))
}

func (h *Handler) createGame(mb *Mailbox, pkt *protocol.Packet, callerID uint32, peer netip.Addr) error {
	caller, ok := h.reg.UserByID(callerID)
	if !ok {
		return fmt.Errorf("caller %d not registered", callerID)
	}
	if v, ok := pkt.Value1(); !ok || v != 0 {
		return fmt.Errorf("create game value1 missing or nonzero")
	}
	if v, ok := pkt.Value2(); !ok || v != caller.RoomID {
		return fmt.Errorf("create game value2 does not name the caller's room")
	}
	if v, ok := pkt.Value4(); !ok || v != 0x800 {
		return fmt.Errorf("create game value4 missing or not 0x800")
	}
	hostedIP, hasData := pkt.Data()
	_, hasName := pkt.Name()
	sess, hasSession := pkt.Session()
	if !hasData || !hasName || !hasSession {
		return fmt.Errorf("create game missing data, name or session")
	}

	// The claimed address only counts when it is a literal IPv4 and
	// matches what the socket says, unless the peer comes through
	// loopback (a proxy setup) in which case the claim wins.
	claimed, parseErr := netip.ParseAddr(hostedIP)
	valid := parseErr == nil && claimed.Is4() && (peer == loopback || claimed == peer)
	if !valid {
		slog.Warn("game registration refused", "user", callerID, "claimed", hostedIP, "peer", peer)
		if err := h.reply(mb, protocol.NewPacket(protocol.CodeCreateGameReply).
			WithValue1(0).
			WithError(2)); err != nil {
			return err
		}
		return h.reply(mb, protocol.NewPacket(protocol.CodeChatRoom).
			WithValue1(caller.ID).
			WithValue3(caller.RoomID).
			WithData(invalidGameMessage))
	}

	addr := peer
	if peer == loopback {
		addr = claimed
	}

	id := h.reg.AllocateID()
	game := registry.Game{
		ID:      id,
		Name:    caller.Name,
		RoomID:  caller.RoomID,
		IP:      addr,
		Session: protocol.NewSessionWithAccess(caller.Session.Nation, protocol.SessionGame, sess.Access),
	}
	h.reg.InsertGame(game)

	announce, err := protocol.NewPacket(protocol.CodeCreateGame).
		WithValue1(id).
		WithValue2(caller.RoomID).
		WithValue4(0x800).
		WithData(addr.String()).
		WithName(game.Name).
		WithSession(game.Session).
		Encode()
	if err != nil {
		return fmt.Errorf("encoding game announce: %w", err)
	}
	broadcastAllExcept(h.reg, announce, callerID)

	slog.Info("game registered", "game", id, "host", caller.Name, "addr", addr)
	return h.reply(mb, protocol.NewPacket(protocol.CodeCreateGameReply).
		WithValue1(id).
		WithError(0))
}

func (h *Handler) chatRoom(mb *Mailbox, pkt *protocol.Packet, callerID uint32) error {
	if v, ok := pkt.Value0(); !ok || v != callerID {
		return fmt.Errorf("chat value0 does not name the caller")
	}
	targetID, hasTarget := pkt.Value3()
	text, hasData := pkt.Data()
	if !hasTarget || !hasData {
		return fmt.Errorf("chat missing value3 or data")
	}
	caller, ok := h.reg.UserByID(callerID)
	if !ok {
		return fmt.Errorf("caller %d not registered", callerID)
	}

	// The frontend prefixes every line with the speaker's own name;
	// both formats end with two spaces.
	groupPrefix := fmt.Sprintf("GRP:[ %s ]  ", caller.Name)
	privatePrefix := fmt.Sprintf("PRV:[ %s ]  ", caller.Name)

	switch {
	case strings.HasPrefix(text, groupPrefix) && targetID == caller.RoomID:
		relay, err := protocol.NewPacket(protocol.CodeChatRoom).
			WithValue0(callerID).
			WithValue3(targetID).
			WithData(text).
			Encode()
		if err != nil {
			return fmt.Errorf("encoding chat relay: %w", err)
		}
		broadcastRoomExcept(h.reg, caller.RoomID, relay, callerID)
		return h.reply(mb, protocol.NewPacket(protocol.CodeChatRoomReply).WithError(0))

	case strings.HasPrefix(text, privatePrefix):
		target, ok := h.reg.UserByID(targetID)
		if !ok || target.RoomID != caller.RoomID {
			return h.reply(mb, protocol.NewPacket(protocol.CodeChatRoomReply).WithError(1))
		}
		relay, err := protocol.NewPacket(protocol.CodeChatRoom).
			WithValue0(callerID).
			WithValue3(targetID).
			WithData(text).
			Encode()
		if err != nil {
			return fmt.Errorf("encoding chat relay: %w", err)
		}
		if err := target.Outbox.Send(relay); err != nil {
			slog.Debug("private chat target unreachable", "target", targetID, "error", err)
		}
		return h.reply(mb, protocol.NewPacket(protocol.CodeChatRoomReply).WithError(0))

	default:
		slog.Warn("chat with forged or misdirected prefix", "user", callerID)
		return h.reply(mb, protocol.NewPacket(protocol.CodeChatRoomReply).WithError(1))
	}
}

func (h *Handler) connectGame(mb *Mailbox, pkt *protocol.Packet, callerID uint32) error {
	gameID, ok := pkt.Value0()
	if !ok {
		return fmt.Errorf("connect game value0 missing")
	}
	caller, ok := h.reg.UserByID(callerID)
	if !ok {
		return fmt.Errorf("caller %d not registered", callerID)
	}

	game, found := h.reg.GameByID(gameID)
	if !found || game.RoomID != caller.RoomID {
		return h.reply(mb, protocol.NewPacket(protocol.CodeConnectGameReply).WithError(1))
	}

	return h.reply(mb, protocol.NewPacket(protocol.CodeConnectGameReply).
		WithData(game.IP.String()).
		WithError(0))
}

// reply encodes a packet and queues it on the caller's own mailbox.
func (h *Handler) reply(mb *Mailbox, p *protocol.Packet) error {
	frame, err := p.Encode()
	if err != nil {
		return fmt.Errorf("encoding %v reply: %w", p.Code(), err)
	}
	if err := mb.Send(frame); err != nil {
		return fmt.Errorf("queueing %v reply: %w", p.Code(), err)
	}
	return nil
}
