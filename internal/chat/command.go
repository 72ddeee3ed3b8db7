package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jiangkunoa/chat-practise/internal/metrics"
	"github.com/jiangkunoa/chat-practise/internal/models"
	"github.com/jiangkunoa/chat-practise/internal/store"
)

// unknownSenderName labels messages whose sender no longer resolves to a user.
const unknownSenderName = "unknown"

// Dispatcher routes decoded command envelopes to their handlers. Handler
// errors are logged and swallowed: a bad payload or a missing room never
// terminates the caller's connection, it just produces no response.
type Dispatcher struct {
	store    store.DataStore
	registry *Registry
	logger   zerolog.Logger
}

// NewDispatcher creates a dispatcher backed by the given store and registry.
func NewDispatcher(st store.DataStore, registry *Registry, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{store: st, registry: registry, logger: logger}
}

// Dispatch executes one command on behalf of user. It returns only after the
// handler completes; the session's reader loop calls it synchronously so
// commands from one connection never interleave.
func (d *Dispatcher) Dispatch(ctx context.Context, user *models.User, env Envelope) {
	metrics.CommandsTotal.WithLabelValues(env.Cmd).Inc()

	var err error
	switch env.Cmd {
	case CmdRooms:
		err = d.rooms(ctx, user)
	case CmdCreateRoom:
		err = d.createRoom(ctx, user, env.Data)
	case CmdEnter:
		err = d.enter(ctx, user, env.Data)
	case CmdRoomMsgs:
		err = d.roomMsgs(ctx, user, env.Data)
	case CmdSendMsg:
		err = d.sendMsg(ctx, user, env.Data)
	default:
		d.logger.Warn().Str("cmd", env.Cmd).Uint64("user_id", user.ID).Msg("unknown command")
		return
	}

	if err != nil {
		d.logger.Error().Err(err).Str("cmd", env.Cmd).Uint64("user_id", user.ID).Msg("command failed")
	}
}

// reply marshals payload into an envelope and delivers it through the
// registry. A miss (user offline, queue full) is expected and only counted.
func (d *Dispatcher) reply(userID uint64, cmd string, payload any) error {
	raw, err := encodeEnvelope(cmd, payload)
	if err != nil {
		return err
	}
	if !d.registry.SendTo(userID, raw) {
		metrics.DeliveriesDropped.Inc()
	}
	return nil
}

func encodeEnvelope(cmd string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", cmd, err)
	}
	raw, err := json.Marshal(Envelope{Cmd: cmd, Data: string(data)})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", cmd, err)
	}
	return raw, nil
}

// visibleRooms returns the rooms the user is a member of, unioned with all
// public rooms.
func (d *Dispatcher) visibleRooms(ctx context.Context, userID uint64) ([]models.Room, error) {
	member, err := d.store.GetRoomsByMember(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("rooms by member: %w", err)
	}
	public, err := d.store.GetRoomsByType(ctx, models.RoomPublic)
	if err != nil {
		return nil, fmt.Errorf("rooms by type: %w", err)
	}

	seen := make(map[int64]bool, len(member))
	rooms := make([]models.Room, 0, len(member)+len(public))
	for _, room := range member {
		seen[room.ID] = true
		rooms = append(rooms, room)
	}
	for _, room := range public {
		if !seen[room.ID] {
			rooms = append(rooms, room)
		}
	}
	return rooms, nil
}

func (d *Dispatcher) rooms(ctx context.Context, user *models.User) error {
	rooms, err := d.visibleRooms(ctx, user.ID)
	if err != nil {
		return err
	}
	return d.reply(user.ID, CmdRspRooms, RoomsResponse{Rooms: rooms})
}

func (d *Dispatcher) createRoom(ctx context.Context, user *models.User, data string) error {
	var req CreateRoomRequest
	if err := json.Unmarshal([]byte(data), &req); err != nil {
		return fmt.Errorf("decode CreateRoom: %w", err)
	}

	members := req.Members
	if !containsID(members, user.ID) {
		members = append(members, user.ID)
	}

	if _, err := d.store.CreateRoom(ctx, models.RoomType(req.RoomType), req.RoomName, members); err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	return d.rooms(ctx, user)
}

func (d *Dispatcher) enter(ctx context.Context, user *models.User, data string) error {
	var req EnterRequest
	if err := json.Unmarshal([]byte(data), &req); err != nil {
		return fmt.Errorf("decode Enter: %w", err)
	}

	room, err := d.store.GetRoom(ctx, req.RoomID)
	if err != nil {
		return fmt.Errorf("get room: %w", err)
	}
	if room == nil {
		return fmt.Errorf("room %d not found", req.RoomID)
	}

	if !room.HasMember(user.ID) {
		members := append(room.Members, user.ID)
		if err := d.store.UpdateRoomMembers(ctx, room.ID, members); err != nil {
			return fmt.Errorf("update members: %w", err)
		}
	}
	return d.rooms(ctx, user)
}

func (d *Dispatcher) roomMsgs(ctx context.Context, user *models.User, data string) error {
	var req RoomMsgsRequest
	if err := json.Unmarshal([]byte(data), &req); err != nil {
		return fmt.Errorf("decode RoomMsgs: %w", err)
	}

	var msgs []models.ChatMessage
	var err error
	if req.LastID != nil {
		msgs, err = d.store.GetMessagesSince(ctx, req.RoomID, *req.LastID)
	} else {
		msgs, err = d.store.GetMessages(ctx, req.RoomID)
	}
	if err != nil {
		return fmt.Errorf("get messages: %w", err)
	}

	names, err := d.senderNames(ctx, msgs)
	if err != nil {
		return err
	}

	out := make([]RoomMessage, len(msgs))
	for i, msg := range msgs {
		name, ok := names[msg.Sender]
		if !ok {
			name = unknownSenderName
		}
		out[i] = RoomMessage{Msg: msg, UserName: name}
	}
	return d.reply(user.ID, CmdRspRoomMsgs, RoomMsgsResponse{RoomID: req.RoomID, Msgs: out})
}

// senderNames resolves display names for all distinct senders in one batched
// lookup. Senders missing from the store simply have no entry.
func (d *Dispatcher) senderNames(ctx context.Context, msgs []models.ChatMessage) (map[uint64]string, error) {
	ids := make([]uint64, 0, len(msgs))
	seen := make(map[uint64]bool, len(msgs))
	for _, msg := range msgs {
		if !seen[msg.Sender] {
			seen[msg.Sender] = true
			ids = append(ids, msg.Sender)
		}
	}

	users, err := d.store.GetUsersByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get senders: %w", err)
	}

	names := make(map[uint64]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Username
	}
	return names, nil
}

func (d *Dispatcher) sendMsg(ctx context.Context, user *models.User, data string) error {
	var req SendMsgRequest
	if err := json.Unmarshal([]byte(data), &req); err != nil {
		return fmt.Errorf("decode SendMsg: %w", err)
	}

	// Membership comes from this fetch, not from any earlier state, so edits
	// made before this command are always honored.
	room, err := d.store.GetRoom(ctx, req.RoomID)
	if err != nil {
		return fmt.Errorf("get room: %w", err)
	}
	if room == nil {
		return fmt.Errorf("room %d not found", req.RoomID)
	}

	// Persist before any fan-out.
	msg, err := d.store.CreateMessage(ctx, room.ID, req.Msg, user.ID)
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	metrics.MessagesSent.Inc()

	raw, err := encodeEnvelope(CmdRspSendMsg, msg)
	if err != nil {
		return err
	}

	// Direct reply to the sender, then one copy to every other member.
	if !d.registry.SendTo(user.ID, raw) {
		metrics.DeliveriesDropped.Inc()
	}
	d.registry.SendToMany(room.Members, raw, user.ID)
	return nil
}

func containsID(ids []uint64, id uint64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
