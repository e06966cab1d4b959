package core

import "github.com/lawfx/ScrumPokerServer/internal/proto"

// outboxSize bounds the per-user send queue. Slow consumers drop messages
// rather than block the lobby loop.
const outboxSize = 16

// User is a connected participant. Users are owned by the Lobby registry;
// rooms only hold weak references to them. A user belongs to at most one room
// at a time, tracked by the room pointer rather than by scanning memberships.
type User struct {
	name   string
	outbox chan proto.ServerMessage

	room           *Room
	leftRoomReason string
}

func newUser(name string) *User {
	return &User{
		name:   name,
		outbox: make(chan proto.ServerMessage, outboxSize),
	}
}

// Name returns the unique username this user authenticated with.
func (u *User) Name() string {
	return u.name
}

// Room returns the room the user is currently in, or nil.
func (u *User) Room() *Room {
	return u.room
}

// JoinRoom registers the user in the room with the requested role.
func (u *User) JoinRoom(room *Room, role Role) error {
	if u.room != nil {
		return ErrUserAlreadyInRoom
	}
	if err := room.addUser(u, role); err != nil {
		return err
	}
	u.room = room
	return nil
}

// LeaveRoom detaches the user from its current room. It returns the room that
// was left and whether that room became empty and must be destroyed now.
func (u *User) LeaveRoom() (left *Room, emptied bool, err error) {
	if u.room == nil {
		return nil, false, ErrUserNotInRoom
	}
	left = u.room
	u.room = nil
	return left, left.removeUser(u), nil
}

// CreateTask opens a new estimate round in the user's current room. Only the
// room admin may do this, and only while no round is active.
func (u *User) CreateTask(id string) (*Task, error) {
	if u.room == nil {
		return nil, ErrUserNotInRoom
	}
	return u.room.CreateTask(u, id)
}

// Estimate submits the user's vote for the active round.
func (u *User) Estimate(value float64) error {
	if u.room == nil {
		return ErrUserNotInRoom
	}
	return u.room.AddEstimate(u, value)
}

// send queues a message for the user's connection, dropping it if the outbox
// is full. A stalled socket must not stall the lobby.
func (u *User) send(msg proto.ServerMessage) {
	select {
	case u.outbox <- msg:
	default:
	}
}

// takeLeftRoomReason returns the reason the user was last removed from a room
// and clears it; the reason is delivered on exactly one lobby-status push.
func (u *User) takeLeftRoomReason() string {
	reason := u.leftRoomReason
	u.leftRoomReason = ""
	return reason
}
