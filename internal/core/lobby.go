package core

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lawfx/ScrumPokerServer/internal/proto"
)

// defaultGracePeriod is how long a room survives an admin disconnect before
// being destroyed, unless the admin rejoins.
const defaultGracePeriod = 60 * time.Second

// Options tunes lobby behavior; the zero value picks production defaults.
type Options struct {
	// GracePeriod overrides the admin-vacancy destruction delay. Tests use
	// short values here.
	GracePeriod time.Duration
}

// Lobby is the process-wide directory of rooms and connected users. All state
// is owned by the Run loop: public operations post a closure onto the command
// channel and wait for its result, which serializes every mutation and makes
// locking unnecessary. Room-destruction timers report back through a dedicated
// channel the same loop selects on, so destroy-then-broadcast ordering is
// deterministic.
type Lobby struct {
	commands chan func()
	destroyc chan destruction

	rooms map[string]*Room
	users map[string]*User
	conns map[string]*User

	grace time.Duration
	log   zerolog.Logger
}

// NewLobby constructs an empty lobby. Run must be started before any
// operation is called.
func NewLobby(logger *zerolog.Logger, opts Options) *Lobby {
	grace := opts.GracePeriod
	if grace <= 0 {
		grace = defaultGracePeriod
	}
	return &Lobby{
		commands: make(chan func(), 16),
		destroyc: make(chan destruction, 16),
		rooms:    make(map[string]*Room),
		users:    make(map[string]*User),
		conns:    make(map[string]*User),
		grace:    grace,
		log:      logger.With().Str("component", "lobby").Logger(),
	}
}

// Run processes commands and destruction events until ctx is cancelled.
func (l *Lobby) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.commands:
			fn()
		case d := <-l.destroyc:
			l.handleDestruction(d)
		}
	}
}

// do runs fn on the lobby loop and returns its result. Never call from within
// the loop itself.
func (l *Lobby) do(fn func() error) error {
	reply := make(chan error, 1)
	l.commands <- func() { reply <- fn() }
	return <-reply
}

// CreateRoom creates a room with the user as its sole admin and announces the
// updated room list to free users.
func (l *Lobby) CreateRoom(username, roomname string) error {
	return l.do(func() error {
		user, ok := l.users[username]
		if !ok {
			return ErrUserNotConnected
		}
		name := strings.TrimSpace(roomname)
		switch {
		case name == "":
			return ErrRoomNameEmpty
		case len(name) > maxNameLen:
			return ErrRoomNameTooLong
		}
		if _, exists := l.rooms[name]; exists {
			return ErrRoomAlreadyExists
		}
		if user.room != nil {
			return ErrUserAlreadyInRoom
		}

		room := newRoom(name, user, l.grace, l.destroyc, l.log)
		user.room = room
		l.rooms[name] = room
		l.broadcastLobbyStatus()
		return nil
	})
}

// ConnectToRoom joins the user to an existing room as an estimator. A
// previously disconnected admin is restored to the admin seat instead.
func (l *Lobby) ConnectToRoom(username, roomname string) error {
	return l.do(func() error {
		user, ok := l.users[username]
		if !ok {
			return ErrUserNotConnected
		}
		room, exists := l.rooms[strings.TrimSpace(roomname)]
		if !exists {
			return ErrRoomNotFound
		}
		return user.JoinRoom(room, RoleEstimator)
	})
}

// DisconnectFromRoom removes the user from their current room and pushes a
// fresh lobby status to them.
func (l *Lobby) DisconnectFromRoom(username string) error {
	return l.do(func() error {
		user, ok := l.users[username]
		if !ok {
			return ErrUserNotConnected
		}
		if user.room == nil {
			return ErrUserNotInRoom
		}
		l.removeUserFromRoom(user)
		user.send(l.lobbyStatus(""))
		return nil
	})
}

// DestroyRoomOrderedByUser destroys the admin's current room. The admin is
// detached first so the destruction reason reaches only the other members.
func (l *Lobby) DestroyRoomOrderedByUser(username string) error {
	return l.do(func() error {
		user, ok := l.users[username]
		if !ok {
			return ErrUserNotConnected
		}
		room := user.room
		if room == nil {
			return ErrUserNotInRoom
		}
		if !room.isAdmin(user) {
			return ErrUserNotAdmin
		}

		l.removeUserFromRoom(user)
		if l.destroyRoom(room, "Destroyed by admin") {
			l.broadcastLobbyStatus()
		}
		return nil
	})
}

// OnNewConnection materializes a user for an authenticated connection and
// returns the channel the transport must drain for outbound messages. A
// username may hold only one live connection.
func (l *Lobby) OnNewConnection(connID, username string) (<-chan proto.ServerMessage, error) {
	var out <-chan proto.ServerMessage
	err := l.do(func() error {
		if _, taken := l.users[username]; taken {
			return ErrUserAlreadyConnected
		}
		user := newUser(username)
		l.users[username] = user
		l.conns[connID] = user
		l.log.Info().Str("user", username).Str("conn", connID).Msg("user connected")
		user.send(l.lobbyStatus(""))
		out = user.outbox
		return nil
	})
	return out, err
}

// OnCloseConnection removes the bound user from any room and deletes them.
// Unknown connection ids (e.g. connections rejected before registration) are
// ignored.
func (l *Lobby) OnCloseConnection(connID string) {
	_ = l.do(func() error {
		user, ok := l.conns[connID]
		if !ok {
			return nil
		}
		delete(l.conns, connID)
		delete(l.users, user.Name())
		if user.room != nil {
			l.removeUserFromRoom(user)
		}
		close(user.outbox)
		l.log.Info().Str("user", user.Name()).Str("conn", connID).Msg("user disconnected")
		return nil
	})
}

// OnEstimateRequest opens an estimate round in the connection's room.
func (l *Lobby) OnEstimateRequest(connID, taskID string) error {
	return l.do(func() error {
		user, ok := l.conns[connID]
		if !ok {
			return ErrUserNotConnected
		}
		_, err := user.CreateTask(strings.TrimSpace(taskID))
		return err
	})
}

// OnEstimate submits the connection's vote for the active round.
func (l *Lobby) OnEstimate(connID string, value float64) error {
	return l.do(func() error {
		user, ok := l.conns[connID]
		if !ok {
			return ErrUserNotConnected
		}
		return user.Estimate(value)
	})
}

// Rooms returns the current room names, sorted.
func (l *Lobby) Rooms() []string {
	var names []string
	_ = l.do(func() error {
		names = l.roomNames()
		return nil
	})
	return names
}

// FreeUsers returns the names of connected users not in any room, sorted.
func (l *Lobby) FreeUsers() []string {
	var names []string
	_ = l.do(func() error {
		for name, u := range l.users {
			if u.room == nil {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		return nil
	})
	return names
}

// removeUserFromRoom detaches the user and, if the room emptied, destroys it
// and announces the shrunken room list.
func (l *Lobby) removeUserFromRoom(user *User) {
	room, emptied, err := user.LeaveRoom()
	if err != nil {
		return
	}
	if emptied {
		if l.destroyRoom(room, "") {
			l.broadcastLobbyStatus()
		}
	}
}

// destroyRoom removes the room from the directory and tears down remaining
// membership. Destroying an already-removed room is a no-op, which makes the
// delayed-timer and immediate paths safely overlap.
func (l *Lobby) destroyRoom(room *Room, reason string) bool {
	if l.rooms[room.Name()] != room {
		return false
	}
	delete(l.rooms, room.Name())
	room.teardown(reason)
	l.log.Info().Str("room", room.Name()).Str("reason", reason).Msg("room destroyed")
	return true
}

// handleDestruction processes a room-destruction event from a grace timer or
// teardown path. A timed destruction is stale if an admin rejoined after the
// timer fired but before the loop got to it.
func (l *Lobby) handleDestruction(d destruction) {
	if l.rooms[d.room.Name()] != d.room {
		return
	}
	if d.timed && d.room.hasAdmin() {
		return
	}
	if l.destroyRoom(d.room, d.reason) {
		l.broadcastLobbyStatus()
	}
}

// broadcastLobbyStatus pushes the room list to every free user, delivering any
// pending left-room reason exactly once.
func (l *Lobby) broadcastLobbyStatus() {
	for _, u := range l.users {
		if u.room == nil {
			u.send(l.lobbyStatus(u.takeLeftRoomReason()))
		}
	}
}

func (l *Lobby) lobbyStatus(leftRoomReason string) proto.LobbyStatus {
	return proto.LobbyStatus{
		LobbyStatus: proto.LobbyStatusContent{
			Rooms:          l.roomNames(),
			LeftRoomReason: leftRoomReason,
		},
	}
}

func (l *Lobby) roomNames() []string {
	names := make([]string, 0, len(l.rooms))
	for name := range l.rooms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
