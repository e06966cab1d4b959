package core

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/lawfx/ScrumPokerServer/internal/proto"
)

// Role is a user's function inside a room.
type Role int

const (
	// RoleAdmin runs the room: opens estimate rounds, may destroy the room.
	// A room has at most one admin at any time.
	RoleAdmin Role = iota
	// RoleEstimator votes in estimate rounds.
	RoleEstimator
	// RoleSpectator watches; spectators do not count toward round completion.
	RoleSpectator
)

// destroyReasonNoAdmin is delivered to remaining members when the admin grace
// period elapses without a rejoin.
const destroyReasonNoAdmin = "No admin in room for a minute"

// destruction asks the lobby to tear a room down. Timed destructions come from
// the grace-period timer and are ignored if an admin rejoined in the meantime.
type destruction struct {
	room   *Room
	reason string
	timed  bool
}

// Room is a named group of users running estimate rounds. All methods are
// called from the lobby loop only; the destruction timer is the single
// exception and communicates back through the destroy channel.
type Room struct {
	name    string
	members map[*User]Role

	// usernames that held the admin seat and disconnected; a rejoin with one
	// of these names is fast-tracked back to admin.
	disconnectedAdmins map[string]struct{}

	task *Task

	grace        time.Duration
	destroyc     chan<- destruction
	destroyTimer *time.Timer

	log zerolog.Logger
}

// newRoom creates a room with the given user as its sole admin and broadcasts
// the initial status.
func newRoom(name string, admin *User, grace time.Duration, destroyc chan<- destruction, logger zerolog.Logger) *Room {
	r := &Room{
		name:               name,
		members:            make(map[*User]Role),
		disconnectedAdmins: make(map[string]struct{}),
		grace:              grace,
		destroyc:           destroyc,
		log:                logger.With().Str("room", name).Logger(),
	}
	r.members[admin] = RoleAdmin
	r.log.Info().Str("user", admin.Name()).Msg("room created")
	r.broadcastStatus()
	return r
}

// Name returns the unique room name.
func (r *Room) Name() string {
	return r.name
}

// Task returns the active estimate round, or nil.
func (r *Room) Task() *Task {
	return r.task
}

// addUser installs a member. A returning disconnected admin is re-promoted to
// the admin seat, cancelling any pending destruction; everyone else gets the
// requested role, with a second admin rejected.
func (r *Room) addUser(u *User, role Role) error {
	if _, wasAdmin := r.disconnectedAdmins[u.Name()]; wasAdmin && !r.hasAdmin() {
		delete(r.disconnectedAdmins, u.Name())
		r.stopDestructionTimer()
		r.members[u] = RoleAdmin
		r.log.Info().Str("user", u.Name()).Msg("admin rejoined")
		r.broadcastStatus()
		return nil
	}

	if role == RoleAdmin && r.hasAdmin() {
		return ErrRoomAlreadyHasAdmin
	}

	r.members[u] = role
	r.log.Info().Str("user", u.Name()).Int("role", int(role)).Msg("user joined")
	r.broadcastStatus()
	return nil
}

// removeUser drops a member and reports whether the room became empty and must
// be destroyed immediately. Removing the admin records the name for fast-track
// re-promotion and, while other members remain, arms the grace timer.
func (r *Room) removeUser(u *User) (emptied bool) {
	role, ok := r.members[u]
	if !ok {
		return false
	}
	delete(r.members, u)
	r.log.Info().Str("user", u.Name()).Msg("user removed")

	if len(r.members) == 0 {
		// Immediate destruction takes precedence over a pending delayed one.
		r.stopDestructionTimer()
		return true
	}

	if role == RoleAdmin {
		r.disconnectedAdmins[u.Name()] = struct{}{}
		r.armDestructionTimer()
	}

	// A departing non-voter can be the last thing holding the round open.
	r.closeTaskIfComplete()
	r.broadcastStatus()
	return false
}

// CreateTask opens a new estimate round. Fails while a round is active, on an
// empty or overlong id, and for non-admins.
func (r *Room) CreateTask(u *User, id string) (*Task, error) {
	switch {
	case id == "":
		return nil, ErrTaskNameEmpty
	case len(id) > maxNameLen:
		return nil, ErrTaskNameTooLong
	case !r.isAdmin(u):
		return nil, ErrUserNotAdmin
	case r.task != nil:
		return nil, ErrTaskInProgress
	}

	r.task = newTask(id)
	r.log.Info().Str("task", id).Msg("task created")
	r.broadcastStatus()
	return r.task, nil
}

// AddEstimate records u's vote for the active round. Once every roster member
// (admin plus estimators; spectators excluded) has voted, the round clears.
// Every applied vote triggers a status broadcast.
func (r *Room) AddEstimate(u *User, value float64) error {
	if r.task == nil {
		return ErrNoActiveTask
	}
	if err := r.task.addEstimate(u.Name(), value); err != nil {
		return err
	}

	r.closeTaskIfComplete()
	r.broadcastStatus()
	return nil
}

// closeTaskIfComplete clears the active round once every roster member has a
// recorded vote. The full tally is broadcast before clearing — with the roster
// complete nobody is redacted — so the final numbers reach everyone exactly
// once; the caller's follow-up broadcast then shows the idle room.
func (r *Room) closeTaskIfComplete() {
	if r.task == nil || !r.task.hasEveryoneEstimated(r.voters()) {
		return
	}
	r.broadcastStatus()
	r.log.Info().Str("task", r.task.ID()).Msg("everyone estimated, task closed")
	r.task = nil
}

func (r *Room) hasAdmin() bool {
	for _, role := range r.members {
		if role == RoleAdmin {
			return true
		}
	}
	return false
}

func (r *Room) isAdmin(u *User) bool {
	role, ok := r.members[u]
	return ok && role == RoleAdmin
}

// voters is the roster counted toward round completion: admin and estimators.
func (r *Room) voters() []*User {
	var roster []*User
	for u, role := range r.members {
		if role == RoleAdmin || role == RoleEstimator {
			roster = append(roster, u)
		}
	}
	return roster
}

func (r *Room) namesByRole(role Role) []string {
	var names []string
	for u, rl := range r.members {
		if rl == role {
			names = append(names, u.Name())
		}
	}
	sort.Strings(names)
	return names
}

// broadcastStatus pushes the room status to every member. Estimators who have
// not voted in the active round receive a copy with estimates withheld, to
// discourage anchoring on earlier votes.
func (r *Room) broadcastStatus() {
	full := r.status(true)
	redacted := r.status(false)

	for u, role := range r.members {
		if role == RoleEstimator && r.task != nil && !r.task.hasEstimated(u.Name()) {
			u.send(redacted)
			continue
		}
		u.send(full)
	}
}

func (r *Room) status(includeEstimates bool) proto.RoomStatus {
	content := proto.RoomStatusContent{
		Users: proto.RoomStatusUsers{
			Admins:     r.namesByRole(RoleAdmin),
			Estimators: r.namesByRole(RoleEstimator),
			Spectators: r.namesByRole(RoleSpectator),
		},
		Task: proto.RoomStatusTask{Estimates: []proto.TaskEstimate{}},
	}
	if r.task != nil {
		content.Task.ID = r.task.ID()
		if includeEstimates {
			content.Task.Estimates = r.task.estimateList()
		}
	}
	return proto.RoomStatus{RoomStatus: content}
}

// teardown detaches every remaining member, tagging each with the destruction
// reason for their next lobby-status push. Called by the lobby after the room
// has already been removed from the directory.
func (r *Room) teardown(reason string) {
	r.stopDestructionTimer()
	for u := range r.members {
		u.leftRoomReason = reason
		u.room = nil
		delete(r.members, u)
	}
	r.task = nil
}

func (r *Room) armDestructionTimer() {
	if r.destroyTimer != nil {
		return
	}
	r.log.Info().Dur("grace", r.grace).Msg("admin seat vacant, destruction scheduled")
	r.destroyTimer = time.AfterFunc(r.grace, func() {
		r.destroyc <- destruction{room: r, reason: destroyReasonNoAdmin, timed: true}
	})
}

func (r *Room) stopDestructionTimer() {
	if r.destroyTimer == nil {
		return
	}
	r.destroyTimer.Stop()
	r.destroyTimer = nil
	r.log.Info().Msg("destruction aborted")
}
