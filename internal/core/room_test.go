package core

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testRoom(name string, admin *User) (*Room, chan destruction) {
	destroyc := make(chan destruction, 8)
	room := newRoom(name, admin, time.Minute, destroyc, zerolog.Nop())
	admin.room = room
	return room, destroyc
}

func TestRoomSingleAdmin(t *testing.T) {
	alice := newUser("alice")
	room, _ := testRoom("standup", alice)

	bob := newUser("bob")
	if err := bob.JoinRoom(room, RoleAdmin); !errors.Is(err, ErrRoomAlreadyHasAdmin) {
		t.Fatalf("expected ErrRoomAlreadyHasAdmin, got %v", err)
	}
	if bob.Room() != nil {
		t.Fatalf("rejected join must not record membership")
	}

	if got := len(room.namesByRole(RoleAdmin)); got != 1 {
		t.Fatalf("expected exactly one admin, got %d", got)
	}
}

func TestRoomJoinTwiceRejected(t *testing.T) {
	alice := newUser("alice")
	room, _ := testRoom("standup", alice)

	bob := newUser("bob")
	if err := bob.JoinRoom(room, RoleEstimator); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := bob.JoinRoom(room, RoleEstimator); !errors.Is(err, ErrUserAlreadyInRoom) {
		t.Fatalf("expected ErrUserAlreadyInRoom, got %v", err)
	}
}

func TestRoomDisconnectedAdminFastTrack(t *testing.T) {
	alice := newUser("alice")
	room, _ := testRoom("standup", alice)

	bob := newUser("bob")
	if err := bob.JoinRoom(room, RoleEstimator); err != nil {
		t.Fatalf("join: %v", err)
	}

	if _, emptied, err := alice.LeaveRoom(); err != nil || emptied {
		t.Fatalf("admin leave: emptied=%v err=%v", emptied, err)
	}
	if room.hasAdmin() {
		t.Fatalf("admin seat should be vacant")
	}
	if room.destroyTimer == nil {
		t.Fatalf("destruction timer should be armed while members remain")
	}

	// Rejoining with the same name restores the admin seat, even though the
	// requested role is estimator.
	aliceAgain := newUser("alice")
	if err := aliceAgain.JoinRoom(room, RoleEstimator); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if !room.isAdmin(aliceAgain) {
		t.Fatalf("returning admin should be re-promoted")
	}
	if room.destroyTimer != nil {
		t.Fatalf("destruction timer should be cancelled by admin rejoin")
	}
}

func TestRoomLastMemberLeavesEmptiesRoom(t *testing.T) {
	alice := newUser("alice")
	room, _ := testRoom("standup", alice)

	_, emptied, err := alice.LeaveRoom()
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if !emptied {
		t.Fatalf("room with no members left must report emptied")
	}
	if room.destroyTimer != nil {
		t.Fatalf("immediate destruction cancels any pending timer")
	}
}

func TestRoomCreateTaskValidation(t *testing.T) {
	alice := newUser("alice")
	room, _ := testRoom("standup", alice)
	bob := newUser("bob")
	if err := bob.JoinRoom(room, RoleEstimator); err != nil {
		t.Fatalf("join: %v", err)
	}

	if _, err := room.CreateTask(alice, ""); !errors.Is(err, ErrTaskNameEmpty) {
		t.Fatalf("expected ErrTaskNameEmpty, got %v", err)
	}
	if _, err := room.CreateTask(alice, "abcdefghijklmnopqrstu"); !errors.Is(err, ErrTaskNameTooLong) {
		t.Fatalf("expected ErrTaskNameTooLong, got %v", err)
	}
	if _, err := room.CreateTask(bob, "login-bug"); !errors.Is(err, ErrUserNotAdmin) {
		t.Fatalf("expected ErrUserNotAdmin, got %v", err)
	}

	if _, err := room.CreateTask(alice, "login-bug"); err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := room.CreateTask(alice, "another"); !errors.Is(err, ErrTaskInProgress) {
		t.Fatalf("expected ErrTaskInProgress, got %v", err)
	}
}

func TestRoomEstimateWithoutTask(t *testing.T) {
	alice := newUser("alice")
	room, _ := testRoom("standup", alice)

	if err := room.AddEstimate(alice, 3); !errors.Is(err, ErrNoActiveTask) {
		t.Fatalf("expected ErrNoActiveTask, got %v", err)
	}
}

func TestRoomRoundClearsWhenAllVotersEstimated(t *testing.T) {
	alice := newUser("alice")
	room, _ := testRoom("standup", alice)
	bob := newUser("bob")
	carol := newUser("carol")
	if err := bob.JoinRoom(room, RoleEstimator); err != nil {
		t.Fatalf("join bob: %v", err)
	}
	if err := carol.JoinRoom(room, RoleSpectator); err != nil {
		t.Fatalf("join carol: %v", err)
	}

	if _, err := room.CreateTask(alice, "login-bug"); err != nil {
		t.Fatalf("create task: %v", err)
	}

	if err := bob.Estimate(3); err != nil {
		t.Fatalf("bob estimate: %v", err)
	}
	if room.Task() == nil {
		t.Fatalf("round must stay open until the admin votes")
	}

	// Spectators do not vote; alice's estimate completes the round.
	if err := alice.Estimate(5); err != nil {
		t.Fatalf("alice estimate: %v", err)
	}
	if room.Task() != nil {
		t.Fatalf("round should clear once admin and estimators voted")
	}
}

func TestRoomRoundClearsWhenLastNonVoterLeaves(t *testing.T) {
	alice := newUser("alice")
	room, _ := testRoom("standup", alice)
	bob := newUser("bob")
	carol := newUser("carol")
	if err := bob.JoinRoom(room, RoleEstimator); err != nil {
		t.Fatalf("join bob: %v", err)
	}
	if err := carol.JoinRoom(room, RoleEstimator); err != nil {
		t.Fatalf("join carol: %v", err)
	}

	if _, err := room.CreateTask(alice, "login-bug"); err != nil {
		t.Fatalf("create task: %v", err)
	}
	if err := alice.Estimate(5); err != nil {
		t.Fatalf("alice estimate: %v", err)
	}
	if err := bob.Estimate(3); err != nil {
		t.Fatalf("bob estimate: %v", err)
	}
	if room.Task() == nil {
		t.Fatalf("round must stay open while carol has not voted")
	}

	// Carol leaves without voting; the remaining roster has fully voted, so
	// the round must close rather than wedge the room.
	if _, emptied, err := carol.LeaveRoom(); err != nil || emptied {
		t.Fatalf("carol leave: emptied=%v err=%v", emptied, err)
	}
	if room.Task() != nil {
		t.Fatalf("round should clear when the last non-voter leaves")
	}
	if _, err := room.CreateTask(alice, "next-round"); err != nil {
		t.Fatalf("room is wedged, new task rejected: %v", err)
	}
}

func TestRoomFinalTallyBroadcastBeforeClear(t *testing.T) {
	alice := newUser("alice")
	room, _ := testRoom("standup", alice)
	bob := newUser("bob")
	if err := bob.JoinRoom(room, RoleEstimator); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := room.CreateTask(alice, "login-bug"); err != nil {
		t.Fatalf("create task: %v", err)
	}
	if err := alice.Estimate(5); err != nil {
		t.Fatalf("alice estimate: %v", err)
	}

	drain(alice.outbox)
	drain(bob.outbox)

	if err := bob.Estimate(3); err != nil {
		t.Fatalf("bob estimate: %v", err)
	}

	// The completing vote yields two pushes: the full tally, then the idle room.
	tally := mustRoomStatus(t, bob.outbox)
	if tally.RoomStatus.Task.ID != "login-bug" || len(tally.RoomStatus.Task.Estimates) != 2 {
		t.Fatalf("expected full tally before the round clears: %+v", tally.RoomStatus.Task)
	}
	cleared := mustRoomStatus(t, bob.outbox)
	if cleared.RoomStatus.Task.ID != "" || len(cleared.RoomStatus.Task.Estimates) != 0 {
		t.Fatalf("expected idle room after the tally: %+v", cleared.RoomStatus.Task)
	}
}

func TestRoomDuplicateEstimateNotApplied(t *testing.T) {
	alice := newUser("alice")
	room, _ := testRoom("standup", alice)
	bob := newUser("bob")
	if err := bob.JoinRoom(room, RoleEstimator); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := room.CreateTask(alice, "login-bug"); err != nil {
		t.Fatalf("create task: %v", err)
	}

	if err := bob.Estimate(3); err != nil {
		t.Fatalf("first estimate: %v", err)
	}
	if err := bob.Estimate(8); !errors.Is(err, ErrAlreadyEstimated) {
		t.Fatalf("expected ErrAlreadyEstimated, got %v", err)
	}
}

func TestRoomSelectiveEstimateDisclosure(t *testing.T) {
	alice := newUser("alice")
	room, _ := testRoom("standup", alice)
	bob := newUser("bob")
	carol := newUser("carol")
	if err := bob.JoinRoom(room, RoleEstimator); err != nil {
		t.Fatalf("join bob: %v", err)
	}
	if err := carol.JoinRoom(room, RoleEstimator); err != nil {
		t.Fatalf("join carol: %v", err)
	}
	if _, err := room.CreateTask(alice, "login-bug"); err != nil {
		t.Fatalf("create task: %v", err)
	}

	drain(alice.outbox)
	drain(bob.outbox)
	drain(carol.outbox)

	if err := bob.Estimate(3); err != nil {
		t.Fatalf("estimate: %v", err)
	}

	// The admin and the estimator who voted see the estimate; the estimator
	// who has not voted yet gets a redacted status.
	if got := lastRoomStatus(t, alice.outbox).RoomStatus.Task.Estimates; len(got) != 1 {
		t.Fatalf("admin should see estimates, got %+v", got)
	}
	if got := lastRoomStatus(t, bob.outbox).RoomStatus.Task.Estimates; len(got) != 1 {
		t.Fatalf("voter should see estimates, got %+v", got)
	}
	if got := lastRoomStatus(t, carol.outbox).RoomStatus.Task.Estimates; len(got) != 0 {
		t.Fatalf("non-voter should not see estimates, got %+v", got)
	}
}
