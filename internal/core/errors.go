package core

import "errors"

// Domain outcomes. Every public Lobby/Room/User operation returns one of
// these (nil means OK), so transports can map them to responses with
// errors.Is instead of try/catch-style branching.
var (
	ErrUserNotConnected     = errors.New("user not connected")
	ErrUserAlreadyConnected = errors.New("user already connected")
	ErrUserNotAdmin         = errors.New("user is not the room admin")
	ErrUserAlreadyInRoom    = errors.New("user already in a room")
	ErrUserNotInRoom        = errors.New("user not in a room")

	ErrRoomNameEmpty       = errors.New("room name is empty")
	ErrRoomNameTooLong     = errors.New("room name exceeds 20 characters")
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoomAlreadyExists   = errors.New("room already exists")
	ErrRoomAlreadyHasAdmin = errors.New("room already has an admin")

	ErrTaskNameEmpty    = errors.New("task name is empty")
	ErrTaskNameTooLong  = errors.New("task name exceeds 20 characters")
	ErrTaskInProgress   = errors.New("a task is already in progress")
	ErrNoActiveTask     = errors.New("no active task")
	ErrAlreadyEstimated = errors.New("user already estimated")
)

// maxNameLen bounds room names, usernames and task ids on the wire.
const maxNameLen = 20
