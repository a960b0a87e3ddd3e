package session

import "errors"

var (
	// ErrRoomFull is returned when joining a room already at MaxMembers.
	ErrRoomFull = errors.New("room is full")

	// ErrRoomNotFound is returned for operations on a room that does not exist.
	ErrRoomNotFound = errors.New("room not found")

	// ErrNotHost is returned when a non-host member attempts a host-only action.
	ErrNotHost = errors.New("only the host may do that")

	// ErrNotMember is returned when the client is not on the room's roster.
	ErrNotMember = errors.New("not a member of this room")

	// ErrWrongPhase is returned when an action does not apply to the current phase.
	ErrWrongPhase = errors.New("action not allowed in current phase")

	// ErrNotReady is returned when a phase advance is attempted before its
	// completeness gate is satisfied.
	ErrNotReady = errors.New("not all active members are done")

	// ErrEmptyAnswer is returned for blank submission text.
	ErrEmptyAnswer = errors.New("answer text must not be empty")

	// ErrInvalidVoteTarget is returned when voting for someone without a submission.
	ErrInvalidVoteTarget = errors.New("vote target has no submission")
)
