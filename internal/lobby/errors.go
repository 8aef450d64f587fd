// internal/lobby/errors.go
package lobby

import (
	"errors"
	"fmt"
)

// Kind classifies a rejected lobby transition.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindConflict
	KindForbidden
	KindIllegalState
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindForbidden:
		return "forbidden"
	case KindIllegalState:
		return "illegal_state"
	default:
		return "unknown"
	}
}

// Error is a typed rejection reported synchronously to the requester. Rejections are never
// retried; the caller must correct its state and ask again.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

var (
	ErrLobbyNotFound     = &Error{KindNotFound, "lobby not found"}
	ErrMemberNotFound    = &Error{KindNotFound, "user is not a member of this lobby"}
	ErrAlreadyInLobby    = &Error{KindConflict, "user already belongs to a lobby"}
	ErrNotJoinable       = &Error{KindConflict, "lobby is not joinable"}
	ErrNotFull           = &Error{KindConflict, "lobby is not full"}
	ErrNotReady          = &Error{KindConflict, "not every member is ready"}
	ErrTeamFull          = &Error{KindConflict, "destination team is full"}
	ErrNotOwner          = &Error{KindForbidden, "only the lobby owner can do this"}
	ErrCannotKickSelf    = &Error{KindForbidden, "the owner cannot kick themselves"}
	ErrIllegalWhileReady = &Error{KindIllegalState, "cannot change team while ready"}
	ErrNotPrivate        = &Error{KindIllegalState, "teams can only be chosen in a private lobby"}
	ErrLobbyInMatch      = &Error{KindIllegalState, "lobby is in selection or in game"}
	ErrNotSelecting      = &Error{KindIllegalState, "lobby is not in selection"}
	ErrInvalidPaddle     = &Error{KindIllegalState, "unknown or unselectable paddle"}
	ErrInvalidMap        = &Error{KindIllegalState, "unknown map"}
	ErrInvalidSettings   = &Error{KindIllegalState, "invalid lobby settings"}
)

// ErrPersistence wraps store failures. The transition that hit it was aborted.
var ErrPersistence = errors.New("lobby persistence failure")

func persistence(err error) error {
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

// KindOf returns the rejection kind of err, or 0 when err is not a lobby rejection.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
