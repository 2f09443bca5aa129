package game

import (
	"errors"
	"fmt"
)

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrInvalidJoin   = errors.New("invalid join")
	ErrIllegalIntent = errors.New("illegal intent")

	// ErrAlreadyVoted is an IllegalIntent; the second vote changes nothing.
	ErrAlreadyVoted = fmt.Errorf("%w: already voted", ErrIllegalIntent)
)

func illegal(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIllegalIntent, fmt.Sprintf(format, args...))
}

func invalidJoin(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidJoin, reason)
}

// ErrorKind names the rejection category sent back to clients.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, ErrInvalidJoin):
		return "invalid_join"
	case errors.Is(err, ErrAlreadyVoted):
		return "already_voted"
	case errors.Is(err, ErrIllegalIntent):
		return "illegal_intent"
	default:
		return "internal"
	}
}
