package domain

import "errors"

var (
	ErrNotMember       = errors.New("user is not a member of the room")
	ErrInvalidPhase    = errors.New("invalid playback phase")
	ErrInvalidPosition = errors.New("playback position must not be negative")
)
