package chat

import "errors"

// Registry errors. Handlers translate these into the notice strings the
// client renders; none of them ever leaves a mutation behind.
var (
	ErrUserNotFound     = errors.New("user not found")
	ErrChannelNotFound  = errors.New("channel not found")
	ErrNicknameTaken    = errors.New("nickname already taken")
	ErrAlreadyInChannel = errors.New("already in channel")
	ErrNotInChannel     = errors.New("not in any channel")
)
