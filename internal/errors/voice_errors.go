package errors

import "errors"

var (
	ErrChannelNotFound   = errors.New("channel not found")
	ErrCommunityNotFound = errors.New("community not found")
	ErrProfileNotFound   = errors.New("profile not found")
	ErrDispatcherStopped = errors.New("dispatcher stopped")
)
