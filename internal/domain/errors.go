package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrUnknownExchange = errors.New("unknown exchange")
	ErrLockHeld        = errors.New("lock already held")
)
