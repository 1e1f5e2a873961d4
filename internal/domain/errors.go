package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrRateLimited        = errors.New("rate limited")
	ErrUpstream           = errors.New("upstream unavailable")
	ErrInvalidConditionID = errors.New("invalid condition id")
	ErrEventNotFound      = errors.New("event not found in receipt")
	ErrMalformedLog       = errors.New("malformed event log")
	ErrReverted           = errors.New("transaction reverted")
	ErrSigningFailed      = errors.New("signing failed")
	ErrInvalidPhase       = errors.New("invalid deployment phase")
	ErrLockHeld           = errors.New("lock already held")
	ErrInvalidAddress     = errors.New("invalid address")
)
