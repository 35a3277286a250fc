package models

import "errors"

var (
	ErrNotFound          = errors.New("match not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrFull              = errors.New("match is full")
	ErrUnauthorized      = errors.New("only the host may do that")
	ErrNoMatch           = errors.New("no pending word matches")
	ErrTransient         = errors.New("store temporarily unavailable")
	ErrInvalidConfig     = errors.New("invalid match configuration")
	ErrCodeTaken         = errors.New("match code already in use")
	ErrConflict          = errors.New("concurrent update conflict")
)
