package apperrors

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionExpired      = errors.New("session expired")
	ErrReferenceUnresolved = errors.New("reference could not be resolved against conversation history")
	ErrContentBlocked      = errors.New("content blocked")
)
