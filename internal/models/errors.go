package models

import "errors"

var (
	ErrValidation          = errors.New("invalid input")
	ErrNotFound            = errors.New("resource not found")
	ErrConflict            = errors.New("conflict")
	ErrAlreadyResolved     = errors.New("analysis already resolved")
	ErrAlreadyBanned       = errors.New("user is already banned")
	ErrAlreadySuspended    = errors.New("user is already suspended")
	ErrUserBanned          = errors.New("user is banned")
	ErrJobRunning          = errors.New("job already running")
	ErrProviderRateLimited = errors.New("provider rate limited")
	ErrRateLimitExhausted  = errors.New("rate limit retries exhausted")
	ErrInvalidPayload      = errors.New("invalid payload")
)
