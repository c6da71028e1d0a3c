package domain

import "errors"

// Input errors. These are reported before any network action is taken.
var (
	ErrInvalidRange       = errors.New("invalid IP range")
	ErrTooManyTargets     = errors.New("range expands to too many targets")
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidRequest     = errors.New("invalid request")
)
