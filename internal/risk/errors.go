package risk

import "errors"

var (
	// ErrInvalidConfig marks a policy that must be rejected before any evaluation runs.
	ErrInvalidConfig = errors.New("invalid risk config")
	// ErrPositionNotFound is returned for state lookups on untracked position ids.
	ErrPositionNotFound = errors.New("position not found")
	// ErrInvalidInput marks malformed requests at the transport boundary.
	ErrInvalidInput = errors.New("invalid input")
)
