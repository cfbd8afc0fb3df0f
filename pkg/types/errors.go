package types

import "errors"

// Domain errors for type validation
var (
	// Request errors
	ErrInvalidRequest = errors.New("invalid search request")

	// Hit shape errors
	ErrMissingFQN    = errors.New("fqn is required")
	ErrInvalidKind   = errors.New("kind must be CLASS, INTERFACE, METHOD, MODULE or REPOSITORY")
	ErrMissingModule = errors.New("module is required")
)
