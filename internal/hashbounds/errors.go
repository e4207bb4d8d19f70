package hashbounds

import "errors"

// All errors are caller misuse; none are retried internally.
var (
	ErrInvalidLevelCount = errors.New("hashbounds: level count must be at least 1")
	ErrInvalidMinSize    = errors.New("hashbounds: min size must be positive")
	ErrAlreadyPresent    = errors.New("hashbounds: entry already present")
	ErrNotPresent        = errors.New("hashbounds: entry not present")
	ErrInvalidBoxFormat  = errors.New("hashbounds: invalid box format")
	ErrDegenerateBox     = errors.New("hashbounds: degenerate box")
)
