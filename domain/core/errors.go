package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	ErrVariableNotFound = errors.New("variable not found")
	ErrInsufficientData = errors.New("insufficient data for analysis")
	ErrInvalidModel     = errors.New("invalid model specification")
)

// NewVariableNotFoundError reports a missing variable by key
func NewVariableNotFoundError(key string) error {
	return fmt.Errorf("%w: %s", ErrVariableNotFound, key)
}
