package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrIntegrityViolation marks a uniqueness or foreign-key breach reported by the store.
	ErrIntegrityViolation = errors.New("integrity violation")
	// ErrOperationFailure marks any other store fault, including lock contention
	// that outlived the retry budget.
	ErrOperationFailure = errors.New("store operation failed")
	// ErrValidation marks a configuration patch rejected before any mutation.
	ErrValidation = errors.New("invalid configuration value")
	// ErrParse marks an emoji that matches none of the accepted shapes.
	ErrParse = errors.New("cannot parse emoji")
)

// ValidationError identifies the offending patch field and the violated constraint.
type ValidationError struct {
	Field      string
	Constraint string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Constraint)
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// IsStoreError reports whether err originated from the persistent store.
func IsStoreError(err error) bool {
	return errors.Is(err, ErrOperationFailure) || errors.Is(err, ErrIntegrityViolation)
}
