package internalerr

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrDataAccess       = errors.New("data access failed")
)

// DataAccessError reports a failed provider call. The engine never
// substitutes defaults for data it could not load.
type DataAccessError struct {
	Op  string // provider operation, e.g. "inventory"
	Err error
}

func (e *DataAccessError) Error() string {
	return fmt.Sprintf("data access %s: %v", e.Op, e.Err)
}

func (e *DataAccessError) Unwrap() error { return e.Err }

// Is reports ErrDataAccess as a match so callers can branch on the category
// without a type assertion.
func (e *DataAccessError) Is(target error) bool {
	return target == ErrDataAccess
}

// NewDataAccess wraps err for operation op. A nil err returns nil.
func NewDataAccess(op string, err error) error {
	if err == nil {
		return nil
	}
	return &DataAccessError{Op: op, Err: err}
}
