package shared

import "errors"

// Error taxonomy shared by all modules. Services wrap these sentinels with
// fmt.Errorf and the HTTP layer maps them to status codes.
var (
	// ErrNotFound indicates a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed or missing required input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates the operation contradicts current state.
	ErrConflict = errors.New("conflict with current state")
	// ErrForbidden indicates the caller lacks a required capability.
	ErrForbidden = errors.New("forbidden")
)
