package domain

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error category.
type Code string

// Error codes surfaced by engine operations.
const (
	CodeNotFound             Code = "not_found"
	CodeCapacityExceeded     Code = "capacity_exceeded"
	CodeAlreadyAssigned      Code = "already_assigned"
	CodeFetch                Code = "fetch_failed"
	CodeOptimization         Code = "optimization_failed"
	CodePersistence          Code = "persistence_failed"
	CodeCompatibilityCompute Code = "compatibility_compute_failed"
	CodeInvalidArgument      Code = "invalid_argument"
	CodeInvalidState         Code = "invalid_state"
	CodeInternal             Code = "internal"

	// CodeStaleConfiguration only appears on warnings for loaded
	// configurations that reference participants outside the current pool.
	CodeStaleConfiguration Code = "stale_configuration"
)

// Error is the coded error returned by every engine operation for expected
// failure conditions.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// NewError creates a coded error.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError creates a coded error wrapping cause.
func WrapError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WithMetadata returns a copy of e carrying the supplied key/value pairs.
func (e *Error) WithMetadata(kv ...string) *Error {
	cp := *e
	cp.Metadata = make(map[string]string, len(e.Metadata)+len(kv)/2)
	for k, v := range e.Metadata {
		cp.Metadata[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		cp.Metadata[kv[i]] = kv[i+1]
	}
	return &cp
}

// CodeOf extracts the code of the first *Error in err's chain. Errors that
// carry no code report CodeInternal; a nil error reports "".
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// ErrNotFound builds a NotFound error for the given entity.
func ErrNotFound(entity EntityType, id string) *Error {
	return NewError(CodeNotFound, fmt.Sprintf("%s %s not found", entity, id)).
		WithMetadata("entity", string(entity), "id", id)
}

// ErrCapacityExceeded builds a CapacityExceeded error for a full group.
func ErrCapacityExceeded(g Group) *Error {
	return NewError(CodeCapacityExceeded, fmt.Sprintf("group %s (%s) is full: %d/%d participants", g.Name, g.ID, len(g.Participants), g.MaxSize)).
		WithMetadata("group_id", string(g.ID))
}

// ErrAlreadyAssigned builds an AlreadyAssigned error.
func ErrAlreadyAssigned(participant ParticipantID, group GroupID) *Error {
	return NewError(CodeAlreadyAssigned, fmt.Sprintf("participant %s already assigned to group %s", participant, group)).
		WithMetadata("participant_id", string(participant), "group_id", string(group))
}
