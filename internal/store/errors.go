package store

import (
	"errors"
	"fmt"
)

// SyncError describes a sync message that could not be applied.
//
// Sync errors are never fatal. Run logs them and drops the message, leaving
// the instance in its pre-message state.
type SyncError struct {
	// Code identifies the error category.
	Code SyncErrorCode

	// Message is a human-readable description.
	Message string

	// Store is the instance name the message addressed.
	Store string

	// Path is the message path.
	Path string

	// Err is the underlying cause, if any.
	Err error
}

// SyncErrorCode categorizes sync errors.
type SyncErrorCode string

const (
	// ErrCodeUnknownStore indicates no persistent instance has the name.
	ErrCodeUnknownStore SyncErrorCode = "UNKNOWN_STORE"

	// ErrCodeInvalidPath indicates the path does not resolve to a target
	// the action can apply to.
	ErrCodeInvalidPath SyncErrorCode = "INVALID_PATH"

	// ErrCodeUnsupportedAction indicates the action is not a known mutation.
	ErrCodeUnsupportedAction SyncErrorCode = "UNSUPPORTED_ACTION"

	// ErrCodeApplyFailed indicates the mutation itself failed.
	ErrCodeApplyFailed SyncErrorCode = "APPLY_FAILED"

	// ErrCodeDecodeFailed indicates the payload is not a valid message.
	ErrCodeDecodeFailed SyncErrorCode = "DECODE_FAILED"
)

// Error implements the error interface.
func (e *SyncError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Store != "" {
		msg = fmt.Sprintf("%s (store=%s, path=%q)", msg, e.Store, e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *SyncError) Unwrap() error {
	return e.Err
}

// SyncErrorCodeOf returns the code of the first SyncError in err's chain, or
// "" when there is none.
func SyncErrorCodeOf(err error) SyncErrorCode {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsUnknownStore returns true if err reports a message for an unknown store.
func IsUnknownStore(err error) bool {
	return SyncErrorCodeOf(err) == ErrCodeUnknownStore
}

func newSyncError(code SyncErrorCode, msg Message, text string, cause error) *SyncError {
	return &SyncError{
		Code:    code,
		Message: text,
		Store:   msg.Store,
		Path:    msg.Path,
		Err:     cause,
	}
}
