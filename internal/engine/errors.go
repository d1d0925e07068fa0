package engine

import (
	"errors"
	"fmt"
)

// Error is the failure type surfaced by the persistent store and its
// collaborators.
//
// Codes and their propagation:
//   - INITIALIZATION: the engine could not be created or loaded. Fatal; blocks
//     readiness until the store is closed and initialized again.
//   - NOT_READY: an operation ran before initialization finished. Programmer
//     error, always returned.
//   - MIGRATION: the engine transition failed. Recoverable; the selector is
//     unchanged and the transition can be retried.
//   - BACKUP_FORMAT: a backup bundle was malformed or incompatible. Returned
//     before anything is mutated.
//   - WRITE: the durable blob store rejected a write. Logged and retried on
//     the next scheduled save; the in-memory engine is unaffected.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op names the failing operation ("initialize", "flush", ...).
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes store errors.
type ErrorCode string

const (
	ErrCodeInitialization ErrorCode = "INITIALIZATION"
	ErrCodeNotReady       ErrorCode = "NOT_READY"
	ErrCodeMigration      ErrorCode = "MIGRATION"
	ErrCodeBackupFormat   ErrorCode = "BACKUP_FORMAT"
	ErrCodeWrite          ErrorCode = "WRITE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s: %s", e.Code, e.Op, e.Message)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Recoverable reports whether the application stays fully functional after
// this error.
func (e *Error) Recoverable() bool {
	switch e.Code {
	case ErrCodeMigration, ErrCodeWrite:
		return true
	default:
		return false
	}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsInitialization returns true if err is an initialization failure.
func IsInitialization(err error) bool { return CodeOf(err) == ErrCodeInitialization }

// IsNotReady returns true if err reports use before initialization.
func IsNotReady(err error) bool { return CodeOf(err) == ErrCodeNotReady }

// IsMigration returns true if err is an engine transition failure.
func IsMigration(err error) bool { return CodeOf(err) == ErrCodeMigration }

// IsBackupFormat returns true if err rejects a backup bundle.
func IsBackupFormat(err error) bool { return CodeOf(err) == ErrCodeBackupFormat }

// IsWrite returns true if err is a durable write failure.
func IsWrite(err error) bool { return CodeOf(err) == ErrCodeWrite }

// NewInitializationError wraps a failure to create or load the engine.
func NewInitializationError(message string, err error) *Error {
	return &Error{Code: ErrCodeInitialization, Op: "initialize", Message: message, Err: err}
}

// NewNotReadyError reports op was attempted before initialization finished.
func NewNotReadyError(op string) *Error {
	return &Error{Code: ErrCodeNotReady, Op: op, Message: "store is not initialized"}
}

// NewMigrationError wraps a failed engine transition.
func NewMigrationError(message string, err error) *Error {
	return &Error{Code: ErrCodeMigration, Op: "migrate", Message: message, Err: err}
}

// NewBackupFormatError rejects a backup bundle.
func NewBackupFormatError(message string, err error) *Error {
	return &Error{Code: ErrCodeBackupFormat, Op: "import", Message: message, Err: err}
}

// NewWriteError wraps a rejected durable write of key.
func NewWriteError(key string, err error) *Error {
	return &Error{Code: ErrCodeWrite, Op: "write", Message: fmt.Sprintf("durable write of %q failed", key), Err: err}
}
