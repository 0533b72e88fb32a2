package errors

import (
	"context"
	"errors"
	"fmt"
)

// Error is the code-carrying error used across the controller.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

const (
	ErrCodeParse              = "PARSE_ERROR"
	ErrCodeCollectionFailed   = "COLLECTION_FAILED"
	ErrCodeEmptySnapshot      = "EMPTY_SNAPSHOT"
	ErrCodeConfigWriteFailed  = "CONFIG_WRITE_FAILED"
	ErrCodeClusterApplyFailed = "CLUSTER_APPLY_FAILED"
	ErrCodeInvalidConfig      = "INVALID_CONFIG"
	ErrCodeInvalidDevice      = "INVALID_DEVICE"
	ErrCodeInvalidScript      = "INVALID_SCRIPT"
	ErrCodeDeviceExists       = "DEVICE_EXISTS"
	ErrCodeDeviceNotFound     = "DEVICE_NOT_FOUND"
)

// ErrNoSnapshots is returned when a rolling statistic is requested over an
// empty history.
var ErrNoSnapshots = errors.New("history has no snapshots")

func ErrCollectionFailed(command string, cause error) *Error {
	return &Error{
		Code:    ErrCodeCollectionFailed,
		Message: command,
		Cause:   cause,
	}
}

func ErrConfigWriteFailed(path string, cause error) *Error {
	return &Error{
		Code:    ErrCodeConfigWriteFailed,
		Message: "append " + path,
		Cause:   cause,
	}
}

func ErrClusterApplyFailed(step string, cause error) *Error {
	return &Error{
		Code:    ErrCodeClusterApplyFailed,
		Message: step,
		Cause:   cause,
	}
}

func ErrInvalidConfig(msg string, cause error) *Error {
	return &Error{
		Code:    ErrCodeInvalidConfig,
		Message: msg,
		Cause:   cause,
	}
}

func ErrInvalidDevice(msg string) *Error {
	return &Error{
		Code:    ErrCodeInvalidDevice,
		Message: msg,
	}
}

func ErrInvalidScript(msg string) *Error {
	return &Error{
		Code:    ErrCodeInvalidScript,
		Message: msg,
	}
}

func ErrDeviceExists(name string) *Error {
	return &Error{
		Code:    ErrCodeDeviceExists,
		Message: "device " + name + " already registered",
	}
}

func ErrDeviceNotFound(name string) *Error {
	return &Error{
		Code:    ErrCodeDeviceNotFound,
		Message: "device " + name + " not found",
	}
}

// ParseError names the input line and field a report could not be read from.
type ParseError struct {
	Line  int
	Text  string
	Field string
	Cause error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("%s: line %d", ErrCodeParse, e.Line)
	if e.Field != "" {
		msg += ": field " + e.Field
	}
	msg += fmt.Sprintf(": %q", e.Text)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Cause }

// EmptySnapshotError reports a snapshot in a history that has no primary
// device to aggregate.
type EmptySnapshotError struct {
	Index int
}

func (e *EmptySnapshotError) Error() string {
	return fmt.Sprintf("%s: snapshot %d has no primary device", ErrCodeEmptySnapshot, e.Index)
}

// IsCode reports whether err wraps an *Error carrying code.
func IsCode(err error, code string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsContextError reports whether err stems from a cancelled or expired
// context.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
