package compiler

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorType int

const (
	// ErrInput marks unusable input: empty audio, empty phrase list. Fatal
	// before any compute.
	ErrInput ErrorType = iota
	// ErrCapability marks an external model or service failure that
	// survived its retries.
	ErrCapability
	// ErrConsistency marks a broken internal invariant: cache mismatch,
	// timeline contiguity violation. Always fatal.
	ErrConsistency
	// ErrNoSpeech marks an audio source in which no speech was detected.
	ErrNoSpeech
	ErrFileWrite
	ErrConfig
	ErrUnknown
)

type RepetitorError struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func NewError(errorType ErrorType, message string) *RepetitorError {
	return &RepetitorError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(errorType ErrorType, message string, cause error) *RepetitorError {
	return &RepetitorError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func (e *RepetitorError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Type.String(), e.Message))

	if len(e.Context) > 0 {
		var ctxParts []string
		for k, v := range e.Context {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *RepetitorError) Unwrap() error {
	return e.Cause
}

func (e *RepetitorError) WithContext(key string, value any) *RepetitorError {
	e.Context[key] = value
	return e
}

func (t ErrorType) String() string {
	switch t {
	case ErrInput:
		return "Input"
	case ErrCapability:
		return "Capability"
	case ErrConsistency:
		return "Consistency"
	case ErrNoSpeech:
		return "NoSpeech"
	case ErrFileWrite:
		return "FileWrite"
	case ErrConfig:
		return "Config"
	default:
		return "Unknown"
	}
}

func IsErrorType(err error, errorType ErrorType) bool {
	var rerr *RepetitorError
	if errors.As(err, &rerr) {
		return rerr.Type == errorType
	}
	return false
}

func WrapError(err error, errorType ErrorType, message string) *RepetitorError {
	return NewErrorWithCause(errorType, message, err)
}
