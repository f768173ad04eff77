package core

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyResponse is returned by a session when the provider answered
	// with zero messages. It is never converted into an empty string.
	ErrEmptyResponse = errors.New("model did not return a response")

	// ErrEngineStopped is returned when a command is sent to an engine whose
	// loop has been cancelled.
	ErrEngineStopped = errors.New("engine stopped")
)

// FaultError describes a failure raised while the engine processed one
// command. The engine recovers it, reports it as a diagnostic message and
// keeps running.
type FaultError struct {
	Command CommandKind
	// Err is the handler's returned error, or nil when the handler panicked.
	Err error
	// Panic holds the recovered value when the handler panicked.
	Panic any
	Stack string
}

func (e *FaultError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("processing %s command: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("processing %s command: panic: %v", e.Command, e.Panic)
}

// Unwrap exposes the handler error for errors.Is / errors.As.
func (e *FaultError) Unwrap() error { return e.Err }
