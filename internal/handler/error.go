package handler

import "errors"

// UserError is an error that should be displayed to the user.
type UserError struct {
	Message string
	// Public replies are visible to the whole channel.
	Public bool
}

func (e *UserError) Error() string {
	return e.Message
}

var _ error = (*UserError)(nil)

func userError(message string) *UserError {
	return &UserError{Message: message}
}

func publicError(message string) *UserError {
	return &UserError{Message: message, Public: true}
}

// ErrFlowExpired is returned for a component interaction whose flow has
// been forgotten.
var ErrFlowExpired = errors.New("flow expired")
