package core

import "errors"

var (
	// ErrInvalidInput marks a malformed request. Nothing was written.
	ErrInvalidInput = errors.New("invalid input")
	// ErrProcessing marks a failure while handling a turn. The message shown
	// to users never includes the wrapped cause.
	ErrProcessing = errors.New("processing failed")
	ErrNotFound   = errors.New("not found")
)

// UserFacingError is the only error text transports send to clients.
const UserFacingError = "Sorry, an error occurred processing your message."
