package trimapi

import (
	"context"
	"errors"
)

type Kind string

const (
	// KindLocal never reaches the network; the size guard produces it.
	KindLocal Kind = "local"
	// KindNetwork is a transport-level failure. Its message is a single
	// fixed, user-actionable string regardless of the underlying cause.
	KindNetwork Kind = "network"
	// KindServer is a non-success response; the message comes from the
	// body's structured detail field when present, else the status text.
	KindServer Kind = "server"
)

const networkErrMessage = "network error: could not reach the TokenTrim service"

type Error struct {
	Kind    Kind
	Message string
	Status  int
}

func (e *Error) Error() string {
	return e.Message
}

func NewLocalError(msg string) *Error {
	return &Error{Kind: KindLocal, Message: msg}
}

func newNetworkError() *Error {
	return &Error{Kind: KindNetwork, Message: networkErrMessage}
}

func newServerError(status int, detail string) *Error {
	return &Error{Kind: KindServer, Status: status, Message: detail}
}

// IsCancelled reports whether err comes from a cancelled or superseded
// operation. Such outcomes are dropped silently, never surfaced as errors.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// UserMessage maps any error to the string stored on a task or entry.
func UserMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return networkErrMessage
}
