// Package errorsx contains domain errors that the different layers can use
// to add meaning to an error, plus helpers to attach end-user-facing messages
// to an error chain. The entrypoint middlewares intercept the sentinels and
// convert them to the relevant HTTP codes.
package errorsx

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is used when the provided argument is incorrect
	// (e.g. a missing routing hint on a non-message agent upload).
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound is used when a resource doesn't exist.
	ErrNotFound = errors.New("not found")
	// ErrUnsupportedFileType is used when a file cannot be routed to the
	// requested strategy (e.g. an image into file search, or the embedding
	// service reporting an unknown type).
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrRateLimiting is used when the rate limit is exceeded.
	ErrRateLimiting = errors.New("rate limit exceeded")
	// ErrExceedMaxBatchSize is used when the max deletion batch size is
	// exceeded.
	ErrExceedMaxBatchSize = errors.New("batch size exceeded")
)

// messageErr pairs an error with a message that can be shown to an end user.
type messageErr struct {
	cause   error
	message string
}

// AddMessage attaches an end-user message to an error, preserving the chain
// for errors.Is / errors.As.
func AddMessage(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &messageErr{cause: err, message: msg}
}

func (e *messageErr) Error() string { return e.cause.Error() }
func (e *messageErr) Unwrap() error { return e.cause }

// Message extracts the deepest end-user message in the chain of err. It
// returns an empty string when no message has been attached.
func Message(err error) string {
	for err != nil {
		if me, ok := err.(*messageErr); ok {
			return me.message
		}
		err = errors.Unwrap(err)
	}
	return ""
}

// MessageOrErr returns the end-user message attached to err, falling back to
// the error string when none is present.
func MessageOrErr(err error) string {
	if msg := Message(err); msg != "" {
		return msg
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// Wrapf behaves like fmt.Errorf with %w but keeps any attached end-user
// message reachable through the chain.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
