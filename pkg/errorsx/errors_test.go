package errorsx

import (
	"errors"
	"fmt"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestAddMessage(t *testing.T) {
	c := qt.New(t)

	base := errors.New("boom")
	err := AddMessage(base, "Something went wrong. Please try again.")

	c.Check(errors.Is(err, base), qt.IsTrue)
	c.Check(err.Error(), qt.Equals, "boom")
	c.Check(Message(err), qt.Equals, "Something went wrong. Please try again.")
	c.Check(AddMessage(nil, "ignored"), qt.IsNil)
}

func TestMessageOrErr(t *testing.T) {
	c := qt.New(t)

	c.Check(MessageOrErr(nil), qt.Equals, "")
	c.Check(MessageOrErr(errors.New("raw")), qt.Equals, "raw")

	err := AddMessage(ErrNotFound, "File not found.")
	c.Check(MessageOrErr(err), qt.Equals, "File not found.")

	// The message survives further wrapping.
	wrapped := fmt.Errorf("deleting file: %w", err)
	c.Check(MessageOrErr(wrapped), qt.Equals, "File not found.")
	c.Check(errors.Is(wrapped, ErrNotFound), qt.IsTrue)
}

func TestWrapf(t *testing.T) {
	c := qt.New(t)

	c.Check(Wrapf(nil, "context"), qt.IsNil)

	err := Wrapf(AddMessage(ErrRateLimiting, "Too many requests."), "backend %s", "provider")
	c.Check(errors.Is(err, ErrRateLimiting), qt.IsTrue)
	c.Check(Message(err), qt.Equals, "Too many requests.")
	c.Check(err.Error(), qt.Equals, "backend provider: rate limit exceeded")
}
