package coretools

import (
	"errors"
	"fmt"
)

// ErrReserved marks a path inside the sandbox that the tools refuse to touch.
var ErrReserved = errors.New("path is reserved")

// Error is a tool failure whose message is shown to the model as-is.
// Kind carries the underlying sentinel so callers can use errors.Is.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func toolErrorf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
