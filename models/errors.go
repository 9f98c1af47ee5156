package models

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindConfiguration ErrorKind = "ConfigurationError"
	KindTransport     ErrorKind = "TransportError"
	KindProtocol      ErrorKind = "ProtocolError"
	KindTimeout       ErrorKind = "TimeoutError"
	KindParse         ErrorKind = "ParseError"
	KindRender        ErrorKind = "RenderError"
	KindUnknown       ErrorKind = "UnknownError"
)

// Error carries the kind of a report failure through wrapping layers.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Errorf(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the outermost *Error in the chain.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
