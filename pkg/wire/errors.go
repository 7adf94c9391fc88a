package wire

import (
	"errors"
	"fmt"
)

// ErrDecode matches every error produced while decoding a payload.
var ErrDecode = errors.New("wire: decode error")

// MissingFieldError reports a required field absent from a payload.
type MissingFieldError struct {
	Type  string
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("wire: decoding %s: missing field %q", e.Type, e.Field)
}

func (e *MissingFieldError) Is(target error) bool {
	return target == ErrDecode
}

// UnexpectedTypeError reports a payload value that cannot be converted into
// the declared type.
type UnexpectedTypeError struct {
	Type string
	Err  error
}

func (e *UnexpectedTypeError) Error() string {
	return fmt.Sprintf("wire: decoding %s: %v", e.Type, e.Err)
}

func (e *UnexpectedTypeError) Is(target error) bool {
	return target == ErrDecode
}

func (e *UnexpectedTypeError) Unwrap() error {
	return e.Err
}
