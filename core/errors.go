package core

import (
	"errors"
	"fmt"
)

var (
	ErrUnparseable         = errors.New("unparseable literal")
	ErrKindMismatch        = errors.New("value does not match parameter kind")
	ErrOutOfRange          = errors.New("value out of range")
	ErrLengthMismatch      = errors.New("mean and std lists differ in length")
	ErrMissingDistribution = errors.New("no distribution for band")
	ErrUnsupportedChange   = errors.New("unsupported change value")
	ErrUnsupportedKind     = errors.New("unsupported parameter kind")
	ErrUnknownParameter    = errors.New("unknown parameter")
	ErrShape               = errors.New("tensor shape mismatch")
	ErrNotApplicable       = errors.New("required value is NA")
)

// ParameterError attaches the offending parameter and input to one of the
// sentinel errors above.
type ParameterError struct {
	Name  string
	Value string
	Err   error
}

func (e *ParameterError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("parameter %q: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("parameter %q (%s): %v", e.Name, e.Value, e.Err)
}

func (e *ParameterError) Unwrap() error { return e.Err }

func paramErr(name, value string, err error) error {
	return &ParameterError{Name: name, Value: value, Err: err}
}

// paramErrf wraps a sentinel with extra detail while keeping errors.Is
// working against it.
func paramErrf(name, value string, sentinel error, format string, args ...any) error {
	return &ParameterError{Name: name, Value: value, Err: fmt.Errorf("%w: "+format, append([]any{sentinel}, args...)...)}
}
