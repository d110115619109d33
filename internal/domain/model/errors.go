package model

import "errors"

// Error kinds shared across layers.
var (
	ErrInputValidation = errors.New("input validation failed")
	ErrDataSource      = errors.New("data source unavailable")
	ErrNotEligible     = errors.New("player not eligible")
	ErrAlreadyGranted  = errors.New("bonus already granted")
	ErrScoreRowMissing = errors.New("score row missing")
)

// Error carries the failing operation and its kind alongside the cause.
// errors.Is matches both the kind and the wrapped error.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	var msg string
	switch {
	case e.Err != nil && e.Kind != nil && !errors.Is(e.Err, e.Kind):
		msg = e.Kind.Error() + ": " + e.Err.Error()
	case e.Err != nil:
		msg = e.Err.Error()
	case e.Kind != nil:
		msg = e.Kind.Error()
	}
	if e.Op == "" {
		return msg
	}
	if msg == "" {
		return e.Op
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NewKind returns an error of the given kind raised by op.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// Wrap annotates err with op, keeping whatever kind it already has.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: KindOf(err), Err: err}
}

// WrapKind annotates err with op and kind. If err already carries a kind,
// that kind wins.
func WrapKind(op string, kind, err error) error {
	if err == nil {
		return nil
	}
	if k := KindOf(err); k != nil {
		kind = k
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf returns the outermost kind recorded on err, or nil.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return nil
}
