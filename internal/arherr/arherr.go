// Package arherr defines the error vocabulary shared by the ARH/ARD codec
// packages (internal/arh, internal/ard, internal/arhx) and the public
// archive facade. Keeping it in its own leaf package lets every layer
// return and compare errors without an import cycle back into archive.
package arherr

import "fmt"

// Code identifies one of the error kinds named in the format's error
// handling design. Lookup-like errors (NotFound, AlreadyExists) never
// poison archive state; Invariant always does.
type Code int

const (
	// NotFound indicates a path, file id, or backing file is missing.
	NotFound Code = iota
	// AlreadyExists indicates an insertion collided with an existing entry.
	AlreadyExists
	// InvalidFormat indicates a header, size, or back-link inconsistency.
	InvalidFormat
	// IO indicates a short read/write or other storage failure.
	IO
	// NoSpace indicates the block allocator could not satisfy a request.
	NoSpace
	// Unsupported indicates an operation the archive cannot perform as
	// opened (Write without a writable ARD, Flush without a source path)
	// or a codec failure.
	Unsupported
	// Invariant indicates an internal self-check failed; non-recoverable.
	Invariant
)

func (c Code) String() string {
	switch c {
	case NotFound:
		return "not found"
	case AlreadyExists:
		return "already exists"
	case InvalidFormat:
		return "invalid format"
	case IO:
		return "I/O error"
	case NoSpace:
		return "no space"
	case Unsupported:
		return "unsupported"
	case Invariant:
		return "invariant violation"
	default:
		return "unknown error"
	}
}

// Error is the concrete error type every package in this module returns.
// It carries a Code so callers can branch on error kind without parsing
// strings, plus a message describing where the failure occurred.
type Error struct {
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Code, so callers can
// write errors.Is(err, arherr.New(arherr.NotFound, "", nil)) or, more
// conventionally, errors.As plus a Code comparison.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New constructs an *Error. Err may be nil.
func New(code Code, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// Wrap wraps err with code if err is non-nil, returning nil otherwise. It is
// the common case of "something downstream failed and we know what kind of
// failure this represents at this layer."
func Wrap(code Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return New(code, op, err)
}

// Is reports whether err is an *Error carrying code.
func Is(err error, code Code) bool {
	e, ok := err.(*Error)
	return ok && e.Code == code
}
