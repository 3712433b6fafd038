package archive

import "github.com/tesshu/arhfs/internal/arherr"

// Code identifies one of the error kinds from the format's error handling
// design (§7). It is an alias for the internal vocabulary shared by the
// codec packages, re-exported here as the one public error surface.
type Code = arherr.Code

// Error is the concrete error type every operation in this package returns.
type Error = arherr.Error

const (
	ErrCodeNotFound      = arherr.NotFound
	ErrCodeAlreadyExists = arherr.AlreadyExists
	ErrCodeInvalidFormat = arherr.InvalidFormat
	ErrCodeIO            = arherr.IO
	ErrCodeNoSpace       = arherr.NoSpace
	ErrCodeUnsupported   = arherr.Unsupported
	ErrCodeInvariant     = arherr.Invariant
)

// IsCode reports whether err is an *Error carrying the given code.
func IsCode(err error, code Code) bool {
	e, ok := err.(*Error)
	return ok && e.Code == code
}
