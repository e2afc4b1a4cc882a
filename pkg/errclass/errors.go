package errclass

import "fmt"

// Error is a stable, machine-readable error class.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// WithMessage returns a new Error with the same Code but a specific message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Code: e.Code, Message: msg}
}

// WithMessagef returns a new Error with a formatted message.
func (e *Error) WithMessagef(format string, args ...any) *Error {
	return &Error{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

// Stable error classes. A FAIL verdict is not an error and has no class here.
var (
	// ErrMalformedInput: the record is not a well-formed JSON value or lacks
	// the declared hash field.
	ErrMalformedInput = &Error{Code: "E_MALFORMED_INPUT"}
	// ErrCyclicStructure: the value refers back to itself.
	ErrCyclicStructure = &Error{Code: "E_CYCLIC_STRUCTURE"}
	// ErrCanonicalization wraps any failure to produce a canonical form.
	ErrCanonicalization  = &Error{Code: "E_CANONICALIZATION"}
	ErrDigestComputation = &Error{Code: "E_DIGEST_COMPUTATION"}
	ErrConfigInvalid     = &Error{Code: "E_CONFIG_INVALID"}
	ErrAuditChainBroken  = &Error{Code: "E_AUDIT_CHAIN_BROKEN"}
)

// Code returns the class code of err, or "" when err carries no class.
func Code(err error) string {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Code
		}
		switch u := err.(type) {
		case interface{ Unwrap() error }:
			err = u.Unwrap()
		case interface{ Unwrap() []error }:
			errs := u.Unwrap()
			if len(errs) == 0 {
				return ""
			}
			err = errs[0]
		default:
			return ""
		}
	}
	return ""
}
