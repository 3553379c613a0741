package core

import (
	"errors"
	"fmt"
)

// Code is the machine-readable reason attached to every rejection so callers
// can explain why a record was not stored without leaking key material.
type Code string

const (
	CodeProvenanceMissing    Code = "provenance_missing"
	CodeSignatureMissing     Code = "signature_missing"
	CodeSignatureInvalid     Code = "signature_invalid"
	CodeHashMismatch         Code = "hash_mismatch"
	CodeNotFound             Code = "not_found"
	CodeIDCollision          Code = "id_collision"
	CodeChainBroken          Code = "chain_broken"
	CodeTransport            Code = "transport_error"
	CodeRegistryInconsistent Code = "registry_inconsistent"
)

// Error couples a reason code with human-readable context. Validation
// failures are terminal for the record being processed; they never abort
// unrelated records.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on the reason code so callers can use errors.Is with a bare
// NewError(code, "") sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError builds a coded error.
func NewError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// WrapError builds a coded error wrapping a cause.
func WrapError(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf extracts the reason code from an error chain. Returns the empty
// string for errors outside the taxonomy.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var ce *ChainError
	if errors.As(err, &ce) {
		return CodeChainBroken
	}
	return ""
}

// ChainError reports the first broken link found while walking the chain.
// Everything at and after Index is untrusted; callers must treat this as a
// trust failure, not a partial success.
type ChainError struct {
	Index  int
	Reason string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("%s: entry %d: %s", CodeChainBroken, e.Index, e.Reason)
}
