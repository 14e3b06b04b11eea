package common

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrType classifies the errors that cross component boundaries.
type ErrType uint32

const (
	// Validation is a malformed request or transaction.
	Validation ErrType = iota
	// InvalidSignature is a signature that does not match the transaction.
	InvalidSignature
	// InsufficientFunds is a transfer that would overdraw the sender.
	InsufficientFunds
	// PeerUnreachable is a timeout or refusal from a remote node. It is
	// recoverable; the call is retried in the next round.
	PeerUnreachable
	// Storage is a persistence failure. Nothing was written.
	Storage
)

// String ...
func (t ErrType) String() string {
	switch t {
	case Validation:
		return "Validation"
	case InvalidSignature:
		return "InvalidSignature"
	case InsufficientFunds:
		return "InsufficientFunds"
	case PeerUnreachable:
		return "PeerUnreachable"
	case Storage:
		return "Storage"
	default:
		return "Unknown"
	}
}

// Error is a classified error. The optional cause is exposed through Unwrap
// only, so that errors.Cause stops here and keeps the classification.
type Error struct {
	errType ErrType
	msg     string
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.errType, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.errType, e.msg)
}

// Type returns the classification of the error.
func (e *Error) Type() ErrType {
	return e.errType
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// NewValidationErr ...
func NewValidationErr(format string, args ...interface{}) error {
	return &Error{errType: Validation, msg: fmt.Sprintf(format, args...)}
}

// NewInvalidSignatureErr ...
func NewInvalidSignatureErr(signature string) error {
	return &Error{errType: InvalidSignature, msg: fmt.Sprintf("signature %q does not verify", signature)}
}

// NewInsufficientFundsErr ...
func NewInsufficientFundsErr(address string, balance, amount uint64) error {
	return &Error{
		errType: InsufficientFunds,
		msg:     fmt.Sprintf("%s holds %d, cannot send %d", address, balance, amount),
	}
}

// NewPeerUnreachableErr ...
func NewPeerUnreachableErr(target string, cause error) error {
	return &Error{errType: PeerUnreachable, msg: target, cause: cause}
}

// NewStorageErr ...
func NewStorageErr(op string, cause error) error {
	return &Error{errType: Storage, msg: op, cause: cause}
}

// Is checks that err, or the error it wraps, is a classified Error of type t.
func Is(err error, t ErrType) bool {
	e, ok := errors.Cause(err).(*Error)
	return ok && e.errType == t
}

// TypeOf returns the classification of err and whether it has one.
func TypeOf(err error) (ErrType, bool) {
	e, ok := errors.Cause(err).(*Error)
	if !ok {
		return 0, false
	}
	return e.errType, true
}
