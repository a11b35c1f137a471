package chathistory

import (
	"errors"
	"fmt"
)

// ErrKind categorizes a Error the way the history store's operations can fail.
// String values are illustrative only, not a stable API surface.
type ErrKind string

const (
	ErrStateDirEmpty    ErrKind = "state_dir_empty"
	ErrUsernameEmpty    ErrKind = "username_empty"
	ErrConvIDEmpty      ErrKind = "conv_id_empty"
	ErrEnvelopeEmpty    ErrKind = "envelope_empty"
	ErrSystemTextEmpty  ErrKind = "system_text_empty"
	ErrMsgIDEmpty       ErrKind = "msg_id_empty"
	ErrRng              ErrKind = "rng"
	ErrSecureStoreWrap  ErrKind = "secure_store_wrap"
	ErrSecureUnwrap     ErrKind = "secure_store_unwrap"
	ErrKeyInvalid       ErrKind = "key_invalid"
	ErrKeyNotLoaded     ErrKind = "key_not_loaded"
	ErrKeyTooLarge      ErrKind = "key_too_large"
	ErrKeyWrite         ErrKind = "key_write"
	ErrCreateFailed     ErrKind = "create_failed"
	ErrWrite            ErrKind = "write"
	ErrRead             ErrKind = "read"
	ErrOpen             ErrKind = "open"
	ErrMagicMismatch    ErrKind = "magic_mismatch"
	ErrRecordSizeInval  ErrKind = "record_size_invalid"
	ErrRecordTooLarge   ErrKind = "record_too_large"
	ErrRecordEmpty      ErrKind = "record_empty"
	ErrAuthFailed       ErrKind = "auth_failed"
)

// Error is the error type returned by every Store operation that can fail.
// Op names the operation that failed; Kind categorizes the failure per
// spec; Err, when present, is the underlying cause.
type Error struct {
	Op   string
	Kind ErrKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chathistory: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("chathistory: %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, chathistory.ErrAuthFailedSentinel) style checks
// via Kind comparison: errors.Is(err, &Error{Kind: ErrAuthFailed}).
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

func newErr(op string, kind ErrKind, cause error) *Error {
	return &Error{Op: op, Kind: kind, Err: cause}
}

// Sentinel errors for errors.Is checks against well-known failure kinds
// without constructing an Error.
var (
	ErrMagicMismatchSentinel = &Error{Kind: ErrMagicMismatch}
	ErrAuthFailedSentinel    = &Error{Kind: ErrAuthFailed}
)
