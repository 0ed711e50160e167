// ABOUTME: Command surface error type and classification of store errors
// ABOUTME: Messages follow the "Failed to <action>: <cause>" convention shown to users

package commands

import (
	"errors"
	"fmt"

	"github.com/2389/statekeeper/internal/kvstore"
	"github.com/2389/statekeeper/internal/prefs"
)

// Kind classifies a command failure.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalid
	KindStoreAccess
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindStoreAccess:
		return "store_access"
	case KindPersistence:
		return "persistence"
	default:
		return "internal"
	}
}

// Error is returned by every command.
type Error struct {
	Op      string
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or KindInternal if err is not an *Error.
func KindOf(err error) Kind {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind
	}
	return KindInternal
}

func invalid(op, what string, err error) *Error {
	return &Error{
		Op:      op,
		Kind:    KindInvalid,
		Message: fmt.Sprintf("Invalid %s: %v", what, err),
		Err:     err,
	}
}

// classify wraps a service error. failed is the action used in the
// persistence message, e.g. "save settings".
func classify(op, failed string, err error) *Error {
	switch {
	case errors.Is(err, kvstore.ErrStoreAccess):
		return &Error{Op: op, Kind: KindStoreAccess, Message: "Failed to access store: " + err.Error(), Err: err}
	case errors.Is(err, kvstore.ErrPersistence):
		return &Error{Op: op, Kind: KindPersistence, Message: "Failed to " + failed + ": " + err.Error(), Err: err}
	case errors.Is(err, prefs.ErrInvalid):
		return &Error{Op: op, Kind: KindInvalid, Message: err.Error(), Err: err}
	default:
		return &Error{Op: op, Kind: KindInternal, Message: "Failed to " + failed + ": " + err.Error(), Err: err}
	}
}
