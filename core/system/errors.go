package system

import (
	"errors"
	"fmt"

	"github.com/codewandler/wsactor/core/identity"
)

var (
	// Resolution errors
	ErrTypeMismatch  = errors.New("actor has a different type")
	ErrResolveFailed = errors.New("on-demand resolution failed")

	// Transport errors
	ErrNotConnected     = errors.New("not connected")
	ErrServerInitiated  = errors.New("server does not initiate calls")
	ErrForeignIdentity  = errors.New("identity is not on the connected peer")
	ErrConnectionClosed = errors.New("connection closed")
	ErrWrongMode        = errors.New("operation not available in this mode")

	// Remote errors
	ErrRemoteFailure = errors.New("remote call failed")
	ErrNoTarget      = errors.New("no such invocation target")
	ErrNotReceiver   = errors.New("actor does not accept remote calls")
)

// ResolveError describes why an identity could not be resolved to the
// requested type.
type ResolveError struct {
	ID       identity.ID
	Expected string
	Found    string
	Err      error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve %s: %s (expected %s, found %s)", e.ID, e.Err, e.Expected, e.Found)
}

func (e *ResolveError) Unwrap() error { return e.Err }
