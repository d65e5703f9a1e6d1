package sdk

import (
	"errors"
	"fmt"
)

// Sentinel errors for outcomes callers branch on.
var (
	// ErrUnauthorized means the server rejected our credentials. The
	// transport recovers the session once and retries before surfacing this.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound means the session or ticket no longer exists.
	ErrNotFound = errors.New("not found")

	// ErrTurnInFlight means a turn submission is already outstanding for the
	// same session and player. The caller must wait for it to resolve.
	ErrTurnInFlight = errors.New("turn submission already in flight")
)

// TransportError wraps a transient network or server failure. Safe to retry
// with backoff; no state changed.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable transport failure.
func IsTransient(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// StaleTurnError means the authoritative turn counter already passed the
// expected turn number the submission carried. The turn was NOT applied by
// this request; the caller must re-poll before deciding whether to act again.
// Deliberately distinct from TransportError so a conflict is never mistaken
// for a dropped request.
type StaleTurnError struct {
	ExpectedTurn int
	CurrentTurn  int
}

func (e *StaleTurnError) Error() string {
	return fmt.Sprintf("stale turn: expected turn %d but server is at turn %d", e.ExpectedTurn, e.CurrentTurn)
}

// IsStaleTurn reports whether err is a stale-turn conflict.
func IsStaleTurn(err error) bool {
	var se *StaleTurnError
	return errors.As(err, &se)
}

// ValidationError means the server rejected the request as malformed (bad
// move, bad card token, bad seed). Never retried; surfaced to the user.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Message
}

// ProtocolError is a fatal contract violation: an event type the decoder does
// not recognize, or a snapshot shape that does not parse. Never absorbed or
// guessed around; a silently wrong replay is worse than a loud failure.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return "protocol: " + e.Message
}

// IsFatal reports whether err is a protocol error that must abort the
// operation rather than be retried.
func IsFatal(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
