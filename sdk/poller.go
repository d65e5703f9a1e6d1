package sdk

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
)

// PollSlack is added to the server-side hold time when computing the request
// deadline, so a long poll the server holds for the full window is never
// mistaken for a timed-out request.
const PollSlack = 10 * time.Second

// VersionGate is the single apply-if-newer check every state-receiving path
// passes through. A snapshot is applied only if its version strictly exceeds
// the version already held; older or equal versions are dropped
// unconditionally, so out-of-order and duplicate responses can never regress
// state. Not safe for concurrent use; the owning client serializes access.
type VersionGate struct {
	version int64
}

// Version returns the highest version applied so far.
func (g *VersionGate) Version() int64 {
	return g.version
}

// Admit reports whether a response at the given version should be applied,
// advancing the gate if so.
func (g *VersionGate) Admit(version int64) bool {
	if version <= g.version {
		return false
	}
	g.version = version
	return true
}

// StatePoller implements the long-poll primitive: ask for the session state
// once it differs from a known version, or learn that nothing changed within
// the hold window.
type StatePoller struct {
	transport *Transport
	logger    *log.Logger
}

// NewStatePoller creates a poller on the given transport.
func NewStatePoller(transport *Transport, logger *log.Logger) *StatePoller {
	return &StatePoller{
		transport: transport,
		logger:    logger.WithPrefix("poller"),
	}
}

// Poll asks the server for the session state once its version exceeds
// knownVersion. If the version has already advanced the call returns
// immediately; otherwise the server holds the request for up to hold before
// answering "no change".
//
// Returns (session, true, nil) on an update and (nil, false, nil) on "no
// change". No change is a routine outcome, never an error: it is a license to
// re-poll immediately.
func (p *StatePoller) Poll(ctx context.Context, sessionID string, knownVersion int64, hold time.Duration) (*GameSession, bool, error) {
	holdSeconds := int(hold / time.Second)
	query := url.Values{
		"current_version": {strconv.FormatInt(knownVersion, 10)},
		"timeout":         {strconv.Itoa(holdSeconds)},
	}

	var session GameSession
	status, err := p.transport.do(ctx, request{
		method:     http.MethodGet,
		path:       "/games/" + sessionID,
		query:      query,
		timeout:    hold + PollSlack,
		idempotent: true,
	}, &session)
	if err != nil {
		return nil, false, err
	}

	if status == http.StatusNoContent {
		return nil, false, nil
	}

	// A response at or below the version we already hold is stale; treat it
	// exactly like "no change" rather than regressing.
	if session.Version <= knownVersion {
		p.logger.Debug("discarding stale poll response",
			"session", sessionID, "held", knownVersion, "received", session.Version)
		return nil, false, nil
	}

	return &session, true, nil
}
