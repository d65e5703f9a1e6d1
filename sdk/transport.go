package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

// TokenProvider supplies auth credentials and recovers an expired session.
// Authentication itself lives outside this package; the transport only knows
// to attach a token and to ask for recovery once on a 401 before giving up.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) error
}

// Transport performs HTTP round trips against the arena API, translating
// status codes into the package error taxonomy and retrying transient
// failures with backoff.
type Transport struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
	clock      quartz.Clock
	tokens     TokenProvider

	maxAttempts int
	retryDelay  time.Duration
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(c *http.Client) TransportOption {
	return func(t *Transport) { t.httpClient = c }
}

// WithClock sets the clock used for retry backoff. Tests pass a mock.
func WithClock(clock quartz.Clock) TransportOption {
	return func(t *Transport) { t.clock = clock }
}

// WithTokenProvider sets the auth collaborator.
func WithTokenProvider(p TokenProvider) TransportOption {
	return func(t *Transport) { t.tokens = p }
}

// WithRetry sets the transient retry policy.
func WithRetry(maxAttempts int, delay time.Duration) TransportOption {
	return func(t *Transport) {
		t.maxAttempts = maxAttempts
		t.retryDelay = delay
	}
}

// NewTransport creates a transport for the given API base URL.
func NewTransport(baseURL string, logger *log.Logger, opts ...TransportOption) *Transport {
	t := &Transport{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{},
		logger:      logger.WithPrefix("transport"),
		clock:       quartz.NewReal(),
		maxAttempts: 3,
		retryDelay:  500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// request describes one API call.
type request struct {
	method string
	path   string
	query  url.Values
	body   any

	// timeout bounds the whole call including retries. Zero means the
	// caller's context is the only bound.
	timeout time.Duration

	// idempotent allows transient-failure retries. Non-idempotent requests
	// (a turn submission with no expected turn number) fail fast instead of
	// risking a double apply.
	idempotent bool
}

// errorBody is the wire shape of API error responses.
type errorBody struct {
	Error        string `json:"error"`
	Message      string `json:"message"`
	CurrentTurn  int    `json:"current_turn"`
	ExpectedTurn int    `json:"expected_turn"`
}

// do performs the request, decoding a JSON body into out when out is non-nil.
// Returns the HTTP status code so callers can distinguish 204 "no change"
// from a fresh snapshot.
func (t *Transport) do(ctx context.Context, req request, out any) (int, error) {
	if req.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.timeout)
		defer cancel()
	}

	attempts := t.maxAttempts
	if !req.idempotent {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			t.logger.Debug("retrying after transient failure",
				"method", req.method, "path", req.path, "attempt", attempt)
			if err := t.sleep(ctx, t.retryDelay*time.Duration(attempt-1)); err != nil {
				return 0, &TransportError{Op: req.method + " " + req.path, Err: err}
			}
		}

		status, err := t.once(ctx, req, out)
		if err == nil {
			return status, nil
		}
		if !IsTransient(err) {
			return status, err
		}
		lastErr = err
	}
	return 0, lastErr
}

// once performs a single round trip, with at most one auth recovery retry.
func (t *Transport) once(ctx context.Context, req request, out any) (int, error) {
	status, err := t.roundTrip(ctx, req, out)
	if !errors.Is(err, ErrUnauthorized) {
		return status, err
	}
	if t.tokens == nil {
		return status, err
	}

	t.logger.Info("recovering session after auth failure", "path", req.path)
	if rerr := t.tokens.Refresh(ctx); rerr != nil {
		return status, fmt.Errorf("session recovery failed: %w", rerr)
	}
	return t.roundTrip(ctx, req, out)
}

func (t *Transport) roundTrip(ctx context.Context, req request, out any) (int, error) {
	op := req.method + " " + req.path

	var body io.Reader
	if req.body != nil {
		encoded, err := json.Marshal(req.body)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	target := t.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	if t.tokens != nil {
		token, err := t.tokens.Token(ctx)
		if err != nil {
			return 0, fmt.Errorf("fetch token: %w", err)
		}
		if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return 0, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return resp.StatusCode, nil

	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		if out == nil {
			io.Copy(io.Discard, resp.Body)
			return resp.StatusCode, nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, &ProtocolError{Message: fmt.Sprintf("%s: malformed response body: %v", op, err)}
		}
		return resp.StatusCode, nil

	case resp.StatusCode == http.StatusUnauthorized:
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, ErrUnauthorized

	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, fmt.Errorf("%s: %w", op, ErrNotFound)

	case resp.StatusCode == http.StatusConflict:
		var eb errorBody
		if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil {
			return resp.StatusCode, &ProtocolError{Message: fmt.Sprintf("%s: malformed conflict body: %v", op, err)}
		}
		return resp.StatusCode, &StaleTurnError{ExpectedTurn: eb.ExpectedTurn, CurrentTurn: eb.CurrentTurn}

	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		var eb errorBody
		if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil {
			return resp.StatusCode, &ValidationError{Message: "request rejected"}
		}
		msg := eb.Message
		if msg == "" {
			msg = eb.Error
		}
		return resp.StatusCode, &ValidationError{Message: msg}

	default:
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, &TransportError{Op: op, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
}

// forget issues the request on a detached context and discards the outcome.
// Used for teardown deletion: at most one attempt, never blocks the caller,
// allowed to be lost. The server's reclamation sweep is the safety net.
func (t *Transport) forget(req request) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// roundTrip is a single attempt by construction; no retry policy
		// applies here.
		if _, err := t.roundTrip(ctx, req, nil); err != nil {
			t.logger.Debug("fire-and-forget request lost", "path", req.path, "error", err)
		}
	}()
}

func (t *Transport) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := t.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
