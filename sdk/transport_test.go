package sdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestTransportRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer ts.Close()

	transport := NewTransport(ts.URL, testLogger(), WithRetry(3, 0))
	var out struct {
		OK bool `json:"ok"`
	}
	status, err := transport.do(context.Background(), request{
		method:     http.MethodGet,
		path:       "/thing",
		idempotent: true,
	}, &out)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if status != http.StatusOK || !out.OK {
		t.Errorf("status = %d, out = %+v", status, out)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestTransportDoesNotRetryNonIdempotent(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	transport := NewTransport(ts.URL, testLogger(), WithRetry(3, 0))
	_, err := transport.do(context.Background(), request{
		method: http.MethodPost,
		path:   "/turns",
	}, nil)
	if !IsTransient(err) {
		t.Fatalf("expected a transient error, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1 (a turn without an expected turn number must not be retried)", got)
	}
}

type refreshingTokens struct {
	token     atomic.Value
	refreshes atomic.Int32
}

func (p *refreshingTokens) Token(ctx context.Context) (string, error) {
	return p.token.Load().(string), nil
}

func (p *refreshingTokens) Refresh(ctx context.Context) error {
	p.refreshes.Add(1)
	p.token.Store("fresh")
	return nil
}

func TestTransportRecoversSessionOnce(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{}`)
	}))
	defer ts.Close()

	tokens := &refreshingTokens{}
	tokens.token.Store("expired")

	transport := NewTransport(ts.URL, testLogger(), WithTokenProvider(tokens))
	status, err := transport.do(context.Background(), request{
		method:     http.MethodGet,
		path:       "/thing",
		idempotent: true,
	}, nil)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if status != http.StatusOK {
		t.Errorf("status = %d, want 200", status)
	}
	if got := tokens.refreshes.Load(); got != 1 {
		t.Errorf("refreshes = %d, want exactly 1", got)
	}
}

func TestTransportStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "conflict is a stale turn",
			status: http.StatusConflict,
			body:   `{"current_turn":7,"expected_turn":5}`,
			check: func(t *testing.T, err error) {
				var stale *StaleTurnError
				if !errors.As(err, &stale) {
					t.Fatalf("expected StaleTurnError, got %v", err)
				}
				if stale.CurrentTurn != 7 || stale.ExpectedTurn != 5 {
					t.Errorf("got current=%d expected=%d", stale.CurrentTurn, stale.ExpectedTurn)
				}
				if IsTransient(err) {
					t.Error("a stale turn must never look transient")
				}
			},
		},
		{
			name:   "unprocessable is a validation error",
			status: http.StatusUnprocessableEntity,
			body:   `{"message":"bad move"}`,
			check: func(t *testing.T, err error) {
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				if ve.Message != "bad move" {
					t.Errorf("message = %q", ve.Message)
				}
			},
		},
		{
			name:   "bad request is a validation error",
			status: http.StatusBadRequest,
			body:   `{"error":"malformed"}`,
			check: func(t *testing.T, err error) {
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
			},
		},
		{
			name:   "not found",
			status: http.StatusNotFound,
			body:   `{}`,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrNotFound) {
					t.Fatalf("expected ErrNotFound, got %v", err)
				}
			},
		},
		{
			name:   "server error is transient",
			status: http.StatusBadGateway,
			body:   ``,
			check: func(t *testing.T, err error) {
				if !IsTransient(err) {
					t.Fatalf("expected a transient error, got %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer ts.Close()

			transport := NewTransport(ts.URL, testLogger(), WithRetry(1, 0))
			_, err := transport.do(context.Background(), request{
				method: http.MethodGet,
				path:   "/thing",
			}, nil)
			if err == nil {
				t.Fatal("expected an error")
			}
			tt.check(t, err)
		})
	}
}

func TestTransportMalformedBodyIsFatal(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{not json`)
	}))
	defer ts.Close()

	transport := NewTransport(ts.URL, testLogger())
	var out map[string]any
	_, err := transport.do(context.Background(), request{
		method:     http.MethodGet,
		path:       "/thing",
		idempotent: true,
	}, &out)
	if !IsFatal(err) {
		t.Fatalf("expected a protocol error, got %v", err)
	}
}
