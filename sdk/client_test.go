package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func boundClient(t *testing.T, handler http.Handler) (*SessionClient, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	client := NewSessionClient(NewTransport(ts.URL, testLogger()), GameChess, testLogger())
	if _, err := client.Attach(context.Background(), "s1"); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	return client, ts
}

func snapshotHandler(version int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(GameSession{ID: "s1", Kind: GameChess, Version: version, TurnNumber: 1})
	}
}

func TestSubmitTurnRejectsConcurrentSubmission(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var enteredOnce sync.Once

	mux := http.NewServeMux()
	mux.HandleFunc("GET /games/s1", snapshotHandler(1))
	mux.HandleFunc("POST /games/s1/turns", func(w http.ResponseWriter, r *http.Request) {
		enteredOnce.Do(func() { close(entered) })
		<-release
		json.NewEncoder(w).Encode(TurnResult{Version: 2, TurnNumber: 2})
	})

	client, _ := boundClient(t, mux)

	done := make(chan error, 1)
	go func() {
		_, err := client.SubmitTurn(context.Background(), "p1", nil, TurnOptions{})
		done <- err
	}()

	<-entered

	// Second submission for the same player while the first is outstanding.
	_, err := client.SubmitTurn(context.Background(), "p1", nil, TurnOptions{})
	if !errors.Is(err, ErrTurnInFlight) {
		t.Fatalf("expected ErrTurnInFlight, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first submission failed: %v", err)
	}

	// Once resolved, the gate clears and the next submission proceeds.
	if _, err := client.SubmitTurn(context.Background(), "p1", nil, TurnOptions{}); err != nil {
		t.Fatalf("gate must clear after the submission resolves, got %v", err)
	}
}

func TestApplyTurnNeverRegressesVersion(t *testing.T) {
	client, _ := boundClient(t, snapshotHandler(5))

	stale := int64(3)
	client.applyTurn(&TurnResult{Version: stale, TurnNumber: 99})

	if got := client.Version(); got != 5 {
		t.Errorf("version = %d, want 5 (stale result must be dropped)", got)
	}
	if client.Session().TurnNumber == 99 {
		t.Error("stale turn result mutated the session")
	}
}

func TestApplyTurnFiresCreditsHook(t *testing.T) {
	received := make(chan int64, 1)

	ts := httptest.NewServer(snapshotHandler(1))
	t.Cleanup(ts.Close)

	client := NewSessionClient(NewTransport(ts.URL, testLogger()), GameChess, testLogger(),
		WithCreditsHook(func(remaining int64) { received <- remaining }))
	if _, err := client.Attach(context.Background(), "s1"); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	credits := int64(9995)
	client.applyTurn(&TurnResult{Version: 2, TurnNumber: 2, CreditsRemaining: &credits})

	select {
	case got := <-received:
		if got != 9995 {
			t.Errorf("credits = %d, want 9995", got)
		}
	case <-time.After(time.Second):
		t.Fatal("credits hook never fired")
	}
}

func TestDeleteTreatsMissingSessionAsSuccess(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /games/s1", snapshotHandler(1))
	mux.HandleFunc("DELETE /games/s1", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{}`, http.StatusNotFound)
	})

	client, _ := boundClient(t, mux)
	if err := client.Delete(context.Background()); err != nil {
		t.Fatalf("deleting an already-deleted session must succeed, got %v", err)
	}
}

func TestDeleteAsyncDoesNotBlock(t *testing.T) {
	blocked := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("GET /games/s1", snapshotHandler(1))
	mux.HandleFunc("DELETE /games/s1", func(w http.ResponseWriter, r *http.Request) {
		<-blocked
		w.WriteHeader(http.StatusNoContent)
	})

	client, _ := boundClient(t, mux)
	defer close(blocked)

	done := make(chan struct{})
	go func() {
		client.DeleteAsync()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("DeleteAsync blocked on the server")
	}
}

func TestSubmitTurnSurfacesStaleConflict(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /games/s1", snapshotHandler(1))
	mux.HandleFunc("POST /games/s1/turns", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]int{"current_turn": 4, "expected_turn": 2})
	})

	client, _ := boundClient(t, mux)

	expected := 2
	_, err := client.SubmitTurn(context.Background(), "p1", nil, TurnOptions{ExpectedTurn: &expected})
	if !IsStaleTurn(err) {
		t.Fatalf("expected a stale turn conflict, got %v", err)
	}

	var stale *StaleTurnError
	errors.As(err, &stale)
	if stale.CurrentTurn != 4 || stale.ExpectedTurn != 2 {
		t.Errorf("conflict fields = %+v", stale)
	}
}
