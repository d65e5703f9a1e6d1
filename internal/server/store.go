// Package server is the in-memory reference implementation of the arena
// session protocol: long-poll state sync, optimistic-concurrency turn
// handling, matchmaking, and reclamation of abandoned sessions. It carries no
// game rules engines; positions and outcomes come from scripted producers.
package server

import (
	"context"
	"sync"
	"time"

	"github.com/coder/quartz"

	"github.com/agentarena/arena/sdk"
)

// Session is the server-side record of one game session. The snapshot's
// version counter is the sole arbiter of staleness: it only increases, and
// every mutation goes through Bump.
type Session struct {
	mu       sync.Mutex
	snapshot sdk.GameSession
	credits  int64
	touched  time.Time

	// changed is closed and replaced on every version bump; long-poll
	// waiters block on it.
	changed chan struct{}
}

// Store holds all live sessions.
type Store struct {
	mu       sync.Mutex
	clock    quartz.Clock
	sessions map[string]*Session
}

// NewStore creates an empty store.
func NewStore(clock quartz.Clock) *Store {
	return &Store{
		clock:    clock,
		sessions: make(map[string]*Session),
	}
}

// Put registers a new session. The snapshot must already be at version >= 1.
func (st *Store) Put(snapshot sdk.GameSession, credits int64) *Session {
	sess := &Session{
		snapshot: snapshot,
		credits:  credits,
		touched:  st.clock.Now(),
		changed:  make(chan struct{}),
	}
	st.mu.Lock()
	st.sessions[snapshot.ID] = sess
	st.mu.Unlock()
	return sess
}

// Get returns the session, touching its idle timer.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	sess, ok := st.sessions[id]
	st.mu.Unlock()
	if ok {
		sess.mu.Lock()
		sess.touched = st.clock.Now()
		sess.mu.Unlock()
	}
	return sess, ok
}

// Delete removes a session. Idempotent: deleting a missing session is fine,
// which is what makes the client's fire-and-forget teardown safe to lose.
func (st *Store) Delete(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
}

// Sweep removes sessions idle for longer than ttl and returns how many were
// reclaimed. This is the safety net for teardown deletions that never
// arrived.
func (st *Store) Sweep(ttl time.Duration) int {
	now := st.clock.Now()
	st.mu.Lock()
	defer st.mu.Unlock()

	reclaimed := 0
	for id, sess := range st.sessions {
		sess.mu.Lock()
		idle := now.Sub(sess.touched)
		sess.mu.Unlock()
		if idle > ttl {
			delete(st.sessions, id)
			reclaimed++
		}
	}
	return reclaimed
}

// Snapshot returns a copy of the current session state.
func (s *Session) Snapshot() sdk.GameSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copySnapshotLocked()
}

// Credits returns the remaining resource balance for the session owner.
func (s *Session) Credits() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credits
}

// Bump applies a mutation, advances the version, and wakes all long-poll
// waiters. The mutation must not touch Version itself.
func (s *Session) Bump(mutate func(*sdk.GameSession)) sdk.GameSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	mutate(&s.snapshot)
	s.snapshot.Version++

	close(s.changed)
	s.changed = make(chan struct{})

	return s.copySnapshotLocked()
}

// Try applies fn atomically, advancing the version and waking waiters only
// when fn succeeds. Used by the turn handler so the optimistic-concurrency
// check and the mutation happen under one lock.
func (s *Session) Try(fn func(*sdk.GameSession) error) (sdk.GameSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(&s.snapshot); err != nil {
		return sdk.GameSession{}, err
	}
	s.snapshot.Version++

	close(s.changed)
	s.changed = make(chan struct{})

	return s.copySnapshotLocked(), nil
}

// SpendCredits decrements the owner's balance and returns the remainder.
func (s *Session) SpendCredits(amount int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credits -= amount
	if s.credits < 0 {
		s.credits = 0
	}
	return s.credits
}

// WaitForVersion blocks until the session version exceeds after, the hold
// window elapses, or ctx is done. Returns (snapshot, true) on an advance and
// (zero, false) when nothing changed within the hold.
func (s *Session) WaitForVersion(ctx context.Context, clock quartz.Clock, after int64, hold time.Duration) (sdk.GameSession, bool) {
	timeout := make(chan struct{})
	if hold > 0 {
		timer := clock.AfterFunc(hold, func() { close(timeout) })
		defer timer.Stop()
	} else {
		close(timeout)
	}

	for {
		s.mu.Lock()
		if s.snapshot.Version > after {
			snap := s.copySnapshotLocked()
			s.mu.Unlock()
			return snap, true
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-timeout:
			return sdk.GameSession{}, false
		case <-ctx.Done():
			return sdk.GameSession{}, false
		}
	}
}

// WaitChanged returns the channel closed on the next version bump. For the
// spectator feed.
func (s *Session) WaitChanged() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

func (s *Session) copySnapshotLocked() sdk.GameSession {
	snap := s.snapshot
	snap.Events = append([]sdk.Event(nil), s.snapshot.Events...)
	snap.Players = append([]sdk.Player(nil), s.snapshot.Players...)
	return snap
}
