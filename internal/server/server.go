package server

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/agentarena/arena/sdk"
)

// Defaults for the reference server.
const (
	DefaultSessionTTL    = 2 * time.Hour
	DefaultSweepInterval = time.Minute
	DefaultMatchWindow   = 2 * time.Minute

	defaultStartingCredits = 10000
	defaultCreditsPerTurn  = 5
)

// Server is the in-memory reference implementation of the arena API.
type Server struct {
	logger     *log.Logger
	clock      quartz.Clock
	store      *Store
	matchmaker *Matchmaker
	rng        *rand.Rand
	upgrader   websocket.Upgrader

	ttl             time.Duration
	sweepEvery      time.Duration
	matchWindow     time.Duration
	startingCredits int64
	creditsPerTurn  int64

	mu      sync.Mutex
	pokerRT map[string]*pokerRuntime
}

// Option configures a Server.
type Option func(*Server)

// WithClock sets the clock used for long polls, deadlines, and sweeps.
func WithClock(clock quartz.Clock) Option {
	return func(s *Server) { s.clock = clock }
}

// WithSeed makes dealing and showdowns deterministic.
func WithSeed(seed int64) Option {
	return func(s *Server) { s.rng = rand.New(rand.NewSource(seed)) }
}

// WithSessionTTL sets how long an idle session survives before the
// reclamation sweep removes it.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Server) { s.ttl = ttl }
}

// WithSweepInterval sets how often the reclamation sweep runs.
func WithSweepInterval(every time.Duration) Option {
	return func(s *Server) { s.sweepEvery = every }
}

// WithMatchWindow sets the matchmaking waiting deadline.
func WithMatchWindow(window time.Duration) Option {
	return func(s *Server) { s.matchWindow = window }
}

// New creates a server.
func New(logger *log.Logger, opts ...Option) *Server {
	s := &Server{
		logger:          logger.WithPrefix("server"),
		clock:           quartz.NewReal(),
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
		ttl:             DefaultSessionTTL,
		sweepEvery:      DefaultSweepInterval,
		matchWindow:     DefaultMatchWindow,
		startingCredits: defaultStartingCredits,
		creditsPerTurn:  defaultCreditsPerTurn,
		pokerRT:         make(map[string]*pokerRuntime),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.store = NewStore(s.clock)
	s.matchmaker = NewMatchmaker(s.logger, s.clock, s.matchWindow,
		func(kind sdk.GameKind, agentIDs []string, config json.RawMessage) (sdk.GameSession, error) {
			return s.createSession(kind, agentIDs, config, false, nil)
		})
	return s
}

// Handler returns the HTTP handler for the full API surface.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

// Run serves the API on addr until ctx is cancelled, running the
// reclamation sweep alongside.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		s.sweepLoop(ctx)
		return nil
	})

	return g.Wait()
}

// sweepLoop periodically reclaims idle sessions and expires stale tickets.
// This is the safety net that makes lost fire-and-forget deletions benign.
func (s *Server) sweepLoop(ctx context.Context) {
	ticker := s.clock.NewTicker(s.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if reclaimed := s.store.Sweep(s.ttl); reclaimed > 0 {
				s.logger.Info("reclaimed idle sessions", "count", reclaimed)
			}
			s.matchmaker.Sweep()
		}
	}
}
