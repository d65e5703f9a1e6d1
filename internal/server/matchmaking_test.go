package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/agentarena/arena/sdk"
)

func testMatchmaker(t *testing.T, clock quartz.Clock, fail bool) *Matchmaker {
	t.Helper()
	return NewMatchmaker(log.New(io.Discard), clock, 2*time.Minute,
		func(kind sdk.GameKind, agentIDs []string, config json.RawMessage) (sdk.GameSession, error) {
			if fail {
				return sdk.GameSession{}, fmt.Errorf("no capacity")
			}
			return sdk.GameSession{ID: "game-1", Kind: kind}, nil
		})
}

func TestMatchmakerPairsFirstComeFirstServed(t *testing.T) {
	mock := quartz.NewMock(t)
	m := testMatchmaker(t, mock, false)

	first, err := m.Join(sdk.GameChess, "agent-a", nil)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if first.Status != sdk.TicketWaiting {
		t.Fatalf("first ticket status = %s, want waiting", first.Status)
	}

	second, err := m.Join(sdk.GameChess, "agent-b", nil)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if second.Status != sdk.TicketMatched {
		t.Fatalf("second ticket status = %s, want matched", second.Status)
	}
	if second.GameID == nil || *second.GameID != "game-1" {
		t.Fatalf("second ticket game = %v, want game-1", second.GameID)
	}

	// The first ticket resolved too, without another join.
	resolved, changed, found := m.Wait(context.Background(), first.ID, 0)
	if !found || !changed {
		t.Fatalf("Wait on first ticket: found=%v changed=%v", found, changed)
	}
	if resolved.Status != sdk.TicketMatched || *resolved.GameID != "game-1" {
		t.Fatalf("first ticket = %+v", resolved)
	}
}

func TestMatchmakerKindsDoNotMix(t *testing.T) {
	mock := quartz.NewMock(t)
	m := testMatchmaker(t, mock, false)

	m.Join(sdk.GameChess, "agent-a", nil)
	ticket, err := m.Join(sdk.GamePoker, "agent-b", nil)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if ticket.Status != sdk.TicketWaiting {
		t.Fatalf("a poker join must not pair with a chess ticket, got %s", ticket.Status)
	}
}

func TestMatchmakerRequeuesPartnerOnSessionFailure(t *testing.T) {
	mock := quartz.NewMock(t)
	m := testMatchmaker(t, mock, true)

	first, _ := m.Join(sdk.GameChess, "agent-a", nil)
	if _, err := m.Join(sdk.GameChess, "agent-b", nil); err == nil {
		t.Fatal("expected the join to fail")
	}

	// The partner is still waiting, not lost.
	snapshot, _, found := m.Wait(context.Background(), first.ID, 0)
	if !found {
		t.Fatal("first ticket should still exist")
	}
	if snapshot.Status == sdk.TicketMatched {
		t.Fatal("failed pairing must not mark the partner matched")
	}
}

func TestMatchmakerLeaveCancelsWaitingTicket(t *testing.T) {
	mock := quartz.NewMock(t)
	m := testMatchmaker(t, mock, false)

	ticket, _ := m.Join(sdk.GameChess, "agent-a", nil)
	m.Leave(ticket.ID)

	resolved, changed, found := m.Wait(context.Background(), ticket.ID, 0)
	if !found || !changed {
		t.Fatalf("Wait: found=%v changed=%v", found, changed)
	}
	if resolved.Status != sdk.TicketCancelled {
		t.Fatalf("status = %s, want cancelled", resolved.Status)
	}

	// Leaving again is a no-op, and the slot is really gone.
	m.Leave(ticket.ID)
	if _, err := m.Join(sdk.GameChess, "agent-b", nil); err != nil {
		t.Fatalf("Join after cancel: %v", err)
	}
	second, err := m.Join(sdk.GameChess, "agent-c", nil)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if second.Status != sdk.TicketMatched {
		t.Fatal("cancelled ticket must not be pairable; b and c should match each other")
	}
}

func TestMatchmakerExpiryReportedWithoutSweep(t *testing.T) {
	mock := quartz.NewMock(t)
	m := testMatchmaker(t, mock, false)

	ticket, _ := m.Join(sdk.GameChess, "agent-a", nil)
	mock.Advance(3 * time.Minute)

	// Hold 0: the poll answers immediately, and the lapsed deadline comes
	// back as a changed snapshot rather than "no change".
	resolved, changed, found := m.Wait(context.Background(), ticket.ID, 0)
	if !found || !changed {
		t.Fatalf("Wait: found=%v changed=%v", found, changed)
	}
	if resolved.TimeRemainingSeconds > 0 {
		t.Fatalf("time remaining = %f, want <= 0", resolved.TimeRemainingSeconds)
	}
	if !resolved.Expired() {
		t.Fatal("ticket should report as expired")
	}
}

func TestMatchmakerSweepCancelsExpiredTickets(t *testing.T) {
	mock := quartz.NewMock(t)
	m := testMatchmaker(t, mock, false)

	ticket, _ := m.Join(sdk.GameChess, "agent-a", nil)
	mock.Advance(3 * time.Minute)
	m.Sweep()

	resolved, _, found := m.Wait(context.Background(), ticket.ID, 0)
	if !found {
		t.Fatal("ticket should still be queryable after the sweep")
	}
	if resolved.Status != sdk.TicketCancelled {
		t.Fatalf("status = %s, want cancelled", resolved.Status)
	}
}
