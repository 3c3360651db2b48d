package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"truevote/contexts/election-ledger/campaign-ledger/domain/entities"
	domainerrors "truevote/contexts/election-ledger/campaign-ledger/domain/errors"
	"truevote/contexts/election-ledger/campaign-ledger/ports"
)

var storeNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testCampaign(id uint64) entities.Campaign {
	return entities.Campaign{
		ID:         id,
		Handle:     "handle",
		Owner:      "owner",
		Window:     entities.Window{StartTime: storeNow, DurationMinutes: 10},
		Candidates: []entities.Candidate{{Name: "A"}, {Name: "B"}},
		IsPublic:   true,
	}
}

func TestOutboxIsOrderedAndMarkedOnce(t *testing.T) {
	store := NewStore()
	store.SetNow(storeNow)
	ctx := context.Background()

	if err := store.AppendCampaign(ctx, testCampaign(0), ports.EventEnvelope{EventID: "evt-1", EventType: "campaign.created"}); err != nil {
		t.Fatalf("append campaign failed: %v", err)
	}
	if err := store.AppendCandidate(ctx, 0, 2, "C", ports.EventEnvelope{EventID: "evt-2", EventType: "candidate.added"}); err != nil {
		t.Fatalf("append candidate failed: %v", err)
	}
	if err := store.AppendBallot(ctx, entities.Ballot{CampaignID: 0, Voter: "v1", CandidateIndex: 2}, ports.EventEnvelope{EventID: "evt-3", EventType: "vote.cast"}); err != nil {
		t.Fatalf("append ballot failed: %v", err)
	}

	pending, err := store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 3 || pending[0].OutboxID != "evt-1" || pending[2].OutboxID != "evt-3" {
		t.Fatalf("unexpected pending rows %+v", pending)
	}

	if err := store.MarkOutboxPublished(ctx, "evt-1", storeNow); err != nil {
		t.Fatalf("mark published failed: %v", err)
	}
	if err := store.MarkOutboxPublished(ctx, "missing", storeNow); !errors.Is(err, domainerrors.ErrOutboxNotFound) {
		t.Fatalf("expected outbox not found, got %v", err)
	}
	pending, _ = store.ListPendingOutbox(ctx, 1)
	if len(pending) != 1 || pending[0].OutboxID != "evt-2" {
		t.Fatalf("expected evt-2 next, got %+v", pending)
	}
}

func TestJournalRejectsOutOfOrderAndDuplicateWrites(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	if err := store.AppendCampaign(ctx, testCampaign(1), ports.EventEnvelope{EventID: "evt-x"}); !errors.Is(err, domainerrors.ErrInvalidInput) {
		t.Fatalf("expected gap rejection, got %v", err)
	}
	if err := store.AppendCampaign(ctx, testCampaign(0), ports.EventEnvelope{EventID: "evt-1"}); err != nil {
		t.Fatalf("append campaign failed: %v", err)
	}
	ballot := entities.Ballot{CampaignID: 0, Voter: "v1", CandidateIndex: 0}
	if err := store.AppendBallot(ctx, ballot, ports.EventEnvelope{EventID: "evt-2"}); err != nil {
		t.Fatalf("append ballot failed: %v", err)
	}
	if err := store.AppendBallot(ctx, ballot, ports.EventEnvelope{EventID: "evt-3"}); !errors.Is(err, domainerrors.ErrAlreadyVoted) {
		t.Fatalf("expected already voted, got %v", err)
	}
	if err := store.AppendCandidate(ctx, 0, 5, "Z", ports.EventEnvelope{EventID: "evt-4"}); !errors.Is(err, domainerrors.ErrInvalidInput) {
		t.Fatalf("expected candidate gap rejection, got %v", err)
	}

	states, err := store.LoadLedger(ctx)
	if err != nil {
		t.Fatalf("load ledger failed: %v", err)
	}
	if len(states) != 1 || len(states[0].Ballots) != 1 {
		t.Fatalf("unexpected states %+v", states)
	}
}

func TestFailAppendsBlocksEveryWrite(t *testing.T) {
	store := NewStore()
	boom := errors.New("disk full")
	store.FailAppends(boom)

	if err := store.AppendCampaign(context.Background(), testCampaign(0), ports.EventEnvelope{EventID: "evt-1"}); !errors.Is(err, boom) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	pending, _ := store.ListPendingOutbox(context.Background(), 10)
	if len(pending) != 0 {
		t.Fatalf("failed append must not leave outbox rows, got %d", len(pending))
	}
}

func TestReserveEventDedupAndExpiry(t *testing.T) {
	store := NewStore()
	store.SetNow(storeNow)
	ctx := context.Background()

	duplicate, err := store.ReserveEvent(ctx, "evt-1", "hash-a", storeNow.Add(time.Hour))
	if err != nil || duplicate {
		t.Fatalf("expected first reservation, got duplicate=%v err=%v", duplicate, err)
	}
	duplicate, err = store.ReserveEvent(ctx, "evt-1", "hash-a", storeNow.Add(time.Hour))
	if err != nil || !duplicate {
		t.Fatalf("expected duplicate, got duplicate=%v err=%v", duplicate, err)
	}
	if _, err := store.ReserveEvent(ctx, "evt-1", "hash-b", storeNow.Add(time.Hour)); !errors.Is(err, domainerrors.ErrEventConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	store.SetNow(storeNow.Add(2 * time.Hour))
	duplicate, err = store.ReserveEvent(ctx, "evt-1", "hash-b", storeNow.Add(3*time.Hour))
	if err != nil || duplicate {
		t.Fatalf("expected expired reservation to be replaced, got duplicate=%v err=%v", duplicate, err)
	}
}
