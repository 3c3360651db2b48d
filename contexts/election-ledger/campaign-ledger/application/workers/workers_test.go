package workers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"truevote/contexts/election-ledger/campaign-ledger/adapters/memory"
	"truevote/contexts/election-ledger/campaign-ledger/domain/admission"
	"truevote/contexts/election-ledger/campaign-ledger/domain/entities"
	"truevote/contexts/election-ledger/campaign-ledger/domain/ledger"
	"truevote/contexts/election-ledger/campaign-ledger/ports"
	contractsv1 "truevote/contracts/gen/events/v1"
)

var workerNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type stubSubscriber struct {
	handlers map[string]func(context.Context, ports.EventEnvelope) error
}

func (s *stubSubscriber) Subscribe(
	_ context.Context,
	topic string,
	_ string,
	handler func(context.Context, ports.EventEnvelope) error,
) error {
	if s.handlers == nil {
		s.handlers = map[string]func(context.Context, ports.EventEnvelope) error{}
	}
	s.handlers[topic] = handler
	return nil
}

type stubPublisher struct {
	topics []string
	failAt int
}

func (p *stubPublisher) Publish(_ context.Context, topic string, _ ports.EventEnvelope) error {
	if p.failAt > 0 && len(p.topics)+1 == p.failAt {
		return errors.New("broker unavailable")
	}
	p.topics = append(p.topics, topic)
	return nil
}

func voteEnvelope(t *testing.T, eventID string, vote contractsv1.VoteCast) ports.EventEnvelope {
	t.Helper()
	data, err := json.Marshal(vote)
	if err != nil {
		t.Fatalf("marshal vote: %v", err)
	}
	return ports.EventEnvelope{
		EventID:      eventID,
		EventType:    contractsv1.EventTypeVoteCast,
		PartitionKey: "0",
		Data:         data,
	}
}

func newProjectorFixture(t *testing.T) (*TallyProjector, *ledger.Registry, *stubSubscriber) {
	t.Helper()
	registry := ledger.NewRegistry()
	_, err := registry.Create(entities.CampaignSpec{
		Owner:           "owner",
		CandidateNames:  []string{"A", "B"},
		DurationMinutes: 10,
		StartTime:       workerNow,
		IsPublic:        true,
	}, "handle-0", workerNow, nil)
	if err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	store := memory.NewStore()
	store.SetNow(workerNow)
	sub := &stubSubscriber{}
	projector := NewTallyProjector(sub, store, registry, store, nil)
	if err := projector.Start(context.Background()); err != nil {
		t.Fatalf("start projector: %v", err)
	}
	return projector, registry, sub
}

func TestTallyProjectorSubscribesToLedgerTopics(t *testing.T) {
	_, _, sub := newProjectorFixture(t)
	for _, topic := range []string{contractsv1.EventTypeCampaignCreated, contractsv1.EventTypeCandidateAdded, contractsv1.EventTypeVoteCast} {
		if sub.handlers[topic] == nil {
			t.Fatalf("expected handler for %s", topic)
		}
	}
}

func TestTallyProjectorAppliesVotesMonotonically(t *testing.T) {
	projector, registry, sub := newProjectorFixture(t)
	handler := sub.handlers[contractsv1.EventTypeVoteCast]
	record, _ := registry.Record(0)

	if _, err := record.CastVote(admission.Request{Voter: "v1", CandidateIndex: 1, Now: workerNow}, nil); err != nil {
		t.Fatalf("cast vote: %v", err)
	}
	if err := handler(context.Background(), voteEnvelope(t, "evt-1", contractsv1.VoteCast{CampaignID: 0, CandidateIndex: 1, NewVoteCount: 1, TotalVotes: 1})); err != nil {
		t.Fatalf("handle vote: %v", err)
	}
	// Redelivery is skipped by the dedup store.
	if err := handler(context.Background(), voteEnvelope(t, "evt-1", contractsv1.VoteCast{CampaignID: 0, CandidateIndex: 1, NewVoteCount: 1, TotalVotes: 1})); err != nil {
		t.Fatalf("handle duplicate: %v", err)
	}
	// A stale event under a new id never lowers the count.
	if err := handler(context.Background(), voteEnvelope(t, "evt-0", contractsv1.VoteCast{CampaignID: 0, CandidateIndex: 1, NewVoteCount: 1, TotalVotes: 1})); err != nil {
		t.Fatalf("handle stale: %v", err)
	}

	tally, ok := projector.Tally(0)
	if !ok {
		t.Fatal("expected tally for campaign 0")
	}
	if tally.Counts[1] != 1 || tally.TotalVotes != 1 {
		t.Fatalf("unexpected tally %+v", tally)
	}
}

func TestTallyProjectorResyncsOnGap(t *testing.T) {
	projector, registry, sub := newProjectorFixture(t)
	record, _ := registry.Record(0)
	for _, voter := range []entities.Identity{"v1", "v2", "v3"} {
		if _, err := record.CastVote(admission.Request{Voter: voter, CandidateIndex: 0, Now: workerNow}, nil); err != nil {
			t.Fatalf("cast vote: %v", err)
		}
	}

	// Only the third event arrives; the projector must catch up from the registry.
	if err := sub.handlers[contractsv1.EventTypeVoteCast](context.Background(), voteEnvelope(t, "evt-3", contractsv1.VoteCast{CampaignID: 0, CandidateIndex: 0, NewVoteCount: 3, TotalVotes: 3})); err != nil {
		t.Fatalf("handle vote: %v", err)
	}
	tally, ok := projector.Tally(0)
	if !ok || tally.Counts[0] != 3 || tally.TotalVotes != 3 {
		t.Fatalf("expected resynced tally of 3, got %+v (ok=%v)", tally, ok)
	}

	tally.Counts[0] = 99
	again, _ := projector.Tally(0)
	if again.Counts[0] != 3 {
		t.Fatal("Tally must return a copy")
	}
}

func TestTallyProjectorResyncsOnCandidateAdded(t *testing.T) {
	projector, registry, sub := newProjectorFixture(t)
	record, _ := registry.Record(0)
	if _, err := record.AddCandidate("owner", "C", nil); err != nil {
		t.Fatalf("add candidate: %v", err)
	}
	err := sub.handlers[contractsv1.EventTypeCandidateAdded](context.Background(), ports.EventEnvelope{
		EventID:      "evt-c",
		EventType:    contractsv1.EventTypeCandidateAdded,
		PartitionKey: "0",
		Data:         json.RawMessage(`{"campaign_id":0,"candidate_index":2,"name":"C"}`),
	})
	if err != nil {
		t.Fatalf("handle candidate added: %v", err)
	}
	tally, ok := projector.Tally(0)
	if !ok || len(tally.Counts) != 3 {
		t.Fatalf("expected three counts after resync, got %+v", tally)
	}
}

func TestOutboxRelayPublishesAndMarks(t *testing.T) {
	store := memory.NewStore()
	store.SetNow(workerNow)
	ctx := context.Background()
	campaign := entities.Campaign{ID: 0, Handle: "h", Owner: "o", Candidates: []entities.Candidate{{Name: "A"}, {Name: "B"}}}
	if err := store.AppendCampaign(ctx, campaign, ports.EventEnvelope{EventID: "evt-1", EventType: contractsv1.EventTypeCampaignCreated}); err != nil {
		t.Fatalf("append campaign: %v", err)
	}
	if err := store.AppendBallot(ctx, entities.Ballot{CampaignID: 0, Voter: "v1"}, ports.EventEnvelope{EventID: "evt-2", EventType: contractsv1.EventTypeVoteCast}); err != nil {
		t.Fatalf("append ballot: %v", err)
	}

	publisher := &stubPublisher{failAt: 2}
	relay := OutboxRelay{Outbox: store, Publisher: publisher, Clock: store, BatchSize: 10}
	if err := relay.RunOnce(ctx); err == nil {
		t.Fatal("expected relay to stop at the failed publish")
	}
	pending, _ := store.ListPendingOutbox(ctx, 10)
	if len(pending) != 1 || pending[0].OutboxID != "evt-2" {
		t.Fatalf("expected evt-2 to stay pending, got %+v", pending)
	}

	publisher.failAt = 0
	if err := relay.RunOnce(ctx); err != nil {
		t.Fatalf("relay retry: %v", err)
	}
	pending, _ = store.ListPendingOutbox(ctx, 10)
	if len(pending) != 0 {
		t.Fatalf("expected empty outbox, got %d rows", len(pending))
	}
	if len(publisher.topics) != 2 || publisher.topics[0] != contractsv1.EventTypeCampaignCreated || publisher.topics[1] != contractsv1.EventTypeVoteCast {
		t.Fatalf("unexpected publish order %v", publisher.topics)
	}
}
