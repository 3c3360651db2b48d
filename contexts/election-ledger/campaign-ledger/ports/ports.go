package ports

import (
	"context"
	"time"

	"truevote/contexts/election-ledger/campaign-ledger/domain/entities"
	contractsv1 "truevote/contracts/gen/events/v1"
)

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type EventEnvelope = contractsv1.Envelope

// LedgerJournal durably records every accepted mutation together with its
// outbox envelope. Appends are called while the affected record is locked and
// must not call back into the ledger.
type LedgerJournal interface {
	AppendCampaign(ctx context.Context, campaign entities.Campaign, event EventEnvelope) error
	AppendCandidate(ctx context.Context, campaignID uint64, index int, name string, event EventEnvelope) error
	AppendBallot(ctx context.Context, ballot entities.Ballot, event EventEnvelope) error
	LoadLedger(ctx context.Context) ([]entities.LedgerState, error)
}

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}

// EventStream hands out a channel of events on topic until ctx is done.
type EventStream interface {
	Open(ctx context.Context, topic string) (<-chan EventEnvelope, error)
}

type EventDedupStore interface {
	ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error)
}

// AdmissionVerifier validates the signed pre-admission grant issued by the
// external fraud and liveness pipeline for one voter and one campaign.
type AdmissionVerifier interface {
	Verify(ctx context.Context, grant string, campaignID uint64, voter entities.Identity) error
}

// LiveTally is the projected per-candidate count for one campaign as seen by
// event subscribers. It may trail the ledger but never runs ahead of it.
type LiveTally struct {
	CampaignID uint64
	Counts     []uint64
	TotalVotes uint64
	UpdatedAt  time.Time
}

type TallyReader interface {
	Tally(campaignID uint64) (LiveTally, bool)
}
