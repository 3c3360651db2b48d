package workers

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	application "truevote/contexts/election-ledger/campaign-ledger/application"
	"truevote/contexts/election-ledger/campaign-ledger/domain/ledger"
	"truevote/contexts/election-ledger/campaign-ledger/ports"
	contractsv1 "truevote/contracts/gen/events/v1"
)

const tallyConsumerGroup = "campaign-ledger-tally-projector"

// TallyProjector keeps a live per-campaign tally built from bus events. Every
// event carries the post-increment count, so a count only ever moves up: stale
// and duplicated events are ignored, and a gap triggers a resync from the
// registry snapshot.
type TallyProjector struct {
	Subscriber ports.EventSubscriber
	Dedup      ports.EventDedupStore
	Ledger     *ledger.Registry
	Clock      ports.Clock
	DedupTTL   time.Duration
	Logger     *slog.Logger

	mu      sync.RWMutex
	tallies map[uint64]*ports.LiveTally
}

func NewTallyProjector(
	subscriber ports.EventSubscriber,
	dedup ports.EventDedupStore,
	registry *ledger.Registry,
	clock ports.Clock,
	logger *slog.Logger,
) *TallyProjector {
	return &TallyProjector{
		Subscriber: subscriber,
		Dedup:      dedup,
		Ledger:     registry,
		Clock:      clock,
		DedupTTL:   24 * time.Hour,
		Logger:     logger,
		tallies:    make(map[uint64]*ports.LiveTally),
	}
}

func (p *TallyProjector) Start(ctx context.Context) error {
	if p.Subscriber == nil {
		return errors.New("tally projector subscriber is required")
	}
	for _, topic := range []string{
		contractsv1.EventTypeCampaignCreated,
		contractsv1.EventTypeCandidateAdded,
		contractsv1.EventTypeVoteCast,
	} {
		if err := p.Subscriber.Subscribe(ctx, topic, tallyConsumerGroup, p.Handle); err != nil {
			return err
		}
	}
	application.ResolveLogger(p.Logger).Info("tally projector subscribed",
		"event", "ledger_tally_projector_started",
		"module", moduleName,
		"layer", "worker",
	)
	return nil
}

// Handle applies one envelope. Unknown event types are ignored.
func (p *TallyProjector) Handle(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(p.Logger)
	if p.Dedup != nil && event.EventID != "" {
		duplicate, err := p.Dedup.ReserveEvent(ctx, event.EventID, hashPayload(event.Data), p.now().Add(p.dedupTTL()))
		if err != nil {
			return err
		}
		if duplicate {
			logger.Debug("tally projector skipped duplicate event",
				"event", "ledger_tally_duplicate_skipped",
				"module", moduleName,
				"layer", "worker",
				"event_id", event.EventID,
			)
			return nil
		}
	}

	switch event.EventType {
	case contractsv1.EventTypeVoteCast:
		var payload contractsv1.VoteCast
		if err := event.DecodeData(&payload); err != nil {
			return err
		}
		p.applyVote(payload)
	case contractsv1.EventTypeCampaignCreated, contractsv1.EventTypeCandidateAdded:
		campaignID, err := strconv.ParseUint(event.PartitionKey, 10, 64)
		if err != nil {
			return err
		}
		return p.Resync(campaignID)
	}
	return nil
}

func (p *TallyProjector) applyVote(vote contractsv1.VoteCast) {
	p.mu.Lock()
	tally, ok := p.tallies[vote.CampaignID]
	if ok && vote.CandidateIndex >= 0 && vote.CandidateIndex < len(tally.Counts) {
		current := tally.Counts[vote.CandidateIndex]
		switch {
		case vote.NewVoteCount <= current:
			p.mu.Unlock()
			return
		case vote.NewVoteCount == current+1 && vote.TotalVotes == tally.TotalVotes+1:
			tally.Counts[vote.CandidateIndex] = vote.NewVoteCount
			tally.TotalVotes = vote.TotalVotes
			tally.UpdatedAt = p.now()
			p.mu.Unlock()
			return
		}
	}
	p.mu.Unlock()

	if err := p.Resync(vote.CampaignID); err != nil {
		application.ResolveLogger(p.Logger).Warn("tally projector resync failed",
			"event", "ledger_tally_resync_failed",
			"module", moduleName,
			"layer", "worker",
			"campaign_id", vote.CampaignID,
			"error", err.Error(),
		)
	}
}

// Resync reloads a campaign's counts from the registry, never lowering a
// count the projection already holds.
func (p *TallyProjector) Resync(campaignID uint64) error {
	if p.Ledger == nil {
		return errors.New("tally projector ledger is required")
	}
	campaign, err := p.Ledger.Get(campaignID)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tallies == nil {
		p.tallies = make(map[uint64]*ports.LiveTally)
	}
	tally, ok := p.tallies[campaignID]
	if !ok {
		tally = &ports.LiveTally{CampaignID: campaignID}
		p.tallies[campaignID] = tally
	}
	counts := make([]uint64, len(campaign.Candidates))
	for i, candidate := range campaign.Candidates {
		counts[i] = candidate.VoteCount
		if i < len(tally.Counts) && tally.Counts[i] > counts[i] {
			counts[i] = tally.Counts[i]
		}
	}
	tally.Counts = counts
	tally.TotalVotes = max(tally.TotalVotes, campaign.TotalVotes)
	tally.UpdatedAt = p.now()
	return nil
}

func (p *TallyProjector) Tally(campaignID uint64) (ports.LiveTally, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	tally, ok := p.tallies[campaignID]
	if !ok {
		return ports.LiveTally{}, false
	}
	copied := *tally
	copied.Counts = slices.Clone(tally.Counts)
	return copied, true
}

func (p *TallyProjector) dedupTTL() time.Duration {
	if p.DedupTTL <= 0 {
		return 24 * time.Hour
	}
	return p.DedupTTL
}

func (p *TallyProjector) now() time.Time {
	if p.Clock == nil {
		return time.Now().UTC()
	}
	return p.Clock.Now().UTC()
}

var _ ports.TallyReader = (*TallyProjector)(nil)
