package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"truevote/contexts/election-ledger/campaign-ledger/domain/entities"
	domainerrors "truevote/contexts/election-ledger/campaign-ledger/domain/errors"
	"truevote/contexts/election-ledger/campaign-ledger/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	sequence  int64
	published bool
}

type dedupRecord struct {
	payloadHash string
	expiresAt   time.Time
}

// Store is the in-process journal, outbox and dedup store. It doubles as the
// module clock and id generator so tests can pin time.
type Store struct {
	mu sync.RWMutex

	states     []entities.LedgerState
	voters     map[uint64]map[entities.Identity]struct{}
	outbox     map[string]outboxRecord
	sequence   int64
	eventDedup map[string]dedupRecord

	now       func() time.Time
	appendErr error
}

func NewStore() *Store {
	return &Store{
		states:     make([]entities.LedgerState, 0),
		voters:     make(map[uint64]map[entities.Identity]struct{}),
		outbox:     make(map[string]outboxRecord),
		eventDedup: make(map[string]dedupRecord),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetNow pins the store clock.
func (s *Store) SetNow(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = func() time.Time { return now.UTC() }
}

// FailAppends makes every journal append return err until called with nil.
func (s *Store) FailAppends(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendErr = err
}

func (s *Store) AppendCampaign(_ context.Context, campaign entities.Campaign, event ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	if campaign.ID != uint64(len(s.states)) {
		return fmt.Errorf("journal expects campaign %d, got %d: %w", len(s.states), campaign.ID, domainerrors.ErrInvalidInput)
	}
	if err := s.appendOutboxLocked(event); err != nil {
		return err
	}
	campaign.Candidates = append([]entities.Candidate(nil), campaign.Candidates...)
	campaign.AllowList = append([]entities.Identity(nil), campaign.AllowList...)
	s.states = append(s.states, entities.LedgerState{Campaign: campaign})
	s.voters[campaign.ID] = make(map[entities.Identity]struct{})
	return nil
}

func (s *Store) AppendCandidate(_ context.Context, campaignID uint64, index int, name string, event ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	if campaignID >= uint64(len(s.states)) {
		return domainerrors.ErrNotFound
	}
	state := &s.states[campaignID]
	if index != len(state.Campaign.Candidates) {
		return fmt.Errorf("journal expects candidate %d, got %d: %w", len(state.Campaign.Candidates), index, domainerrors.ErrInvalidInput)
	}
	if err := s.appendOutboxLocked(event); err != nil {
		return err
	}
	state.Campaign.Candidates = append(state.Campaign.Candidates, entities.Candidate{Name: name})
	return nil
}

func (s *Store) AppendBallot(_ context.Context, ballot entities.Ballot, event ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	if ballot.CampaignID >= uint64(len(s.states)) {
		return domainerrors.ErrNotFound
	}
	voters := s.voters[ballot.CampaignID]
	if _, ok := voters[ballot.Voter]; ok {
		return domainerrors.ErrAlreadyVoted
	}
	if err := s.appendOutboxLocked(event); err != nil {
		return err
	}
	voters[ballot.Voter] = struct{}{}
	state := &s.states[ballot.CampaignID]
	state.Ballots = append(state.Ballots, ballot)
	return nil
}

func (s *Store) LoadLedger(_ context.Context) ([]entities.LedgerState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.LedgerState, 0, len(s.states))
	for _, state := range s.states {
		campaign := state.Campaign
		campaign.Candidates = append([]entities.Candidate(nil), campaign.Candidates...)
		campaign.AllowList = append([]entities.Identity(nil), campaign.AllowList...)
		items = append(items, entities.LedgerState{
			Campaign: campaign,
			Ballots:  append([]entities.Ballot(nil), state.Ballots...),
		})
	}
	return items, nil
}

func (s *Store) appendOutboxLocked(envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if existing, ok := s.outbox[outboxID]; ok {
		if !bytes.Equal(existing.message.Payload, payload) {
			return domainerrors.ErrEventConflict
		}
		return nil
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	s.sequence++
	s.outbox[outboxID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(envelope.EventType),
			PartitionKey: strings.TrimSpace(envelope.PartitionKey),
			Payload:      payload,
			CreatedAt:    createdAt,
		},
		sequence: s.sequence,
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	rows := make([]outboxRecord, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].sequence < rows[j].sequence
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.message)
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.TrimSpace(outboxID)
	row, ok := s.outbox[key]
	if !ok {
		return domainerrors.ErrOutboxNotFound
	}
	row.published = true
	s.outbox[key] = row
	return nil
}

func (s *Store) ReserveEvent(
	_ context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(eventID)
	existing, ok := s.eventDedup[key]
	if ok {
		if !existing.expiresAt.IsZero() && s.now().After(existing.expiresAt.UTC()) {
			delete(s.eventDedup, key)
		} else {
			if existing.payloadHash != strings.TrimSpace(payloadHash) {
				return false, domainerrors.ErrEventConflict
			}
			return true, nil
		}
	}

	s.eventDedup[key] = dedupRecord{
		payloadHash: strings.TrimSpace(payloadHash),
		expiresAt:   expiresAt.UTC(),
	}
	return false, nil
}

func (s *Store) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

var (
	_ ports.LedgerJournal    = (*Store)(nil)
	_ ports.OutboxRepository = (*Store)(nil)
	_ ports.EventDedupStore  = (*Store)(nil)
	_ ports.Clock            = (*Store)(nil)
	_ ports.IDGenerator      = (*Store)(nil)
)
