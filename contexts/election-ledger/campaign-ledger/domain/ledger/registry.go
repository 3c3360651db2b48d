package ledger

import (
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	"truevote/contexts/election-ledger/campaign-ledger/domain/entities"
	domainerrors "truevote/contexts/election-ledger/campaign-ledger/domain/errors"
)

const MinCandidates = 2

// CampaignCommit persists a new campaign before it is appended. It runs under
// the registry write lock, so ids reach the journal in creation order.
type CampaignCommit func(entities.Campaign) error

// Registry is the growth-only list of campaign records. Its lock covers only
// the record slice and the owner index; each record serializes its own votes.
type Registry struct {
	mu      sync.RWMutex
	records []*Record
	byOwner map[entities.Identity][]uint64
}

func NewRegistry() *Registry {
	return &Registry{
		byOwner: make(map[entities.Identity][]uint64),
	}
}

// Create validates spec and appends a record whose id is the current count.
func (g *Registry) Create(spec entities.CampaignSpec, handle string, now time.Time, commit CampaignCommit) (entities.Campaign, error) {
	spec.Owner = spec.Owner.Normalize()
	if spec.Owner.IsZero() {
		return entities.Campaign{}, domainerrors.ErrUnauthenticated
	}
	names, err := validateSpec(spec, now)
	if err != nil {
		return entities.Campaign{}, err
	}
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return entities.Campaign{}, fmt.Errorf("%w: handle is required", domainerrors.ErrInvalidInput)
	}
	allowList := normalizeAllowList(spec.AllowList)

	g.mu.Lock()
	defer g.mu.Unlock()

	id := uint64(len(g.records))
	record := newRecord(id, handle, spec, names, allowList, now)
	snapshot := record.Snapshot()
	if commit != nil {
		if err := commit(snapshot); err != nil {
			return entities.Campaign{}, fmt.Errorf("commit campaign: %w", err)
		}
	}
	g.records = append(g.records, record)
	g.byOwner[record.owner] = append(g.byOwner[record.owner], id)
	return snapshot, nil
}

// Record returns the live record for id.
func (g *Registry) Record(id uint64) (*Record, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if id >= uint64(len(g.records)) {
		return nil, domainerrors.ErrNotFound
	}
	return g.records[id], nil
}

func (g *Registry) Get(id uint64) (entities.Campaign, error) {
	record, err := g.Record(id)
	if err != nil {
		return entities.Campaign{}, err
	}
	return record.Snapshot(), nil
}

func (g *Registry) Count() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return uint64(len(g.records))
}

func (g *Registry) HandleOf(id uint64) (string, error) {
	record, err := g.Record(id)
	if err != nil {
		return "", err
	}
	return record.handle, nil
}

// Handles lists every record handle in creation order.
func (g *Registry) Handles() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	handles := make([]string, 0, len(g.records))
	for _, record := range g.records {
		handles = append(handles, record.handle)
	}
	return handles
}

func (g *Registry) OwnedBy(owner entities.Identity) []uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.byOwner[owner.Normalize()])
}

// EligibleFor yields, in creation order, the ids of campaigns voter may vote
// in. Nothing is cached: each range over the sequence rescans the registry,
// and records appended mid-iteration are picked up.
func (g *Registry) EligibleFor(voter entities.Identity) iter.Seq[uint64] {
	voter = voter.Normalize()
	return func(yield func(uint64) bool) {
		for id := uint64(0); ; id++ {
			record, err := g.Record(id)
			if err != nil {
				return
			}
			if !record.IsEligibleVoter(voter) {
				continue
			}
			if !yield(id) {
				return
			}
		}
	}
}

// Restore rebuilds an empty registry from journaled state. Tallies come from
// the ballots; counts stored on the campaign rows are ignored.
func (g *Registry) Restore(states []entities.LedgerState) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.records) > 0 {
		return domainerrors.ErrLedgerNotEmpty
	}

	records := make([]*Record, 0, len(states))
	byOwner := make(map[entities.Identity][]uint64)
	for i, state := range states {
		campaign := state.Campaign
		if campaign.ID != uint64(i) {
			return fmt.Errorf("restore: campaign %d found at position %d: %w", campaign.ID, i, domainerrors.ErrInvalidInput)
		}
		names := make([]string, 0, len(campaign.Candidates))
		for _, candidate := range campaign.Candidates {
			names = append(names, candidate.Name)
		}
		spec := entities.CampaignSpec{
			Owner:           campaign.Owner,
			DurationMinutes: campaign.Window.DurationMinutes,
			Name:            campaign.Name,
			Description:     campaign.Description,
			StartTime:       campaign.Window.StartTime,
			DisplayDate:     campaign.DisplayDate,
			IsPublic:        campaign.IsPublic,
		}
		record := newRecord(campaign.ID, campaign.Handle, spec, names, normalizeAllowList(campaign.AllowList), campaign.CreatedAt)
		for _, ballot := range state.Ballots {
			if err := record.replay(ballot); err != nil {
				return fmt.Errorf("restore: %w", err)
			}
		}
		records = append(records, record)
		byOwner[record.owner] = append(byOwner[record.owner], record.id)
	}

	g.records = records
	g.byOwner = byOwner
	return nil
}

func validateSpec(spec entities.CampaignSpec, now time.Time) ([]string, error) {
	if len(spec.CandidateNames) < MinCandidates {
		return nil, fmt.Errorf("%w: at least %d candidates are required", domainerrors.ErrInvalidInput, MinCandidates)
	}
	names := make([]string, 0, len(spec.CandidateNames))
	for i, name := range spec.CandidateNames {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("%w: candidate %d has no name", domainerrors.ErrInvalidInput, i)
		}
		names = append(names, name)
	}
	if spec.DurationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", domainerrors.ErrInvalidInput)
	}
	if spec.StartTime.IsZero() || spec.StartTime.Before(now) {
		return nil, fmt.Errorf("%w: start time is in the past", domainerrors.ErrInvalidInput)
	}
	return names, nil
}

func normalizeAllowList(items []entities.Identity) []entities.Identity {
	seen := make(map[entities.Identity]struct{}, len(items))
	out := make([]entities.Identity, 0, len(items))
	for _, item := range items {
		item = item.Normalize()
		if item.IsZero() {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

func sortIdentities(items []entities.Identity) {
	slices.Sort(items)
}
