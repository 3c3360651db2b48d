package ledger

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"truevote/contexts/election-ledger/campaign-ledger/domain/admission"
	"truevote/contexts/election-ledger/campaign-ledger/domain/entities"
	domainerrors "truevote/contexts/election-ledger/campaign-ledger/domain/errors"
)

// BallotCommit persists an admitted ballot before it becomes visible. It runs
// under the record lock; a non-nil error aborts the vote with no mutation.
type BallotCommit func(entities.Ballot) error

// CandidateCommit persists an appended candidate before it becomes visible.
type CandidateCommit func(campaignID uint64, index int, name string) error

// Record is one election. Metadata, window, visibility and allow-list are
// fixed at construction and read without locking; candidates, the voter set
// and the total are guarded by mu.
type Record struct {
	id          uint64
	handle      string
	owner       entities.Identity
	name        string
	description string
	displayDate string
	window      entities.Window
	isPublic    bool
	allowList   map[entities.Identity]struct{}
	createdAt   time.Time

	mu         sync.RWMutex
	candidates []entities.Candidate
	hasVoted   map[entities.Identity]struct{}
	totalVotes uint64
}

func newRecord(id uint64, handle string, spec entities.CampaignSpec, names []string, allowList []entities.Identity, createdAt time.Time) *Record {
	candidates := make([]entities.Candidate, 0, len(names))
	for _, name := range names {
		candidates = append(candidates, entities.Candidate{Name: name})
	}
	allowed := make(map[entities.Identity]struct{}, len(allowList))
	for _, identity := range allowList {
		allowed[identity] = struct{}{}
	}
	return &Record{
		id:          id,
		handle:      handle,
		owner:       spec.Owner.Normalize(),
		name:        strings.TrimSpace(spec.Name),
		description: strings.TrimSpace(spec.Description),
		displayDate: strings.TrimSpace(spec.DisplayDate),
		window: entities.Window{
			StartTime:       spec.StartTime.UTC(),
			DurationMinutes: spec.DurationMinutes,
		},
		isPublic:   spec.IsPublic,
		allowList:  allowed,
		createdAt:  createdAt.UTC(),
		candidates: candidates,
		hasVoted:   make(map[entities.Identity]struct{}),
	}
}

func (r *Record) ID() uint64 {
	return r.id
}

func (r *Record) Handle() string {
	return r.handle
}

func (r *Record) Owner() entities.Identity {
	return r.owner
}

func (r *Record) IsOwner(identity entities.Identity) bool {
	identity = identity.Normalize()
	return !identity.IsZero() && identity == r.owner
}

func (r *Record) Window() entities.Window {
	return r.window
}

func (r *Record) IsPublic() bool {
	return r.isPublic
}

func (r *Record) StatusAt(now time.Time) entities.Status {
	return r.window.StatusAt(now)
}

func (r *Record) RemainingSeconds(now time.Time) uint64 {
	return r.window.RemainingSeconds(now)
}

func (r *Record) IsEligibleVoter(voter entities.Identity) bool {
	if r.isPublic {
		return true
	}
	_, ok := r.allowList[voter.Normalize()]
	return ok
}

func (r *Record) HasVoted(voter entities.Identity) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.hasVoted[voter.Normalize()]
	return ok
}

func (r *Record) CandidateCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.candidates)
}

func (r *Record) Candidate(index int) (entities.Candidate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if index < 0 || index >= len(r.candidates) {
		return entities.Candidate{}, domainerrors.ErrOutOfRange
	}
	return r.candidates[index], nil
}

func (r *Record) TotalVotes() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.totalVotes
}

// Snapshot copies the record under a read lock, so tallies and the total are
// always taken from the same instant.
func (r *Record) Snapshot() entities.Campaign {
	r.mu.RLock()
	defer r.mu.RUnlock()

	allowList := make([]entities.Identity, 0, len(r.allowList))
	for identity := range r.allowList {
		allowList = append(allowList, identity)
	}
	sortIdentities(allowList)

	return entities.Campaign{
		ID:          r.id,
		Handle:      r.handle,
		Owner:       r.owner,
		Name:        r.name,
		Description: r.description,
		DisplayDate: r.displayDate,
		Window:      r.window,
		IsPublic:    r.isPublic,
		AllowList:   allowList,
		Candidates:  append([]entities.Candidate(nil), r.candidates...),
		TotalVotes:  r.totalVotes,
		CreatedAt:   r.createdAt,
	}
}

// Precheck evaluates the admission gate without voting. The answer can be
// stale by the time a real vote arrives; CastVote re-runs the gate.
func (r *Record) Precheck(req admission.Request) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return admission.Check(lockedRecord{r: r}, req)
}

// AddCandidate appends a candidate with a zero count. Only the owner may call
// it, in any state.
func (r *Record) AddCandidate(caller entities.Identity, name string, commit CandidateCommit) (int, error) {
	caller = caller.Normalize()
	if caller.IsZero() {
		return 0, domainerrors.ErrUnauthenticated
	}
	if caller != r.owner {
		return 0, domainerrors.ErrForbidden
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, domainerrors.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	index := len(r.candidates)
	if commit != nil {
		if err := commit(r.id, index, name); err != nil {
			return 0, fmt.Errorf("commit candidate: %w", err)
		}
	}
	r.candidates = append(r.candidates, entities.Candidate{Name: name})
	return index, nil
}

// CastVote runs the admission gate and applies the vote as one step under the
// write lock. Readers observe either none or all of: voter marked, candidate
// incremented, total incremented.
func (r *Record) CastVote(req admission.Request, commit BallotCommit) (entities.Ballot, error) {
	voter := req.Voter.Normalize()
	req.Voter = voter

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := admission.Check(lockedRecord{r: r}, req); err != nil {
		return entities.Ballot{}, err
	}

	ballot := entities.Ballot{
		CampaignID:     r.id,
		Voter:          voter,
		CandidateIndex: req.CandidateIndex,
		NewVoteCount:   r.candidates[req.CandidateIndex].VoteCount + 1,
		TotalVotes:     r.totalVotes + 1,
		CastAt:         req.Now.UTC(),
	}
	if commit != nil {
		if err := commit(ballot); err != nil {
			return entities.Ballot{}, fmt.Errorf("commit ballot: %w", err)
		}
	}

	r.hasVoted[voter] = struct{}{}
	r.candidates[req.CandidateIndex].VoteCount = ballot.NewVoteCount
	r.totalVotes = ballot.TotalVotes
	return ballot, nil
}

// replay applies a journaled ballot during restore. It skips the time window
// because the ballot was admitted when it was cast.
func (r *Record) replay(ballot entities.Ballot) error {
	voter := ballot.Voter.Normalize()
	if voter.IsZero() {
		return fmt.Errorf("campaign %d: ballot without voter: %w", r.id, domainerrors.ErrUnauthenticated)
	}
	if _, ok := r.hasVoted[voter]; ok {
		return fmt.Errorf("campaign %d voter %s: %w", r.id, voter, domainerrors.ErrAlreadyVoted)
	}
	if ballot.CandidateIndex < 0 || ballot.CandidateIndex >= len(r.candidates) {
		return fmt.Errorf("campaign %d index %d: %w", r.id, ballot.CandidateIndex, domainerrors.ErrInvalidCandidate)
	}
	r.hasVoted[voter] = struct{}{}
	r.candidates[ballot.CandidateIndex].VoteCount++
	r.totalVotes++
	return nil
}

// lockedRecord exposes the gate view of a record whose lock is already held.
type lockedRecord struct {
	r *Record
}

func (l lockedRecord) StatusAt(now time.Time) entities.Status {
	return l.r.window.StatusAt(now)
}

func (l lockedRecord) IsEligibleVoter(voter entities.Identity) bool {
	return l.r.IsEligibleVoter(voter)
}

func (l lockedRecord) HasVoted(voter entities.Identity) bool {
	_, ok := l.r.hasVoted[voter]
	return ok
}

func (l lockedRecord) CandidateCount() int {
	return len(l.r.candidates)
}

var _ admission.Target = (*Record)(nil)
var _ admission.Target = lockedRecord{}
