// Package admission holds the ordered vote admission checks. The checks read
// a Target and never mutate it; callers that need the checks and the tally
// increment to be indivisible must run Check while holding the target's
// write lock.
package admission

import (
	"time"

	"truevote/contexts/election-ledger/campaign-ledger/domain/entities"
	domainerrors "truevote/contexts/election-ledger/campaign-ledger/domain/errors"
)

type Target interface {
	StatusAt(now time.Time) entities.Status
	IsEligibleVoter(voter entities.Identity) bool
	HasVoted(voter entities.Identity) bool
	CandidateCount() int
}

type Request struct {
	Voter          entities.Identity
	CandidateIndex int
	Now            time.Time
}

// Check runs the gate in order and returns the first failure:
// identity, status, eligibility, duplicate, bounds.
func Check(target Target, req Request) error {
	voter := req.Voter.Normalize()
	if voter.IsZero() {
		return domainerrors.ErrUnauthenticated
	}
	if target.StatusAt(req.Now) != entities.StatusOpen {
		return domainerrors.ErrVotingNotOpen
	}
	if !target.IsEligibleVoter(voter) {
		return domainerrors.ErrNotEligible
	}
	if target.HasVoted(voter) {
		return domainerrors.ErrAlreadyVoted
	}
	if req.CandidateIndex < 0 || req.CandidateIndex >= target.CandidateCount() {
		return domainerrors.ErrInvalidCandidate
	}
	return nil
}
