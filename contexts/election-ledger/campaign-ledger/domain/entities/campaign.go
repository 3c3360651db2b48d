package entities

import (
	"strings"
	"time"
)

// Identity is the opaque voter/owner handle resolved by the identity layer.
// The ledger only compares identities for equality.
type Identity string

func (i Identity) IsZero() bool {
	return strings.TrimSpace(string(i)) == ""
}

func (i Identity) Normalize() Identity {
	return Identity(strings.TrimSpace(string(i)))
}

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusOpen      Status = "open"
	StatusClosed    Status = "closed"
)

// Window is the immutable voting period of a campaign. Both bounds are
// inclusive: a vote at exactly EndTime is still accepted.
type Window struct {
	StartTime       time.Time
	DurationMinutes int64
}

func (w Window) EndTime() time.Time {
	return w.StartTime.Add(time.Duration(w.DurationMinutes) * time.Minute)
}

func (w Window) StatusAt(now time.Time) Status {
	switch {
	case now.Before(w.StartTime):
		return StatusScheduled
	case now.After(w.EndTime()):
		return StatusClosed
	default:
		return StatusOpen
	}
}

// RemainingSeconds is zero unless the window is open at now.
func (w Window) RemainingSeconds(now time.Time) uint64 {
	if w.StatusAt(now) != StatusOpen {
		return 0
	}
	return uint64(w.EndTime().Sub(now) / time.Second)
}

type Candidate struct {
	Name      string
	VoteCount uint64
}

// CampaignSpec is the creation input accepted by the registry.
type CampaignSpec struct {
	Owner           Identity
	CandidateNames  []string
	DurationMinutes int64
	Name            string
	Description     string
	StartTime       time.Time
	DisplayDate     string
	AllowList       []Identity
	IsPublic        bool
}

// Campaign is a consistent point-in-time copy of a campaign record.
type Campaign struct {
	ID          uint64
	Handle      string
	Owner       Identity
	Name        string
	Description string
	DisplayDate string
	Window      Window
	IsPublic    bool
	AllowList   []Identity
	Candidates  []Candidate
	TotalVotes  uint64
	CreatedAt   time.Time
}

func (c Campaign) StartTime() time.Time {
	return c.Window.StartTime
}

func (c Campaign) EndTime() time.Time {
	return c.Window.EndTime()
}

func (c Campaign) StatusAt(now time.Time) Status {
	return c.Window.StatusAt(now)
}

// Ballot is the journal entry for one accepted vote.
type Ballot struct {
	CampaignID     uint64
	Voter          Identity
	CandidateIndex int
	NewVoteCount   uint64
	TotalVotes     uint64
	CastAt         time.Time
}

// LedgerState is what a journal hands back for replay on startup. Candidate
// counts in Campaign are ignored; they are rebuilt from Ballots.
type LedgerState struct {
	Campaign Campaign
	Ballots  []Ballot
}
