package queries

import (
	"context"
	"time"

	"truevote/contexts/election-ledger/campaign-ledger/domain/entities"
	"truevote/contexts/election-ledger/campaign-ledger/domain/ledger"
	"truevote/contexts/election-ledger/campaign-ledger/ports"
)

const moduleName = "election-ledger/campaign-ledger"

type ResultSource string

const (
	ResultSourceProjection ResultSource = "projection"
	ResultSourceLedger     ResultSource = "ledger"
)

type CandidateResult struct {
	Index     int
	Name      string
	VoteCount uint64
}

type CampaignResults struct {
	CampaignID uint64
	Status     entities.Status
	Candidates []CandidateResult
	TotalVotes uint64
	Source     ResultSource
	AsOf       time.Time
}

// ResultsUseCase prefers the live tally projection and falls back to the
// record snapshot when the projection has not seen the campaign yet or lags
// behind a candidate append.
type ResultsUseCase struct {
	Ledger  *ledger.Registry
	Tallies ports.TallyReader
	Clock   ports.Clock
}

func (uc ResultsUseCase) Execute(_ context.Context, campaignID uint64) (CampaignResults, error) {
	campaign, err := uc.Ledger.Get(campaignID)
	if err != nil {
		return CampaignResults{}, err
	}
	now := resolveNow(uc.Clock)
	result := CampaignResults{
		CampaignID: campaignID,
		Status:     campaign.StatusAt(now),
		Candidates: make([]CandidateResult, 0, len(campaign.Candidates)),
		TotalVotes: campaign.TotalVotes,
		Source:     ResultSourceLedger,
		AsOf:       now,
	}
	for i, candidate := range campaign.Candidates {
		result.Candidates = append(result.Candidates, CandidateResult{
			Index:     i,
			Name:      candidate.Name,
			VoteCount: candidate.VoteCount,
		})
	}

	if uc.Tallies == nil {
		return result, nil
	}
	tally, ok := uc.Tallies.Tally(campaignID)
	if !ok || len(tally.Counts) != len(campaign.Candidates) {
		return result, nil
	}
	for i := range result.Candidates {
		result.Candidates[i].VoteCount = tally.Counts[i]
	}
	result.TotalVotes = tally.TotalVotes
	result.Source = ResultSourceProjection
	return result, nil
}
