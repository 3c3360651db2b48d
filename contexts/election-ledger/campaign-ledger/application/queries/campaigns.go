package queries

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	application "truevote/contexts/election-ledger/campaign-ledger/application"
	"truevote/contexts/election-ledger/campaign-ledger/domain/entities"
	"truevote/contexts/election-ledger/campaign-ledger/domain/ledger"
	"truevote/contexts/election-ledger/campaign-ledger/ports"
)

type GetCampaignUseCase struct {
	Ledger *ledger.Registry
	Logger *slog.Logger
}

func (uc GetCampaignUseCase) Execute(_ context.Context, campaignID uint64) (entities.Campaign, error) {
	campaign, err := uc.Ledger.Get(campaignID)
	if err != nil {
		application.ResolveLogger(uc.Logger).Debug("campaign lookup missed",
			"event", "ledger_campaign_lookup_missed",
			"module", moduleName,
			"layer", "application",
			"campaign_id", campaignID,
		)
		return entities.Campaign{}, err
	}
	return campaign, nil
}

type CountCampaignsUseCase struct {
	Ledger *ledger.Registry
}

func (uc CountCampaignsUseCase) Execute(_ context.Context) uint64 {
	return uc.Ledger.Count()
}

type GetCandidateUseCase struct {
	Ledger *ledger.Registry
}

func (uc GetCandidateUseCase) Execute(_ context.Context, campaignID uint64, index int) (entities.Candidate, error) {
	record, err := uc.Ledger.Record(campaignID)
	if err != nil {
		return entities.Candidate{}, err
	}
	return record.Candidate(index)
}

type CampaignStatus struct {
	CampaignID       uint64
	Status           entities.Status
	StartTime        time.Time
	EndTime          time.Time
	RemainingSeconds uint64
	CandidateCount   int
	TotalVotes       uint64
	AsOf             time.Time
}

type CampaignStatusUseCase struct {
	Ledger *ledger.Registry
	Clock  ports.Clock
}

func (uc CampaignStatusUseCase) Execute(_ context.Context, campaignID uint64) (CampaignStatus, error) {
	record, err := uc.Ledger.Record(campaignID)
	if err != nil {
		return CampaignStatus{}, err
	}
	now := resolveNow(uc.Clock)
	window := record.Window()
	return CampaignStatus{
		CampaignID:       campaignID,
		Status:           window.StatusAt(now),
		StartTime:        window.StartTime,
		EndTime:          window.EndTime(),
		RemainingSeconds: window.RemainingSeconds(now),
		CandidateCount:   record.CandidateCount(),
		TotalVotes:       record.TotalVotes(),
		AsOf:             now,
	}, nil
}

type VoterStanding struct {
	CampaignID uint64
	Voter      entities.Identity
	IsEligible bool
	HasVoted   bool
	IsOwner    bool
}

type VoterStandingUseCase struct {
	Ledger *ledger.Registry
}

func (uc VoterStandingUseCase) Execute(_ context.Context, campaignID uint64, voter string) (VoterStanding, error) {
	record, err := uc.Ledger.Record(campaignID)
	if err != nil {
		return VoterStanding{}, err
	}
	identity := entities.Identity(strings.TrimSpace(voter))
	return VoterStanding{
		CampaignID: campaignID,
		Voter:      identity,
		IsEligible: !identity.IsZero() && record.IsEligibleVoter(identity),
		HasVoted:   record.HasVoted(identity),
		IsOwner:    record.IsOwner(identity),
	}, nil
}

// ListCampaignsUseCase serves the by-voter and by-owner listings. Both return
// ids in creation order.
type ListCampaignsUseCase struct {
	Ledger *ledger.Registry
}

func (uc ListCampaignsUseCase) EligibleFor(_ context.Context, voter string) []uint64 {
	identity := entities.Identity(strings.TrimSpace(voter))
	if identity.IsZero() {
		return []uint64{}
	}
	ids := slices.Collect(uc.Ledger.EligibleFor(identity))
	if ids == nil {
		return []uint64{}
	}
	return ids
}

func (uc ListCampaignsUseCase) OwnedBy(_ context.Context, owner string) []uint64 {
	ids := uc.Ledger.OwnedBy(entities.Identity(owner))
	if ids == nil {
		return []uint64{}
	}
	return ids
}

func (uc ListCampaignsUseCase) Handles(_ context.Context) []string {
	return uc.Ledger.Handles()
}

func resolveNow(clock ports.Clock) time.Time {
	if clock == nil {
		return time.Now().UTC()
	}
	return clock.Now().UTC()
}
