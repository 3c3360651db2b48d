package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"truevote/contexts/election-ledger/campaign-ledger/application/commands"
	"truevote/contexts/election-ledger/campaign-ledger/application/queries"
	"truevote/contexts/election-ledger/campaign-ledger/domain/entities"
	"truevote/contexts/election-ledger/campaign-ledger/ports"
	httptransport "truevote/contexts/election-ledger/campaign-ledger/transport/http"
)

type Handler struct {
	CreateCampaign commands.CreateCampaignUseCase
	AddCandidate   commands.AddCandidateUseCase
	CastVote       commands.CastVoteUseCase
	GetCampaign    queries.GetCampaignUseCase
	CountCampaigns queries.CountCampaignsUseCase
	GetCandidate   queries.GetCandidateUseCase
	Status         queries.CampaignStatusUseCase
	VoterStanding  queries.VoterStandingUseCase
	ListCampaigns  queries.ListCampaignsUseCase
	Results        queries.ResultsUseCase
	WatchVotes     queries.WatchVotesUseCase
	Logger         *slog.Logger
}

func (h Handler) CreateCampaignHandler(
	ctx context.Context,
	ownerID string,
	req httptransport.CreateCampaignRequest,
) (httptransport.CampaignResponse, error) {
	campaign, err := h.CreateCampaign.Execute(ctx, commands.CreateCampaignCommand{
		Owner:           ownerID,
		CandidateNames:  req.CandidateNames,
		DurationMinutes: req.DurationMinutes,
		Name:            req.Name,
		Description:     req.Description,
		StartTime:       req.StartTime,
		DisplayDate:     req.DisplayDate,
		AllowList:       req.AllowList,
		IsPublic:        req.IsPublic,
	})
	if err != nil {
		return httptransport.CampaignResponse{}, err
	}
	return mapCampaign(campaign, h.Status.Clock), nil
}

func (h Handler) GetCampaignHandler(ctx context.Context, campaignID uint64) (httptransport.CampaignResponse, error) {
	campaign, err := h.GetCampaign.Execute(ctx, campaignID)
	if err != nil {
		return httptransport.CampaignResponse{}, err
	}
	return mapCampaign(campaign, h.Status.Clock), nil
}

func (h Handler) CountCampaignsHandler(ctx context.Context) httptransport.CampaignCountResponse {
	return httptransport.CampaignCountResponse{Count: h.CountCampaigns.Execute(ctx)}
}

func (h Handler) GetCandidateHandler(ctx context.Context, campaignID uint64, index int) (httptransport.CandidateResponse, error) {
	candidate, err := h.GetCandidate.Execute(ctx, campaignID, index)
	if err != nil {
		return httptransport.CandidateResponse{}, err
	}
	return httptransport.CandidateResponse{
		Index:     index,
		Name:      candidate.Name,
		VoteCount: candidate.VoteCount,
	}, nil
}

func (h Handler) AddCandidateHandler(
	ctx context.Context,
	callerID string,
	campaignID uint64,
	req httptransport.AddCandidateRequest,
) (httptransport.CandidateResponse, error) {
	result, err := h.AddCandidate.Execute(ctx, commands.AddCandidateCommand{
		CampaignID: campaignID,
		Caller:     callerID,
		Name:       req.Name,
	})
	if err != nil {
		return httptransport.CandidateResponse{}, err
	}
	return httptransport.CandidateResponse{
		Index:     result.CandidateIndex,
		Name:      result.Candidate.Name,
		VoteCount: result.Candidate.VoteCount,
	}, nil
}

func (h Handler) CastVoteHandler(
	ctx context.Context,
	voterID string,
	admissionGrant string,
	campaignID uint64,
	req httptransport.CastVoteRequest,
) (httptransport.VoteResponse, error) {
	ballot, err := h.CastVote.Execute(ctx, commands.CastVoteCommand{
		CampaignID:     campaignID,
		Voter:          voterID,
		CandidateIndex: req.CandidateIndex,
		AdmissionGrant: admissionGrant,
	})
	if err != nil {
		return httptransport.VoteResponse{}, err
	}
	return httptransport.VoteResponse{
		CampaignID:     ballot.CampaignID,
		CandidateIndex: ballot.CandidateIndex,
		NewVoteCount:   ballot.NewVoteCount,
		TotalVotes:     ballot.TotalVotes,
		CastAt:         ballot.CastAt,
	}, nil
}

func (h Handler) StatusHandler(ctx context.Context, campaignID uint64) (httptransport.StatusResponse, error) {
	status, err := h.Status.Execute(ctx, campaignID)
	if err != nil {
		return httptransport.StatusResponse{}, err
	}
	return httptransport.StatusResponse{
		CampaignID:       status.CampaignID,
		Status:           string(status.Status),
		StartTime:        status.StartTime,
		EndTime:          status.EndTime,
		RemainingSeconds: status.RemainingSeconds,
		CandidateCount:   status.CandidateCount,
		TotalVotes:       status.TotalVotes,
		AsOf:             status.AsOf,
	}, nil
}

func (h Handler) VoterStandingHandler(ctx context.Context, campaignID uint64, voterID string) (httptransport.VoterStandingResponse, error) {
	standing, err := h.VoterStanding.Execute(ctx, campaignID, voterID)
	if err != nil {
		return httptransport.VoterStandingResponse{}, err
	}
	return httptransport.VoterStandingResponse{
		CampaignID: standing.CampaignID,
		VoterID:    string(standing.Voter),
		IsEligible: standing.IsEligible,
		HasVoted:   standing.HasVoted,
		IsOwner:    standing.IsOwner,
	}, nil
}

func (h Handler) ResultsHandler(ctx context.Context, campaignID uint64) (httptransport.ResultsResponse, error) {
	results, err := h.Results.Execute(ctx, campaignID)
	if err != nil {
		return httptransport.ResultsResponse{}, err
	}
	candidates := make([]httptransport.CandidateResponse, 0, len(results.Candidates))
	for _, item := range results.Candidates {
		candidates = append(candidates, httptransport.CandidateResponse{
			Index:     item.Index,
			Name:      item.Name,
			VoteCount: item.VoteCount,
		})
	}
	return httptransport.ResultsResponse{
		CampaignID: results.CampaignID,
		Status:     string(results.Status),
		Candidates: candidates,
		TotalVotes: results.TotalVotes,
		Source:     string(results.Source),
		AsOf:       results.AsOf,
	}, nil
}

func (h Handler) EligibleCampaignsHandler(ctx context.Context, voterID string) httptransport.CampaignListResponse {
	return httptransport.CampaignListResponse{CampaignIDs: h.ListCampaigns.EligibleFor(ctx, voterID)}
}

func (h Handler) OwnedCampaignsHandler(ctx context.Context, ownerID string) httptransport.CampaignListResponse {
	return httptransport.CampaignListResponse{CampaignIDs: h.ListCampaigns.OwnedBy(ctx, ownerID)}
}

// WatchVotesHandler returns a stream of vote events for one campaign that
// ends when ctx is cancelled.
func (h Handler) WatchVotesHandler(ctx context.Context, campaignID uint64) (<-chan httptransport.VoteCastEvent, error) {
	source, err := h.WatchVotes.Execute(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	out := make(chan httptransport.VoteCastEvent)
	go func() {
		defer close(out)
		for item := range source {
			select {
			case out <- httptransport.VoteCastEvent{
				CampaignID:     item.CampaignID,
				CandidateIndex: item.CandidateIndex,
				NewVoteCount:   item.NewVoteCount,
				TotalVotes:     item.TotalVotes,
			}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func mapCampaign(campaign entities.Campaign, clock ports.Clock) httptransport.CampaignResponse {
	now := time.Now().UTC()
	if clock != nil {
		now = clock.Now().UTC()
	}
	candidates := make([]httptransport.CandidateResponse, 0, len(campaign.Candidates))
	for i, candidate := range campaign.Candidates {
		candidates = append(candidates, httptransport.CandidateResponse{
			Index:     i,
			Name:      candidate.Name,
			VoteCount: candidate.VoteCount,
		})
	}
	return httptransport.CampaignResponse{
		CampaignID:      campaign.ID,
		Handle:          campaign.Handle,
		Owner:           string(campaign.Owner),
		Name:            campaign.Name,
		Description:     campaign.Description,
		DisplayDate:     campaign.DisplayDate,
		StartTime:       campaign.StartTime(),
		EndTime:         campaign.EndTime(),
		DurationMinutes: campaign.Window.DurationMinutes,
		Status:          string(campaign.StatusAt(now)),
		IsPublic:        campaign.IsPublic,
		AllowListSize:   len(campaign.AllowList),
		Candidates:      candidates,
		TotalVotes:      campaign.TotalVotes,
		CreatedAt:       campaign.CreatedAt,
	}
}
