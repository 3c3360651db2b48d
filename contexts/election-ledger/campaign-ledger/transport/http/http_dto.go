package http

import "time"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreateCampaignRequest struct {
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	CandidateNames  []string  `json:"candidate_names"`
	DurationMinutes int64     `json:"duration_minutes"`
	StartTime       time.Time `json:"start_time"`
	DisplayDate     string    `json:"display_date,omitempty"`
	AllowList       []string  `json:"allow_list,omitempty"`
	IsPublic        bool      `json:"is_public"`
}

type CandidateResponse struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	VoteCount uint64 `json:"vote_count"`
}

type CampaignResponse struct {
	CampaignID      uint64              `json:"campaign_id"`
	Handle          string              `json:"handle"`
	Owner           string              `json:"owner"`
	Name            string              `json:"name"`
	Description     string              `json:"description,omitempty"`
	DisplayDate     string              `json:"display_date,omitempty"`
	StartTime       time.Time           `json:"start_time"`
	EndTime         time.Time           `json:"end_time"`
	DurationMinutes int64               `json:"duration_minutes"`
	Status          string              `json:"status"`
	IsPublic        bool                `json:"is_public"`
	AllowListSize   int                 `json:"allow_list_size"`
	Candidates      []CandidateResponse `json:"candidates"`
	TotalVotes      uint64              `json:"total_votes"`
	CreatedAt       time.Time           `json:"created_at"`
}

type CampaignCountResponse struct {
	Count uint64 `json:"count"`
}

type AddCandidateRequest struct {
	Name string `json:"name"`
}

type CastVoteRequest struct {
	CandidateIndex int `json:"candidate_index"`
}

type VoteResponse struct {
	CampaignID     uint64    `json:"campaign_id"`
	CandidateIndex int       `json:"candidate_index"`
	NewVoteCount   uint64    `json:"new_vote_count"`
	TotalVotes     uint64    `json:"total_votes"`
	CastAt         time.Time `json:"cast_at"`
}

type StatusResponse struct {
	CampaignID       uint64    `json:"campaign_id"`
	Status           string    `json:"status"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	RemainingSeconds uint64    `json:"remaining_seconds"`
	CandidateCount   int       `json:"candidate_count"`
	TotalVotes       uint64    `json:"total_votes"`
	AsOf             time.Time `json:"as_of"`
}

type VoterStandingResponse struct {
	CampaignID uint64 `json:"campaign_id"`
	VoterID    string `json:"voter_id"`
	IsEligible bool   `json:"is_eligible"`
	HasVoted   bool   `json:"has_voted"`
	IsOwner    bool   `json:"is_owner"`
}

type ResultsResponse struct {
	CampaignID uint64              `json:"campaign_id"`
	Status     string              `json:"status"`
	Candidates []CandidateResponse `json:"candidates"`
	TotalVotes uint64              `json:"total_votes"`
	Source     string              `json:"source"`
	AsOf       time.Time           `json:"as_of"`
}

type CampaignListResponse struct {
	CampaignIDs []uint64 `json:"campaign_ids"`
}

type VoteCastEvent struct {
	CampaignID     uint64 `json:"campaign_id"`
	CandidateIndex int    `json:"candidate_index"`
	NewVoteCount   uint64 `json:"new_vote_count"`
	TotalVotes     uint64 `json:"total_votes"`
}
