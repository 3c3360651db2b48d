package v1

const (
	EventTypeCampaignCreated = "campaign.created"
	EventTypeCandidateAdded  = "candidate.added"
	EventTypeVoteCast        = "vote.cast"
)

// CampaignCreated is published once per registry append.
type CampaignCreated struct {
	CampaignID uint64 `json:"campaign_id"`
	Handle     string `json:"handle"`
	Owner      string `json:"owner"`
	IsPublic   bool   `json:"is_public"`
}

// CandidateAdded is published when an owner appends a candidate.
type CandidateAdded struct {
	CampaignID     uint64 `json:"campaign_id"`
	CandidateIndex int    `json:"candidate_index"`
	Name           string `json:"name"`
}

// VoteCast carries the post-increment count so subscribers can apply it
// idempotently. Voter identity is intentionally absent.
type VoteCast struct {
	CampaignID     uint64 `json:"campaign_id"`
	CandidateIndex int    `json:"candidate_index"`
	NewVoteCount   uint64 `json:"new_vote_count"`
	TotalVotes     uint64 `json:"total_votes"`
}
