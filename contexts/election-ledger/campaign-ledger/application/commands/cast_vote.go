package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "truevote/contexts/election-ledger/campaign-ledger/application"
	"truevote/contexts/election-ledger/campaign-ledger/domain/admission"
	"truevote/contexts/election-ledger/campaign-ledger/domain/entities"
	domainerrors "truevote/contexts/election-ledger/campaign-ledger/domain/errors"
	"truevote/contexts/election-ledger/campaign-ledger/domain/ledger"
	"truevote/contexts/election-ledger/campaign-ledger/ports"
	contractsv1 "truevote/contracts/gen/events/v1"
)

type CastVoteCommand struct {
	CampaignID     uint64
	Voter          string
	CandidateIndex int
	AdmissionGrant string
}

type CastVoteUseCase struct {
	Ledger    *ledger.Registry
	Journal   ports.LedgerJournal
	Publisher ports.EventPublisher
	// Verifier is nil when grants are not enforced; the voter identity is
	// then trusted as resolved by the caller.
	Verifier ports.AdmissionVerifier
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Logger   *slog.Logger
}

func (uc CastVoteUseCase) Execute(ctx context.Context, cmd CastVoteCommand) (entities.Ballot, error) {
	logger := application.ResolveLogger(uc.Logger)
	voter := strings.TrimSpace(cmd.Voter)
	logger.Info("vote cast processing started",
		"event", "ledger_vote_cast_started",
		"module", moduleName,
		"layer", "application",
		"campaign_id", cmd.CampaignID,
		"voter_id", voter,
		"candidate_index", cmd.CandidateIndex,
	)

	record, err := uc.Ledger.Record(cmd.CampaignID)
	if err != nil {
		logFailure(logger, "vote cast rejected", "ledger_vote_cast_rejected", err,
			"campaign_id", cmd.CampaignID,
			"voter_id", voter,
		)
		return entities.Ballot{}, err
	}
	if voter == "" {
		logFailure(logger, "vote cast rejected", "ledger_vote_cast_rejected", domainerrors.ErrUnauthenticated,
			"campaign_id", cmd.CampaignID,
		)
		return entities.Ballot{}, domainerrors.ErrUnauthenticated
	}
	if uc.Verifier != nil {
		if err := uc.verifyGrant(ctx, cmd.AdmissionGrant, cmd.CampaignID, entities.Identity(voter)); err != nil {
			logFailure(logger, "vote admission grant rejected", "ledger_vote_grant_rejected", err,
				"campaign_id", cmd.CampaignID,
				"voter_id", voter,
			)
			return entities.Ballot{}, err
		}
	}

	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Ballot{}, err
	}

	var event ports.EventEnvelope
	ballot, err := record.CastVote(admission.Request{
		Voter:          entities.Identity(voter),
		CandidateIndex: cmd.CandidateIndex,
		Now:            uc.now(),
	}, func(ballot entities.Ballot) error {
		envelope, err := newLedgerEnvelope(eventID, contractsv1.EventTypeVoteCast, ballot.CampaignID, ballot.CastAt, contractsv1.VoteCast{
			CampaignID:     ballot.CampaignID,
			CandidateIndex: ballot.CandidateIndex,
			NewVoteCount:   ballot.NewVoteCount,
			TotalVotes:     ballot.TotalVotes,
		})
		if err != nil {
			return err
		}
		if uc.Journal != nil {
			if err := uc.Journal.AppendBallot(ctx, ballot, envelope); err != nil {
				return err
			}
		}
		event = envelope
		return nil
	})
	if err != nil {
		logFailure(logger, "vote cast rejected", "ledger_vote_cast_rejected", err,
			"campaign_id", cmd.CampaignID,
			"voter_id", voter,
			"candidate_index", cmd.CandidateIndex,
		)
		return entities.Ballot{}, err
	}

	publish(ctx, logger, uc.Publisher, event)
	logger.Info("vote cast accepted",
		"event", "ledger_vote_cast_accepted",
		"module", moduleName,
		"layer", "application",
		"campaign_id", ballot.CampaignID,
		"voter_id", voter,
		"candidate_index", ballot.CandidateIndex,
		"new_vote_count", ballot.NewVoteCount,
	)
	return ballot, nil
}

func (uc CastVoteUseCase) verifyGrant(ctx context.Context, grant string, campaignID uint64, voter entities.Identity) error {
	if strings.TrimSpace(grant) == "" {
		return domainerrors.ErrAdmissionRequired
	}
	err := uc.Verifier.Verify(ctx, strings.TrimSpace(grant), campaignID, voter)
	if err == nil {
		return nil
	}
	if errors.Is(err, domainerrors.ErrAdmissionDenied) {
		return err
	}
	return errors.Join(domainerrors.ErrAdmissionDenied, err)
}

func (uc CastVoteUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}
