package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "truevote/contexts/election-ledger/campaign-ledger/application"
	"truevote/contexts/election-ledger/campaign-ledger/domain/entities"
	"truevote/contexts/election-ledger/campaign-ledger/domain/ledger"
	"truevote/contexts/election-ledger/campaign-ledger/ports"
	contractsv1 "truevote/contracts/gen/events/v1"
)

type AddCandidateCommand struct {
	CampaignID uint64
	Caller     string
	Name       string
}

type AddCandidateResult struct {
	CampaignID     uint64
	CandidateIndex int
	Candidate      entities.Candidate
}

type AddCandidateUseCase struct {
	Ledger    *ledger.Registry
	Journal   ports.LedgerJournal
	Publisher ports.EventPublisher
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

func (uc AddCandidateUseCase) Execute(ctx context.Context, cmd AddCandidateCommand) (AddCandidateResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	caller := strings.TrimSpace(cmd.Caller)

	record, err := uc.Ledger.Record(cmd.CampaignID)
	if err != nil {
		logFailure(logger, "candidate add rejected", "ledger_candidate_add_rejected", err,
			"campaign_id", cmd.CampaignID,
			"caller_id", caller,
		)
		return AddCandidateResult{}, err
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return AddCandidateResult{}, err
	}

	now := uc.now()
	var event ports.EventEnvelope
	index, err := record.AddCandidate(entities.Identity(caller), cmd.Name, func(campaignID uint64, index int, name string) error {
		envelope, err := newLedgerEnvelope(eventID, contractsv1.EventTypeCandidateAdded, campaignID, now, contractsv1.CandidateAdded{
			CampaignID:     campaignID,
			CandidateIndex: index,
			Name:           name,
		})
		if err != nil {
			return err
		}
		if uc.Journal != nil {
			if err := uc.Journal.AppendCandidate(ctx, campaignID, index, name, envelope); err != nil {
				return err
			}
		}
		event = envelope
		return nil
	})
	if err != nil {
		logFailure(logger, "candidate add rejected", "ledger_candidate_add_rejected", err,
			"campaign_id", cmd.CampaignID,
			"caller_id", caller,
		)
		return AddCandidateResult{}, err
	}

	publish(ctx, logger, uc.Publisher, event)
	candidate, err := record.Candidate(index)
	if err != nil {
		return AddCandidateResult{}, err
	}
	logger.Info("candidate added",
		"event", "ledger_candidate_added",
		"module", moduleName,
		"layer", "application",
		"campaign_id", cmd.CampaignID,
		"candidate_index", index,
	)
	return AddCandidateResult{
		CampaignID:     cmd.CampaignID,
		CandidateIndex: index,
		Candidate:      candidate,
	}, nil
}

func (uc AddCandidateUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}
