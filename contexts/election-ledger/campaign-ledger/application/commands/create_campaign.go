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

type CreateCampaignCommand struct {
	Owner           string
	CandidateNames  []string
	DurationMinutes int64
	Name            string
	Description     string
	StartTime       time.Time
	DisplayDate     string
	AllowList       []string
	IsPublic        bool
}

type CreateCampaignUseCase struct {
	Ledger    *ledger.Registry
	Journal   ports.LedgerJournal
	Publisher ports.EventPublisher
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

// Execute appends a campaign to the registry. The journal row and its outbox
// envelope are written before the record becomes visible; the live event is
// published once the registry lock is released.
func (uc CreateCampaignUseCase) Execute(ctx context.Context, cmd CreateCampaignCommand) (entities.Campaign, error) {
	logger := application.ResolveLogger(uc.Logger)
	owner := strings.TrimSpace(cmd.Owner)
	logger.Info("campaign create processing started",
		"event", "ledger_campaign_create_started",
		"module", moduleName,
		"layer", "application",
		"owner_id", owner,
		"candidate_count", len(cmd.CandidateNames),
	)

	handle, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Campaign{}, err
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Campaign{}, err
	}

	allowList := make([]entities.Identity, 0, len(cmd.AllowList))
	for _, item := range cmd.AllowList {
		allowList = append(allowList, entities.Identity(item))
	}
	spec := entities.CampaignSpec{
		Owner:           entities.Identity(owner),
		CandidateNames:  cmd.CandidateNames,
		DurationMinutes: cmd.DurationMinutes,
		Name:            cmd.Name,
		Description:     cmd.Description,
		StartTime:       cmd.StartTime,
		DisplayDate:     cmd.DisplayDate,
		AllowList:       allowList,
		IsPublic:        cmd.IsPublic,
	}

	now := uc.now()
	var event ports.EventEnvelope
	campaign, err := uc.Ledger.Create(spec, handle, now, func(campaign entities.Campaign) error {
		envelope, err := newLedgerEnvelope(eventID, contractsv1.EventTypeCampaignCreated, campaign.ID, now, contractsv1.CampaignCreated{
			CampaignID: campaign.ID,
			Handle:     campaign.Handle,
			Owner:      string(campaign.Owner),
			IsPublic:   campaign.IsPublic,
		})
		if err != nil {
			return err
		}
		if uc.Journal != nil {
			if err := uc.Journal.AppendCampaign(ctx, campaign, envelope); err != nil {
				return err
			}
		}
		event = envelope
		return nil
	})
	if err != nil {
		logFailure(logger, "campaign create rejected", "ledger_campaign_create_rejected", err,
			"owner_id", owner,
		)
		return entities.Campaign{}, err
	}

	publish(ctx, logger, uc.Publisher, event)
	logger.Info("campaign created",
		"event", "ledger_campaign_created",
		"module", moduleName,
		"layer", "application",
		"campaign_id", campaign.ID,
		"handle", campaign.Handle,
		"owner_id", string(campaign.Owner),
	)
	return campaign, nil
}

func (uc CreateCampaignUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}
