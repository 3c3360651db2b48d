package campaignledger

import (
	"context"
	"fmt"
	"log/slog"

	httpadapter "truevote/contexts/election-ledger/campaign-ledger/adapters/http"
	"truevote/contexts/election-ledger/campaign-ledger/adapters/memory"
	"truevote/contexts/election-ledger/campaign-ledger/application/commands"
	"truevote/contexts/election-ledger/campaign-ledger/application/queries"
	"truevote/contexts/election-ledger/campaign-ledger/application/workers"
	"truevote/contexts/election-ledger/campaign-ledger/domain/ledger"
	"truevote/contexts/election-ledger/campaign-ledger/ports"
)

type Module struct {
	Handler   httpadapter.Handler
	Registry  *ledger.Registry
	Projector *workers.TallyProjector
	Journal   ports.LedgerJournal
	Store     *memory.Store
	Logger    *slog.Logger
}

type Dependencies struct {
	Journal    ports.LedgerJournal
	Publisher  ports.EventPublisher
	Subscriber ports.EventSubscriber
	Stream     ports.EventStream
	Dedup      ports.EventDedupStore
	Verifier   ports.AdmissionVerifier
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger

	// EnableTallyProjector builds the live results projection. It needs a
	// Subscriber and is started by Start.
	EnableTallyProjector bool
}

func NewModule(deps Dependencies) Module {
	registry := ledger.NewRegistry()

	var projector *workers.TallyProjector
	var tallies ports.TallyReader
	if deps.EnableTallyProjector && deps.Subscriber != nil {
		projector = workers.NewTallyProjector(deps.Subscriber, deps.Dedup, registry, deps.Clock, deps.Logger)
		tallies = projector
	}

	return Module{
		Registry:  registry,
		Projector: projector,
		Journal:   deps.Journal,
		Logger:    deps.Logger,
		Handler: httpadapter.Handler{
			CreateCampaign: commands.CreateCampaignUseCase{
				Ledger:    registry,
				Journal:   deps.Journal,
				Publisher: deps.Publisher,
				Clock:     deps.Clock,
				IDGen:     deps.IDGen,
				Logger:    deps.Logger,
			},
			AddCandidate: commands.AddCandidateUseCase{
				Ledger:    registry,
				Journal:   deps.Journal,
				Publisher: deps.Publisher,
				Clock:     deps.Clock,
				IDGen:     deps.IDGen,
				Logger:    deps.Logger,
			},
			CastVote: commands.CastVoteUseCase{
				Ledger:    registry,
				Journal:   deps.Journal,
				Publisher: deps.Publisher,
				Verifier:  deps.Verifier,
				Clock:     deps.Clock,
				IDGen:     deps.IDGen,
				Logger:    deps.Logger,
			},
			GetCampaign:    queries.GetCampaignUseCase{Ledger: registry, Logger: deps.Logger},
			CountCampaigns: queries.CountCampaignsUseCase{Ledger: registry},
			GetCandidate:   queries.GetCandidateUseCase{Ledger: registry},
			Status:         queries.CampaignStatusUseCase{Ledger: registry, Clock: deps.Clock},
			VoterStanding:  queries.VoterStandingUseCase{Ledger: registry},
			ListCampaigns:  queries.ListCampaignsUseCase{Ledger: registry},
			Results:        queries.ResultsUseCase{Ledger: registry, Tallies: tallies, Clock: deps.Clock},
			WatchVotes:     queries.WatchVotesUseCase{Ledger: registry, Stream: deps.Stream, Logger: deps.Logger},
			Logger:         deps.Logger,
		},
	}
}

// NewInMemoryModule wires the ledger to the in-process store. Admission grants
// are not enforced unless verifier is set.
func NewInMemoryModule(verifier ports.AdmissionVerifier, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Journal:  store,
		Dedup:    store,
		Verifier: verifier,
		Clock:    store,
		IDGen:    store,
		Logger:   logger,
	})
	module.Store = store
	return module
}

// Start replays the journal into the registry and starts the tally
// projector. It must run before the module serves traffic.
func (m Module) Start(ctx context.Context) error {
	if m.Journal != nil {
		states, err := m.Journal.LoadLedger(ctx)
		if err != nil {
			return fmt.Errorf("load ledger journal: %w", err)
		}
		if err := m.Registry.Restore(states); err != nil {
			return fmt.Errorf("restore ledger: %w", err)
		}
		if m.Logger != nil {
			m.Logger.Info("ledger restored from journal",
				"event", "ledger_restored",
				"module", "election-ledger/campaign-ledger",
				"layer", "module",
				"campaign_count", len(states),
			)
		}
	}
	if m.Projector != nil {
		if err := m.Projector.Start(ctx); err != nil {
			return fmt.Errorf("start tally projector: %w", err)
		}
	}
	return nil
}
