package queries

import (
	"context"
	"log/slog"
	"strconv"

	application "truevote/contexts/election-ledger/campaign-ledger/application"
	domainerrors "truevote/contexts/election-ledger/campaign-ledger/domain/errors"
	"truevote/contexts/election-ledger/campaign-ledger/domain/ledger"
	"truevote/contexts/election-ledger/campaign-ledger/ports"
	contractsv1 "truevote/contracts/gen/events/v1"
)

// WatchVotesUseCase streams one campaign's vote.cast events. The stream is
// lossy under back pressure; consumers resync through the results query.
type WatchVotesUseCase struct {
	Ledger *ledger.Registry
	Stream ports.EventStream
	Logger *slog.Logger
}

func (uc WatchVotesUseCase) Execute(ctx context.Context, campaignID uint64) (<-chan contractsv1.VoteCast, error) {
	if _, err := uc.Ledger.Record(campaignID); err != nil {
		return nil, err
	}
	if uc.Stream == nil {
		return nil, domainerrors.ErrStreamUnavailable
	}
	source, err := uc.Stream.Open(ctx, contractsv1.EventTypeVoteCast)
	if err != nil {
		return nil, err
	}

	logger := application.ResolveLogger(uc.Logger)
	partitionKey := strconv.FormatUint(campaignID, 10)
	out := make(chan contractsv1.VoteCast)
	go func() {
		defer close(out)
		for event := range source {
			if event.PartitionKey != partitionKey {
				continue
			}
			var payload contractsv1.VoteCast
			if err := event.DecodeData(&payload); err != nil {
				logger.Warn("vote stream payload decode failed",
					"event", "ledger_vote_stream_decode_failed",
					"module", moduleName,
					"layer", "application",
					"event_id", event.EventID,
					"error", err.Error(),
				)
				continue
			}
			select {
			case out <- payload:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
