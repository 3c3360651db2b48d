package commands

import (
	"context"
	"errors"
	"log/slog"

	domainerrors "truevote/contexts/election-ledger/campaign-ledger/domain/errors"
	"truevote/contexts/election-ledger/campaign-ledger/ports"
)

// publish fans out a committed event. Delivery is best effort here; the
// journal outbox row is what the relay retries from.
func publish(ctx context.Context, logger *slog.Logger, publisher ports.EventPublisher, event ports.EventEnvelope) {
	if publisher == nil || event.EventID == "" {
		return
	}
	if err := publisher.Publish(ctx, event.EventType, event); err != nil {
		logger.Error("ledger event publish failed",
			"event", "ledger_event_publish_failed",
			"module", moduleName,
			"layer", "application",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"error", err.Error(),
		)
	}
}

// logFailure logs rule rejections at warn and everything else at error.
func logFailure(logger *slog.Logger, msg string, event string, err error, attrs ...any) {
	args := append([]any{
		"event", event,
		"module", moduleName,
		"layer", "application",
		"error", err.Error(),
	}, attrs...)
	if isRejection(err) {
		logger.Warn(msg, args...)
		return
	}
	logger.Error(msg, args...)
}

func isRejection(err error) bool {
	for _, target := range []error{
		domainerrors.ErrInvalidInput,
		domainerrors.ErrNotFound,
		domainerrors.ErrOutOfRange,
		domainerrors.ErrForbidden,
		domainerrors.ErrUnauthenticated,
		domainerrors.ErrVotingNotOpen,
		domainerrors.ErrNotEligible,
		domainerrors.ErrAlreadyVoted,
		domainerrors.ErrInvalidCandidate,
		domainerrors.ErrAdmissionRequired,
		domainerrors.ErrAdmissionDenied,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
