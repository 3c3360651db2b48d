package commands

import (
	"encoding/json"
	"strconv"
	"time"

	"truevote/contexts/election-ledger/campaign-ledger/ports"
)

const (
	moduleName    = "election-ledger/campaign-ledger"
	sourceService = "campaign-ledger"
)

func newLedgerEnvelope(
	eventID string,
	eventType string,
	campaignID uint64,
	occurredAt time.Time,
	data any,
) (ports.EventEnvelope, error) {
	// Every ledger event is partitioned by campaign so subscribers see one
	// campaign's events in commit order.
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    sourceService,
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "campaign_id",
		PartitionKey:     strconv.FormatUint(campaignID, 10),
		Data:             payload,
	}, nil
}
