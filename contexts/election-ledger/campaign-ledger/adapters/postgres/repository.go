package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"truevote/contexts/election-ledger/campaign-ledger/domain/entities"
	domainerrors "truevote/contexts/election-ledger/campaign-ledger/domain/errors"
	"truevote/contexts/election-ledger/campaign-ledger/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

// Repository is the durable ledger journal. Every append writes its rows and
// the matching outbox envelope in one transaction.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Migrate creates or extends the ledger tables.
func (r *Repository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(
		&campaignModel{},
		&candidateModel{},
		&allowListModel{},
		&ballotModel{},
		&outboxModel{},
		&eventDedupModel{},
	)
}

func (r *Repository) AppendCampaign(ctx context.Context, campaign entities.Campaign, event ports.EventEnvelope) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := campaignModelFromEntity(campaign)
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("campaign %d already journaled: %w", campaign.ID, domainerrors.ErrInvalidInput)
			}
			return err
		}
		candidates := make([]candidateModel, 0, len(campaign.Candidates))
		for i, candidate := range campaign.Candidates {
			candidates = append(candidates, candidateModel{
				CampaignID:     campaign.ID,
				CandidateIndex: i,
				Name:           candidate.Name,
				CreatedAt:      campaign.CreatedAt.UTC(),
			})
		}
		if len(candidates) > 0 {
			if err := tx.Create(&candidates).Error; err != nil {
				return err
			}
		}
		allowed := make([]allowListModel, 0, len(campaign.AllowList))
		for _, identity := range campaign.AllowList {
			allowed = append(allowed, allowListModel{
				CampaignID: campaign.ID,
				VoterID:    string(identity),
			})
		}
		if len(allowed) > 0 {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&allowed).Error; err != nil {
				return err
			}
		}
		return insertOutboxEnvelopeTx(tx, event)
	})
}

func (r *Repository) AppendCandidate(ctx context.Context, campaignID uint64, index int, name string, event ports.EventEnvelope) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := candidateModel{
			CampaignID:     campaignID,
			CandidateIndex: index,
			Name:           strings.TrimSpace(name),
			CreatedAt:      event.OccurredAt.UTC(),
		}
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("candidate %d/%d already journaled: %w", campaignID, index, domainerrors.ErrInvalidInput)
			}
			return err
		}
		return insertOutboxEnvelopeTx(tx, event)
	})
}

// AppendBallot relies on the (campaign_id, voter_id) unique index as a second
// guard behind the in-memory voter set.
func (r *Repository) AppendBallot(ctx context.Context, ballot entities.Ballot, event ports.EventEnvelope) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := ballotModel{
			BallotID:       strings.TrimSpace(event.EventID),
			CampaignID:     ballot.CampaignID,
			VoterID:        string(ballot.Voter),
			CandidateIndex: ballot.CandidateIndex,
			NewVoteCount:   ballot.NewVoteCount,
			TotalVotes:     ballot.TotalVotes,
			CastAt:         ballot.CastAt.UTC(),
		}
		if row.BallotID == "" {
			row.BallotID = uuid.NewString()
		}
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrAlreadyVoted
			}
			return err
		}
		return insertOutboxEnvelopeTx(tx, event)
	})
}

// LoadLedger returns every campaign in id order with its ballots in commit
// order. A database without ledger tables yields an empty ledger.
func (r *Repository) LoadLedger(ctx context.Context) ([]entities.LedgerState, error) {
	db := r.db.WithContext(ctx)

	var campaigns []campaignModel
	if err := db.Order("campaign_id ASC").Find(&campaigns).Error; err != nil {
		if isUndefinedTable(err) {
			r.logger.Warn("ledger tables missing, starting empty",
				"event", "ledger_journal_tables_missing",
				"module", "election-ledger/campaign-ledger",
				"layer", "adapter",
			)
			return []entities.LedgerState{}, nil
		}
		return nil, err
	}
	var candidates []candidateModel
	if err := db.Order("campaign_id ASC, candidate_index ASC").Find(&candidates).Error; err != nil {
		return nil, err
	}
	var allowed []allowListModel
	if err := db.Order("campaign_id ASC, voter_id ASC").Find(&allowed).Error; err != nil {
		return nil, err
	}
	var ballots []ballotModel
	if err := db.Order("campaign_id ASC, total_votes ASC").Find(&ballots).Error; err != nil {
		return nil, err
	}

	states := make([]entities.LedgerState, 0, len(campaigns))
	positions := make(map[uint64]int, len(campaigns))
	for _, row := range campaigns {
		positions[row.CampaignID] = len(states)
		states = append(states, entities.LedgerState{Campaign: row.toEntity()})
	}
	for _, row := range candidates {
		if pos, ok := positions[row.CampaignID]; ok {
			states[pos].Campaign.Candidates = append(states[pos].Campaign.Candidates, entities.Candidate{Name: row.Name})
		}
	}
	for _, row := range allowed {
		if pos, ok := positions[row.CampaignID]; ok {
			states[pos].Campaign.AllowList = append(states[pos].Campaign.AllowList, entities.Identity(row.VoterID))
		}
	}
	for _, row := range ballots {
		if pos, ok := positions[row.CampaignID]; ok {
			states[pos].Ballots = append(states[pos].Ballots, row.toEntity())
		}
	}
	return states, nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrOutboxNotFound
	}
	return nil
}

func (r *Repository) ReserveEvent(
	ctx context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	row := eventDedupModel{
		EventID:     strings.TrimSpace(eventID),
		PayloadHash: strings.TrimSpace(payloadHash),
		ExpiresAt:   expiresAt.UTC(),
		ProcessedAt: time.Now().UTC(),
	}

	createResult := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if createResult.Error != nil {
		return false, createResult.Error
	}
	if createResult.RowsAffected > 0 {
		return false, nil
	}

	var existing eventDedupModel
	if err := r.db.WithContext(ctx).
		Select("payload_hash").
		Where("event_id = ?", row.EventID).
		First(&existing).
		Error; err != nil {
		return false, err
	}
	if existing.PayloadHash != row.PayloadHash {
		return false, domainerrors.ErrEventConflict
	}
	return true, nil
}

func insertOutboxEnvelopeTx(tx *gorm.DB, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	createResult := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if createResult.Error != nil {
		return createResult.Error
	}
	if createResult.RowsAffected == 0 {
		var existing outboxModel
		if err := tx.Select("payload").Where("outbox_id = ?", row.OutboxID).First(&existing).Error; err != nil {
			return err
		}
		if !bytes.Equal(existing.Payload, row.Payload) {
			return domainerrors.ErrEventConflict
		}
	}
	return nil
}

type campaignModel struct {
	CampaignID      uint64    `gorm:"column:campaign_id;primaryKey;autoIncrement:false"`
	Handle          string    `gorm:"column:handle;uniqueIndex"`
	OwnerID         string    `gorm:"column:owner_id;index"`
	Name            string    `gorm:"column:name"`
	Description     string    `gorm:"column:description"`
	DisplayDate     string    `gorm:"column:display_date"`
	StartTime       time.Time `gorm:"column:start_time"`
	DurationMinutes int64     `gorm:"column:duration_minutes"`
	IsPublic        bool      `gorm:"column:is_public"`
	CreatedAt       time.Time `gorm:"column:created_at"`
}

func (campaignModel) TableName() string {
	return "ledger_campaigns"
}

func campaignModelFromEntity(item entities.Campaign) campaignModel {
	return campaignModel{
		CampaignID:      item.ID,
		Handle:          strings.TrimSpace(item.Handle),
		OwnerID:         string(item.Owner),
		Name:            strings.TrimSpace(item.Name),
		Description:     strings.TrimSpace(item.Description),
		DisplayDate:     strings.TrimSpace(item.DisplayDate),
		StartTime:       item.Window.StartTime.UTC(),
		DurationMinutes: item.Window.DurationMinutes,
		IsPublic:        item.IsPublic,
		CreatedAt:       item.CreatedAt.UTC(),
	}
}

func (m campaignModel) toEntity() entities.Campaign {
	return entities.Campaign{
		ID:          m.CampaignID,
		Handle:      m.Handle,
		Owner:       entities.Identity(m.OwnerID),
		Name:        m.Name,
		Description: m.Description,
		DisplayDate: m.DisplayDate,
		Window: entities.Window{
			StartTime:       m.StartTime.UTC(),
			DurationMinutes: m.DurationMinutes,
		},
		IsPublic:  m.IsPublic,
		CreatedAt: m.CreatedAt.UTC(),
	}
}

type candidateModel struct {
	CampaignID     uint64    `gorm:"column:campaign_id;primaryKey;autoIncrement:false"`
	CandidateIndex int       `gorm:"column:candidate_index;primaryKey;autoIncrement:false"`
	Name           string    `gorm:"column:name"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (candidateModel) TableName() string {
	return "ledger_candidates"
}

type allowListModel struct {
	CampaignID uint64 `gorm:"column:campaign_id;primaryKey;autoIncrement:false"`
	VoterID    string `gorm:"column:voter_id;primaryKey"`
}

func (allowListModel) TableName() string {
	return "ledger_allow_list"
}

type ballotModel struct {
	BallotID       string    `gorm:"column:ballot_id;primaryKey"`
	CampaignID     uint64    `gorm:"column:campaign_id;uniqueIndex:ux_ledger_ballots_voter"`
	VoterID        string    `gorm:"column:voter_id;uniqueIndex:ux_ledger_ballots_voter"`
	CandidateIndex int       `gorm:"column:candidate_index"`
	NewVoteCount   uint64    `gorm:"column:new_vote_count"`
	TotalVotes     uint64    `gorm:"column:total_votes"`
	CastAt         time.Time `gorm:"column:cast_at"`
}

func (ballotModel) TableName() string {
	return "ledger_ballots"
}

func (m ballotModel) toEntity() entities.Ballot {
	return entities.Ballot{
		CampaignID:     m.CampaignID,
		Voter:          entities.Identity(m.VoterID),
		CandidateIndex: m.CandidateIndex,
		NewVoteCount:   m.NewVoteCount,
		TotalVotes:     m.TotalVotes,
		CastAt:         m.CastAt.UTC(),
	}
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status;index"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "ledger_outbox"
}

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	PayloadHash string    `gorm:"column:payload_hash"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
}

func (eventDedupModel) TableName() string {
	return "ledger_event_dedup"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}

var _ ports.LedgerJournal = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
var _ ports.EventDedupStore = (*Repository)(nil)
