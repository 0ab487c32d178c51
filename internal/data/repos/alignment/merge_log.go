package alignment

import (
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/traceloom/traceloom-backend/internal/domain"
	"github.com/traceloom/traceloom-backend/internal/platform/dbctx"
	"github.com/traceloom/traceloom-backend/internal/platform/logger"
)

type MergeLogRepo interface {
	Record(dbc dbctx.Context, sessionID uuid.UUID, round int, events []types.MergeEvent) error
	ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.MergeLogEntry, error)
}

type mergeLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMergeLogRepo(db *gorm.DB, baseLog *logger.Logger) MergeLogRepo {
	return &mergeLogRepo{
		db:  db,
		log: baseLog.With("repo", "MergeLogRepo"),
	}
}

func (r *mergeLogRepo) Record(dbc dbctx.Context, sessionID uuid.UUID, round int, events []types.MergeEvent) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if sessionID == uuid.Nil || len(events) == 0 {
		return nil
	}
	rows := make([]*types.MergeLogEntry, 0, len(events))
	for _, ev := range events {
		from, err := json.Marshal(ev.From)
		if err != nil {
			return err
		}
		rows = append(rows, &types.MergeLogEntry{
			ID:         uuid.New(),
			SessionID:  sessionID,
			Round:      round,
			FromLabels: datatypes.JSON(from),
			ToLabel:    ev.To,
		})
	}
	return transaction.WithContext(dbc.Ctx).Create(&rows).Error
}

func (r *mergeLogRepo) ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.MergeLogEntry, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.MergeLogEntry
	if sessionID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("session_id = ?", sessionID).
		Order("round ASC, created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
