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

type VennRepo interface {
	// Replace writes the result for a session, superseding any prior record.
	Replace(dbc dbctx.Context, sessionID uuid.UUID, result *types.VennResult) (*types.VennRecord, error)
	GetBySession(dbc dbctx.Context, sessionID uuid.UUID) (*types.VennRecord, error)
}

type vennRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVennRepo(db *gorm.DB, baseLog *logger.Logger) VennRepo {
	return &vennRepo{
		db:  db,
		log: baseLog.With("repo", "VennRepo"),
	}
}

func (r *vennRepo) Replace(dbc dbctx.Context, sessionID uuid.UUID, result *types.VennResult) (*types.VennRecord, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if sessionID == uuid.Nil || result == nil {
		return nil, nil
	}

	d1, err := json.Marshal(result.UniqueToD1)
	if err != nil {
		return nil, err
	}
	aligned, err := json.Marshal(result.Aligned)
	if err != nil {
		return nil, err
	}
	d2, err := json.Marshal(result.UniqueToD2)
	if err != nil {
		return nil, err
	}
	summary, err := json.Marshal(result.Summary)
	if err != nil {
		return nil, err
	}

	record := &types.VennRecord{
		ID:         uuid.New(),
		SessionID:  sessionID,
		UniqueToD1: datatypes.JSON(d1),
		Aligned:    datatypes.JSON(aligned),
		UniqueToD2: datatypes.JSON(d2),
		Summary:    datatypes.JSON(summary),
	}

	err = transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		if err := txx.Where("session_id = ?", sessionID).Delete(&types.VennRecord{}).Error; err != nil {
			return err
		}
		return txx.Create(record).Error
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *vennRepo) GetBySession(dbc dbctx.Context, sessionID uuid.UUID) (*types.VennRecord, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if sessionID == uuid.Nil {
		return nil, nil
	}
	var record types.VennRecord
	if err := transaction.WithContext(dbc.Ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(1).
		Find(&record).Error; err != nil {
		return nil, err
	}
	if record.ID == uuid.Nil {
		return nil, nil
	}
	return &record, nil
}
