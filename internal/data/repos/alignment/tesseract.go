package alignment

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/traceloom/traceloom-backend/internal/domain"
	"github.com/traceloom/traceloom-backend/internal/platform/dbctx"
	"github.com/traceloom/traceloom-backend/internal/platform/logger"
)

type TesseractRepo interface {
	CreateBatch(dbc dbctx.Context, cells []*types.TesseractCell) error
	ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.TesseractCell, error)
	DeleteBySession(dbc dbctx.Context, sessionID uuid.UUID) error
}

type tesseractRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTesseractRepo(db *gorm.DB, baseLog *logger.Logger) TesseractRepo {
	return &tesseractRepo{
		db:  db,
		log: baseLog.With("repo", "TesseractRepo"),
	}
}

func (r *tesseractRepo) CreateBatch(dbc dbctx.Context, cells []*types.TesseractCell) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(cells) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Create(&cells).Error
}

func (r *tesseractRepo) ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.TesseractCell, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.TesseractCell
	if sessionID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("session_id = ?", sessionID).
		Order("element_id ASC, step ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *tesseractRepo) DeleteBySession(dbc dbctx.Context, sessionID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if sessionID == uuid.Nil {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Where("session_id = ?", sessionID).
		Delete(&types.TesseractCell{}).Error
}
