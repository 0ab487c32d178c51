package alignment

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/traceloom/traceloom-backend/internal/domain"
	"github.com/traceloom/traceloom-backend/internal/platform/dbctx"
	"github.com/traceloom/traceloom-backend/internal/platform/logger"
)

type ElementRepo interface {
	CreateBatch(dbc dbctx.Context, elements []*types.DatasetElement) ([]*types.DatasetElement, error)
	ListBySession(dbc dbctx.Context, sessionID uuid.UUID, dataset string) ([]*types.DatasetElement, error)
	GetByExternalID(dbc dbctx.Context, sessionID uuid.UUID, dataset string, externalID string) (*types.DatasetElement, error)
}

type elementRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewElementRepo(db *gorm.DB, baseLog *logger.Logger) ElementRepo {
	return &elementRepo{
		db:  db,
		log: baseLog.With("repo", "ElementRepo"),
	}
}

func (r *elementRepo) CreateBatch(dbc dbctx.Context, elements []*types.DatasetElement) ([]*types.DatasetElement, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(elements) == 0 {
		return []*types.DatasetElement{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&elements).Error; err != nil {
		return nil, err
	}
	return elements, nil
}

func (r *elementRepo) ListBySession(dbc dbctx.Context, sessionID uuid.UUID, dataset string) ([]*types.DatasetElement, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.DatasetElement
	if sessionID == uuid.Nil {
		return out, nil
	}
	q := transaction.WithContext(dbc.Ctx).Where("session_id = ?", sessionID)
	if dataset != "" {
		q = q.Where("dataset = ?", dataset)
	}
	if err := q.Order("position ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *elementRepo) GetByExternalID(dbc dbctx.Context, sessionID uuid.UUID, dataset string, externalID string) (*types.DatasetElement, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if sessionID == uuid.Nil || externalID == "" {
		return nil, nil
	}
	var el types.DatasetElement
	q := transaction.WithContext(dbc.Ctx).
		Where("session_id = ? AND external_id = ?", sessionID, externalID)
	if dataset != "" {
		q = q.Where("dataset = ?", dataset)
	}
	if err := q.Limit(1).Find(&el).Error; err != nil {
		return nil, err
	}
	if el.ID == uuid.Nil {
		return nil, nil
	}
	return &el, nil
}
