package elements

import (
	"context"

	"github.com/google/uuid"

	repos "github.com/traceloom/traceloom-backend/internal/data/repos/alignment"
	types "github.com/traceloom/traceloom-backend/internal/domain"
	"github.com/traceloom/traceloom-backend/internal/platform/dbctx"
)

// Source is the element store contract the pipeline reads from. Elements come
// back in stored order and are never mutated by the pipeline.
type Source interface {
	List(ctx context.Context, sessionID uuid.UUID, dataset string) ([]types.Element, error)
}

type repoSource struct {
	repo repos.ElementRepo
}

// NewRepoSource adapts the Postgres element rows into the pipeline's view.
func NewRepoSource(repo repos.ElementRepo) Source {
	return &repoSource{repo: repo}
}

func (s *repoSource) List(ctx context.Context, sessionID uuid.UUID, dataset string) ([]types.Element, error) {
	rows, err := s.repo.ListBySession(dbctx.Context{Ctx: ctx}, sessionID, dataset)
	if err != nil {
		return nil, err
	}
	out := make([]types.Element, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		out = append(out, types.Element{
			ID:       row.ExternalID,
			Label:    row.Label,
			Content:  row.Content,
			Category: row.Category,
		})
	}
	return out, nil
}

// StaticSource serves fixed element lists. Used by tests and by the agentic
// tool dispatcher when a caller supplies datasets inline.
type StaticSource struct {
	D1 []types.Element
	D2 []types.Element
}

func (s *StaticSource) List(_ context.Context, _ uuid.UUID, dataset string) ([]types.Element, error) {
	switch dataset {
	case types.Dataset2:
		return s.D2, nil
	default:
		return s.D1, nil
	}
}
