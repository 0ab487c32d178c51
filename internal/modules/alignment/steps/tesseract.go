package steps

import (
	"context"
	"strings"

	"github.com/google/uuid"

	types "github.com/traceloom/traceloom-backend/internal/domain"
	"github.com/traceloom/traceloom-backend/internal/platform/dbctx"
	"github.com/traceloom/traceloom-backend/internal/platform/llm"
)

const tesseractMaxTokens = 1024

type tesseractResult struct {
	Cells []struct {
		Step        string  `json:"step"`
		Polarity    float64 `json:"polarity"`
		Criticality string  `json:"criticality"`
		Evidence    string  `json:"evidence"`
	} `json:"cells"`
}

func validCriticality(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case types.CriticalityCritical:
		return types.CriticalityCritical
	case types.CriticalityMajor:
		return types.CriticalityMajor
	case types.CriticalityMinor:
		return types.CriticalityMinor
	default:
		return types.CriticalityInfo
	}
}

func clampPolarity(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

// BuildTesseract scores every D1 element against the merged concept context,
// one model call per element. The scorer is optional depth: a failed element
// is logged and skipped, and the venn finalizer falls back to membership-only
// classification for it.
func BuildTesseract(ctx context.Context, deps Deps, sessionID uuid.UUID, d1 []types.Element, outcome *types.MergeOutcome, onProgress func(done, total int)) ([]*types.TesseractCell, error) {
	if len(d1) == 0 {
		return nil, nil
	}

	owners := map[string]*types.Concept{}
	if outcome != nil {
		all := AllConcepts(outcome)
		for i := range all {
			for _, id := range all[i].SourceD1IDs {
				owners[id] = &all[i]
			}
		}
	}

	// Re-runs replace the previous matrix wholesale.
	if err := deps.Tesseract.DeleteBySession(dbctx.Context{Ctx: ctx}, sessionID); err != nil {
		deps.Log.Warn("failed to clear previous tesseract cells", "error", err)
	}

	var cells []*types.TesseractCell
	for i, el := range d1 {
		if ctx.Err() != nil {
			return cells, ctx.Err()
		}

		prompt := buildTesseractPrompt(el, owners[el.ID])
		raw, err := deps.AI.Complete(ctx, prompt, tesseractMaxTokens)
		if err != nil {
			deps.Log.Warn("tesseract scoring failed for element; skipping", "element_id", el.ID, "error", err)
			continue
		}
		var parsed tesseractResult
		if err := llm.DecodeObject(raw, &parsed); err != nil {
			deps.Log.Warn("tesseract output unparseable for element; skipping", "element_id", el.ID, "error", err)
			continue
		}

		for _, c := range parsed.Cells {
			step := strings.ToLower(strings.TrimSpace(c.Step))
			switch step {
			case types.TesseractStepCoverage, types.TesseractStepQuality, types.TesseractStepRisk:
			default:
				continue
			}
			cells = append(cells, &types.TesseractCell{
				ID:          uuid.New(),
				SessionID:   sessionID,
				ElementID:   el.ID,
				Step:        step,
				Polarity:    clampPolarity(c.Polarity),
				Criticality: validCriticality(c.Criticality),
				Evidence:    strings.TrimSpace(c.Evidence),
			})
		}

		if onProgress != nil {
			onProgress(i+1, len(d1))
		}
	}

	if len(cells) > 0 {
		if err := deps.Tesseract.CreateBatch(dbctx.Context{Ctx: ctx}, cells); err != nil {
			deps.Log.Warn("failed to persist tesseract cells", "error", err)
		}
	}
	return cells, nil
}
