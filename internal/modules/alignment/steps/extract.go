package steps

import (
	"context"
	"fmt"
	"strings"

	types "github.com/traceloom/traceloom-backend/internal/domain"
	"github.com/traceloom/traceloom-backend/internal/platform/envutil"
	"github.com/traceloom/traceloom-backend/internal/platform/llm"
)

const extractionMaxTokens = 4096

type extractionResult struct {
	Concepts []struct {
		Label       string   `json:"label"`
		Description string   `json:"description"`
		ElementIDs  []string `json:"element_ids"`
	} `json:"concepts"`
}

// ExtractConcepts turns one dataset's elements into a covering concept set.
// Guarantees on success: at least one concept, every returned id belongs to
// the input set, and every input id appears in exactly one concept. Ids the
// model never placed anywhere are gathered into a trailing "Uncategorized"
// concept rather than dropped.
func ExtractConcepts(ctx context.Context, deps Deps, dataset string, elems []types.Element) ([]types.Concept, error) {
	if len(elems) == 0 {
		return []types.Concept{}, nil
	}

	maxElements := envutil.Int("ALIGNMENT_MAX_ELEMENTS", 200)
	if maxElements > 0 && len(elems) > maxElements {
		return nil, &ExtractionError{Dataset: dataset, Err: fmt.Errorf("%d elements exceeds limit %d", len(elems), maxElements)}
	}

	prompt := buildExtractionPrompt(dataset, elems)
	raw, err := deps.AI.Complete(ctx, prompt, extractionMaxTokens)
	if err != nil {
		return nil, &ExtractionError{Dataset: dataset, Err: err}
	}

	var parsed extractionResult
	if err := llm.DecodeObject(raw, &parsed); err != nil {
		return nil, &ExtractionError{Dataset: dataset, Err: err}
	}
	if len(parsed.Concepts) == 0 {
		return nil, &ExtractionError{Dataset: dataset, Err: fmt.Errorf("model proposed no concepts")}
	}

	byID := make(map[string]types.Element, len(elems))
	for _, el := range elems {
		byID[el.ID] = el
	}

	// Each id belongs to exactly one concept; the first concept to claim it
	// wins, and unknown ids are dropped.
	claimed := make(map[string]bool, len(elems))
	concepts := make([]types.Concept, 0, len(parsed.Concepts))
	for _, pc := range parsed.Concepts {
		label := strings.TrimSpace(pc.Label)
		if label == "" {
			continue
		}
		c := types.Concept{
			Label:       label,
			Description: strings.TrimSpace(pc.Description),
		}
		for _, id := range pc.ElementIDs {
			id = strings.TrimSpace(id)
			el, known := byID[id]
			if !known || claimed[id] {
				continue
			}
			claimed[id] = true
			c.ElementLabels = append(c.ElementLabels, el.Label)
			if dataset == types.Dataset2 {
				c.SourceD2IDs = append(c.SourceD2IDs, id)
			} else {
				c.SourceD1IDs = append(c.SourceD1IDs, id)
			}
		}
		if c.IDCount() == 0 {
			continue
		}
		concepts = append(concepts, c)
	}
	if len(concepts) == 0 {
		return nil, &ExtractionError{Dataset: dataset, Err: fmt.Errorf("no proposed concept referenced a known element id")}
	}

	// Coverage repair: sweep up ids the model never placed.
	var missing types.Concept
	for _, el := range elems {
		if claimed[el.ID] {
			continue
		}
		missing.ElementLabels = append(missing.ElementLabels, el.Label)
		if dataset == types.Dataset2 {
			missing.SourceD2IDs = append(missing.SourceD2IDs, el.ID)
		} else {
			missing.SourceD1IDs = append(missing.SourceD1IDs, el.ID)
		}
	}
	if missing.IDCount() > 0 {
		missing.Label = "Uncategorized"
		missing.Description = "Elements the model did not place into any concept"
		concepts = append(concepts, missing)
		deps.Log.Warn("extraction left elements unplaced; swept into Uncategorized",
			"dataset", dataset,
			"count", missing.IDCount(),
		)
	}

	return concepts, nil
}

// VerifyCoverage checks that the union of concept id sets equals the input
// id set. Extraction output always passes; this guards later callers that
// assemble concept sets by hand (the agentic tools).
func VerifyCoverage(concepts []types.Concept, elems []types.Element, dataset string) error {
	seen := map[string]bool{}
	for _, c := range concepts {
		ids := c.SourceD1IDs
		if dataset == types.Dataset2 {
			ids = c.SourceD2IDs
		}
		for _, id := range ids {
			seen[id] = true
		}
	}
	for _, el := range elems {
		if !seen[el.ID] {
			return fmt.Errorf("element %s is absent from every concept", el.ID)
		}
	}
	return nil
}
