package steps

import (
	"context"
	"errors"
	"fmt"
	"testing"

	types "github.com/traceloom/traceloom-backend/internal/domain"
)

func elems(ids ...string) []types.Element {
	out := make([]types.Element, 0, len(ids))
	for _, id := range ids {
		out = append(out, types.Element{ID: id, Label: "label " + id, Content: "content " + id})
	}
	return out
}

func TestExtractConceptsAssignsEveryElementOnce(t *testing.T) {
	ai := &fakeAI{responses: []string{`{
		"concepts": [
			{"label": "Auth", "description": "auth things", "element_ids": ["e1", "e2"]},
			{"label": "Storage", "description": "storage things", "element_ids": ["e2", "e3"]}
		]
	}`}}
	got, err := ExtractConcepts(context.Background(), testDeps(t, ai), types.Dataset1, elems("e1", "e2", "e3"))
	if err != nil {
		t.Fatalf("ExtractConcepts: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("concepts: want=2 got=%d", len(got))
	}
	// e2 is claimed by Auth first; Storage keeps only e3.
	if len(got[0].SourceD1IDs) != 2 || got[0].SourceD1IDs[0] != "e1" || got[0].SourceD1IDs[1] != "e2" {
		t.Fatalf("Auth ids: got=%v", got[0].SourceD1IDs)
	}
	if len(got[1].SourceD1IDs) != 1 || got[1].SourceD1IDs[0] != "e3" {
		t.Fatalf("Storage ids: got=%v", got[1].SourceD1IDs)
	}
	if err := VerifyCoverage(got, elems("e1", "e2", "e3"), types.Dataset1); err != nil {
		t.Fatalf("VerifyCoverage: %v", err)
	}
}

func TestExtractConceptsRecoversFencedJSON(t *testing.T) {
	ai := &fakeAI{responses: []string{"Here is the result:\n```json\n" +
		`{"concepts": [{"label": "Core", "element_ids": ["a"]}]}` +
		"\n```\nLet me know if you need anything else."}}
	got, err := ExtractConcepts(context.Background(), testDeps(t, ai), types.Dataset2, elems("a"))
	if err != nil {
		t.Fatalf("ExtractConcepts: %v", err)
	}
	if len(got) != 1 || len(got[0].SourceD2IDs) != 1 {
		t.Fatalf("unexpected concepts: %+v", got)
	}
}

func TestExtractConceptsSweepsUnplacedIntoUncategorized(t *testing.T) {
	ai := &fakeAI{responses: []string{`{"concepts": [{"label": "Partial", "element_ids": ["x1"]}]}`}}
	got, err := ExtractConcepts(context.Background(), testDeps(t, ai), types.Dataset1, elems("x1", "x2", "x3"))
	if err != nil {
		t.Fatalf("ExtractConcepts: %v", err)
	}
	last := got[len(got)-1]
	if last.Label != "Uncategorized" {
		t.Fatalf("trailing concept: want=Uncategorized got=%q", last.Label)
	}
	if len(last.SourceD1IDs) != 2 {
		t.Fatalf("swept ids: want=2 got=%v", last.SourceD1IDs)
	}
	if err := VerifyCoverage(got, elems("x1", "x2", "x3"), types.Dataset1); err != nil {
		t.Fatalf("VerifyCoverage: %v", err)
	}
}

func TestExtractConceptsDropsUnknownIDs(t *testing.T) {
	ai := &fakeAI{responses: []string{`{"concepts": [{"label": "Real", "element_ids": ["known", "made-up"]}]}`}}
	got, err := ExtractConcepts(context.Background(), testDeps(t, ai), types.Dataset1, elems("known"))
	if err != nil {
		t.Fatalf("ExtractConcepts: %v", err)
	}
	if len(got) != 1 || len(got[0].SourceD1IDs) != 1 || got[0].SourceD1IDs[0] != "known" {
		t.Fatalf("unexpected concepts: %+v", got)
	}
}

func TestExtractConceptsFailsWhenNothingResolves(t *testing.T) {
	ai := &fakeAI{responses: []string{`{"concepts": [{"label": "Ghost", "element_ids": ["nope"]}]}`}}
	_, err := ExtractConcepts(context.Background(), testDeps(t, ai), types.Dataset1, elems("real"))
	var extractErr *ExtractionError
	if !errors.As(err, &extractErr) {
		t.Fatalf("want ExtractionError, got %v", err)
	}
	if extractErr.Dataset != types.Dataset1 {
		t.Fatalf("dataset: got=%q", extractErr.Dataset)
	}
}

func TestExtractConceptsFailsOnUnparseableOutput(t *testing.T) {
	ai := &fakeAI{responses: []string{"I could not produce JSON this time, sorry."}}
	_, err := ExtractConcepts(context.Background(), testDeps(t, ai), types.Dataset2, elems("a"))
	var extractErr *ExtractionError
	if !errors.As(err, &extractErr) {
		t.Fatalf("want ExtractionError, got %v", err)
	}
}

func TestExtractConceptsEnforcesElementCap(t *testing.T) {
	t.Setenv("ALIGNMENT_MAX_ELEMENTS", "2")
	ai := &fakeAI{}
	_, err := ExtractConcepts(context.Background(), testDeps(t, ai), types.Dataset1, elems("a", "b", "c"))
	var extractErr *ExtractionError
	if !errors.As(err, &extractErr) {
		t.Fatalf("want ExtractionError, got %v", err)
	}
	if ai.calls != 0 {
		t.Fatalf("cap check must reject before calling the model, calls=%d", ai.calls)
	}
}

func TestExtractConceptsPropagatesClientError(t *testing.T) {
	ai := &fakeAI{err: fmt.Errorf("upstream 500")}
	_, err := ExtractConcepts(context.Background(), testDeps(t, ai), types.Dataset1, elems("a"))
	var extractErr *ExtractionError
	if !errors.As(err, &extractErr) {
		t.Fatalf("want ExtractionError, got %v", err)
	}
}
