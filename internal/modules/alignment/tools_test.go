package alignment

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/traceloom/traceloom-backend/internal/data/blackboard"
	"github.com/traceloom/traceloom-backend/internal/data/elements"
	types "github.com/traceloom/traceloom-backend/internal/domain"
	"github.com/traceloom/traceloom-backend/internal/platform/logger"
)

func toolsetForTest(t *testing.T) *Toolset {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)

	source := &elements.StaticSource{
		D1: []types.Element{{ID: "d1-1", Label: "login flow", Content: "users sign in"}},
		D2: []types.Element{{ID: "d2-1", Label: "session handling", Content: "tokens issued"}},
	}
	deps := UsecasesDeps{Log: log, Source: source}
	return NewToolset(deps, blackboard.NewMemoryStore(), uuid.New())
}

func TestToolSpecsCoverDispatch(t *testing.T) {
	specs := ToolSpecs()
	if len(specs) != 9 {
		t.Fatalf("specs: want=9 got=%d", len(specs))
	}
	seen := map[string]bool{}
	for _, s := range specs {
		if s.Name == "" || s.Description == "" {
			t.Fatalf("incomplete spec: %+v", s)
		}
		if seen[s.Name] {
			t.Fatalf("duplicate tool %q", s.Name)
		}
		seen[s.Name] = true
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	ts := toolsetForTest(t)
	if _, err := ts.Dispatch(context.Background(), "launch_missiles", nil); err == nil {
		t.Fatal("unknown tool must error")
	}
}

func TestDispatchReadDatasetItem(t *testing.T) {
	ts := toolsetForTest(t)

	got, err := ts.Dispatch(context.Background(), ToolReadDatasetItem, map[string]any{
		"dataset": types.Dataset1,
		"id":      "d1-1",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	el, ok := got.(types.Element)
	if !ok || el.Label != "login flow" {
		t.Fatalf("result: %+v", got)
	}

	if _, err := ts.Dispatch(context.Background(), ToolReadDatasetItem, map[string]any{
		"dataset": types.Dataset2,
		"id":      "d1-1",
	}); err == nil {
		t.Fatal("wrong-dataset lookup must error")
	}
	if _, err := ts.Dispatch(context.Background(), ToolReadDatasetItem, map[string]any{
		"dataset": types.Dataset1,
	}); err == nil {
		t.Fatal("missing id must error")
	}
}

func TestDispatchBlackboardRoundTrip(t *testing.T) {
	ts := toolsetForTest(t)
	ctx := context.Background()

	if _, err := ts.Dispatch(ctx, ToolWriteBlackboard, map[string]any{
		"key":   "hypothesis",
		"value": "auth concepts overlap",
	}); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := ts.Dispatch(ctx, ToolReadBlackboard, map[string]any{"key": "hypothesis"})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	m, ok := got.(map[string]any)
	if !ok || m["found"] != true || m["value"] != "auth concepts overlap" {
		t.Fatalf("read result: %+v", got)
	}

	got, err = ts.Dispatch(ctx, ToolReadBlackboard, map[string]any{"key": "absent"})
	if err != nil {
		t.Fatalf("read absent: %v", err)
	}
	if m := got.(map[string]any); m["found"] != false {
		t.Fatalf("absent key: %+v", m)
	}

	if _, err := ts.Dispatch(ctx, ToolWriteBlackboard, map[string]any{"value": "no key"}); err == nil {
		t.Fatal("missing key must error")
	}
}

func TestDispatchCreateConceptValidation(t *testing.T) {
	ts := toolsetForTest(t)
	ctx := context.Background()

	if _, err := ts.Dispatch(ctx, ToolCreateConcept, map[string]any{
		"description": "no label",
		"d1_ids":      []any{"d1-1"},
	}); err == nil {
		t.Fatal("missing label must error")
	}
	if _, err := ts.Dispatch(ctx, ToolCreateConcept, map[string]any{
		"label": "empty concept",
	}); err == nil {
		t.Fatal("concept without element ids must error")
	}
}

func TestArgHelpers(t *testing.T) {
	args := map[string]any{
		"s":     "  padded  ",
		"list":  []any{"a", " b ", ""},
		"typed": []string{"x", "y"},
		"f":     2.5,
		"i":     3,
	}
	if got := argString(args, "s"); got != "padded" {
		t.Fatalf("argString: got=%q", got)
	}
	if got := argStrings(args, "list"); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("argStrings: got=%v", got)
	}
	if got := argStrings(args, "typed"); len(got) != 2 {
		t.Fatalf("argStrings typed: got=%v", got)
	}
	if got := argFloat(args, "f"); got != 2.5 {
		t.Fatalf("argFloat: got=%v", got)
	}
	if got := argFloat(args, "i"); got != 3 {
		t.Fatalf("argFloat int: got=%v", got)
	}
	if got := argString(args, "missing"); got != "" {
		t.Fatalf("missing arg: got=%q", got)
	}
}
