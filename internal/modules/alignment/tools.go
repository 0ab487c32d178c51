package alignment

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/traceloom/traceloom-backend/internal/data/blackboard"
	types "github.com/traceloom/traceloom-backend/internal/domain"
	"github.com/traceloom/traceloom-backend/internal/modules/alignment/steps"
	"github.com/traceloom/traceloom-backend/internal/platform/dbctx"
)

// Tool names exposed to the agent-driven orchestrator variant. The agent's
// decision loop lives elsewhere; this package only implements the operations
// it may invoke, on top of the same graph and venn primitives the batch
// pipeline uses.
const (
	ToolReadDatasetItem     = "read_dataset_item"
	ToolQueryKnowledgeGraph = "query_knowledge_graph"
	ToolGetConceptLinks     = "get_concept_links"
	ToolWriteBlackboard     = "write_blackboard"
	ToolReadBlackboard      = "read_blackboard"
	ToolCreateConcept       = "create_concept"
	ToolLinkConcepts        = "link_concepts"
	ToolRecordTesseractCell = "record_tesseract_cell"
	ToolFinalizeVenn        = "finalize_venn"
)

// ToolSpec describes one callable operation: its name and parameter schema.
type ToolSpec struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Params      map[string]string `json:"params"`
}

// ToolSpecs returns the full tool contract in a stable order.
func ToolSpecs() []ToolSpec {
	return []ToolSpec{
		{ToolReadDatasetItem, "Read one element from a dataset", map[string]string{"dataset": "string: dataset1|dataset2", "id": "string"}},
		{ToolQueryKnowledgeGraph, "List all graph nodes for the session", map[string]string{}},
		{ToolGetConceptLinks, "List edges attached to a concept node", map[string]string{"concept": "string"}},
		{ToolWriteBlackboard, "Write a shared scratch value", map[string]string{"key": "string", "value": "string"}},
		{ToolReadBlackboard, "Read a shared scratch value", map[string]string{"key": "string"}},
		{ToolCreateConcept, "Create a concept node with element edges", map[string]string{"label": "string", "description": "string", "d1_ids": "[]string", "d2_ids": "[]string"}},
		{ToolLinkConcepts, "Add element edges to an existing concept", map[string]string{"concept": "string", "d1_ids": "[]string", "d2_ids": "[]string"}},
		{ToolRecordTesseractCell, "Record one alignment score cell", map[string]string{"element_id": "string", "step": "string", "polarity": "float", "criticality": "string", "evidence": "string"}},
		{ToolFinalizeVenn, "Compute and persist the three-bucket classification from the current graph", map[string]string{}},
	}
}

// Toolset dispatches tool calls for one session.
type Toolset struct {
	deps       UsecasesDeps
	blackboard blackboard.Store
	sessionID  uuid.UUID
}

func NewToolset(deps UsecasesDeps, bb blackboard.Store, sessionID uuid.UUID) *Toolset {
	return &Toolset{deps: deps, blackboard: bb, sessionID: sessionID}
}

func argString(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func argStrings(args map[string]any, key string) []string {
	v, ok := args[key]
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func argFloat(args map[string]any, key string) float64 {
	v, ok := args[key]
	if !ok || v == nil {
		return 0
	}
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return 0
	}
}

// Dispatch executes one tool call. Unknown tool names and missing required
// parameters are caller errors, not pipeline failures.
func (t *Toolset) Dispatch(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case ToolReadDatasetItem:
		return t.readDatasetItem(ctx, args)
	case ToolQueryKnowledgeGraph:
		return t.deps.Graph.NodesBySession(ctx, t.sessionID)
	case ToolGetConceptLinks:
		concept := argString(args, "concept")
		if concept == "" {
			return nil, fmt.Errorf("get_concept_links: concept required")
		}
		return t.deps.Graph.ConceptLinks(ctx, t.sessionID, concept)
	case ToolWriteBlackboard:
		key := argString(args, "key")
		if key == "" {
			return nil, fmt.Errorf("write_blackboard: key required")
		}
		return nil, t.blackboard.Write(ctx, t.sessionID.String(), key, argString(args, "value"))
	case ToolReadBlackboard:
		key := argString(args, "key")
		if key == "" {
			return nil, fmt.Errorf("read_blackboard: key required")
		}
		v, ok, err := t.blackboard.Read(ctx, t.sessionID.String(), key)
		if err != nil {
			return nil, err
		}
		return map[string]any{"value": v, "found": ok}, nil
	case ToolCreateConcept:
		return t.createConcept(ctx, args)
	case ToolLinkConcepts:
		return t.linkConcepts(ctx, args)
	case ToolRecordTesseractCell:
		return t.recordTesseractCell(ctx, args)
	case ToolFinalizeVenn:
		return t.finalizeVenn(ctx)
	default:
		return nil, fmt.Errorf("unknown tool %q", name)
	}
}

func (t *Toolset) readDatasetItem(ctx context.Context, args map[string]any) (any, error) {
	dataset := argString(args, "dataset")
	id := argString(args, "id")
	if id == "" {
		return nil, fmt.Errorf("read_dataset_item: id required")
	}
	elems, err := t.deps.Source.List(ctx, t.sessionID, dataset)
	if err != nil {
		return nil, err
	}
	for _, el := range elems {
		if el.ID == id {
			return el, nil
		}
	}
	return nil, fmt.Errorf("read_dataset_item: %s not found in %s", id, dataset)
}

func (t *Toolset) conceptFromArgs(args map[string]any) types.Concept {
	return types.Concept{
		Label:       argString(args, "label"),
		Description: argString(args, "description"),
		SourceD1IDs: argStrings(args, "d1_ids"),
		SourceD2IDs: argStrings(args, "d2_ids"),
	}
}

// createConcept routes through the same graph synthesis the batch pipeline
// uses, so tag and color semantics stay identical.
func (t *Toolset) createConcept(ctx context.Context, args map[string]any) (any, error) {
	c := t.conceptFromArgs(args)
	if c.Label == "" {
		return nil, fmt.Errorf("create_concept: label required")
	}
	if c.IDCount() == 0 {
		return nil, fmt.Errorf("create_concept: at least one element id required")
	}

	outcome := &types.MergeOutcome{}
	switch {
	case len(c.SourceD1IDs) > 0 && len(c.SourceD2IDs) > 0:
		outcome.Merged = append(outcome.Merged, c)
	case len(c.SourceD2IDs) > 0:
		outcome.UnmergedD2 = append(outcome.UnmergedD2, c)
	default:
		outcome.UnmergedD1 = append(outcome.UnmergedD1, c)
	}

	stepDeps := steps.Deps{Log: t.deps.Log, Graph: t.deps.Graph}
	report := steps.SynthesizeGraph(ctx, stepDeps, t.sessionID, outcome)
	if report.Failed() > 0 {
		return report, fmt.Errorf("create_concept: %d writes failed", report.Failed())
	}
	return report, nil
}

func (t *Toolset) linkConcepts(ctx context.Context, args map[string]any) (any, error) {
	c := types.Concept{
		Label:       argString(args, "concept"),
		SourceD1IDs: argStrings(args, "d1_ids"),
		SourceD2IDs: argStrings(args, "d2_ids"),
	}
	if c.Label == "" {
		return nil, fmt.Errorf("link_concepts: concept required")
	}
	if c.IDCount() == 0 {
		return nil, fmt.Errorf("link_concepts: at least one element id required")
	}
	edges := steps.ConceptEdges(c)
	if err := t.deps.Graph.InsertEdges(ctx, t.sessionID, edges); err != nil {
		return nil, err
	}
	return map[string]any{"edges_written": len(edges)}, nil
}

func (t *Toolset) recordTesseractCell(ctx context.Context, args map[string]any) (any, error) {
	elementID := argString(args, "element_id")
	step := strings.ToLower(argString(args, "step"))
	if elementID == "" || step == "" {
		return nil, fmt.Errorf("record_tesseract_cell: element_id and step required")
	}
	cell := &types.TesseractCell{
		ID:          uuid.New(),
		SessionID:   t.sessionID,
		ElementID:   elementID,
		Step:        step,
		Polarity:    argFloat(args, "polarity"),
		Criticality: argString(args, "criticality"),
		Evidence:    argString(args, "evidence"),
	}
	if cell.Polarity < -1 {
		cell.Polarity = -1
	}
	if cell.Polarity > 1 {
		cell.Polarity = 1
	}
	if err := t.deps.Tesseract.CreateBatch(dbctx.Context{Ctx: ctx}, []*types.TesseractCell{cell}); err != nil {
		return nil, err
	}
	return cell, nil
}

// finalizeVenn reconstructs the concept sets from the session's graph and
// runs the same finalizer as the batch pipeline.
func (t *Toolset) finalizeVenn(ctx context.Context) (any, error) {
	d1, err := t.deps.Source.List(ctx, t.sessionID, types.Dataset1)
	if err != nil {
		return nil, err
	}
	d2, err := t.deps.Source.List(ctx, t.sessionID, types.Dataset2)
	if err != nil {
		return nil, err
	}

	d1Set := make(map[string]bool, len(d1))
	for _, el := range d1 {
		d1Set[el.ID] = true
	}

	nodes, err := t.deps.Graph.NodesBySession(ctx, t.sessionID)
	if err != nil {
		return nil, err
	}

	outcome := &types.MergeOutcome{}
	for _, node := range nodes {
		if node.NodeType != types.NodeConcept {
			continue
		}
		c := types.Concept{Label: node.Label, Description: node.Description}
		for _, id := range node.SourceElementIDs {
			if d1Set[id] {
				c.SourceD1IDs = append(c.SourceD1IDs, id)
			} else {
				c.SourceD2IDs = append(c.SourceD2IDs, id)
			}
		}
		switch {
		case len(c.SourceD1IDs) > 0 && len(c.SourceD2IDs) > 0:
			outcome.Merged = append(outcome.Merged, c)
		case len(c.SourceD2IDs) > 0:
			outcome.UnmergedD2 = append(outcome.UnmergedD2, c)
		default:
			outcome.UnmergedD1 = append(outcome.UnmergedD1, c)
		}
	}

	cells, err := t.deps.Tesseract.ListBySession(dbctx.Context{Ctx: ctx}, t.sessionID)
	if err != nil {
		t.deps.Log.Warn("tesseract cells unavailable for finalize_venn; classifying on membership only", "error", err)
		cells = nil
	}

	venn := steps.FinalizeVenn(outcome, d1, d2, cells)
	if _, err := t.deps.Venn.Replace(dbctx.Context{Ctx: ctx}, t.sessionID, venn); err != nil {
		return nil, err
	}
	return venn, nil
}
