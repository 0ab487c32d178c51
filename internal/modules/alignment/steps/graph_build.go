package steps

import (
	"context"

	"github.com/google/uuid"

	graphstore "github.com/traceloom/traceloom-backend/internal/data/graph"
	types "github.com/traceloom/traceloom-backend/internal/domain"
)

// Node colors in the explorer UI.
const (
	colorD1      = "#4f83cc"
	colorD2      = "#58a55c"
	colorConcept = "#8e6cc2"
	colorGap     = "#d9822b"
	colorOrphan  = "#c94f4f"
)

// ElementNodes builds one graph node per raw element. Called before
// extraction so raw elements are explorable even if the run later fails.
func ElementNodes(d1, d2 []types.Element) []types.GraphNode {
	out := make([]types.GraphNode, 0, len(d1)+len(d2))
	for _, el := range d1 {
		out = append(out, types.GraphNode{
			ID:               el.ID,
			Label:            el.Label,
			Description:      truncateContent(el.Content, elementContentBudget),
			NodeType:         types.NodeD1Element,
			SourceDataset:    types.Dataset1,
			SourceElementIDs: []string{el.ID},
			Color:            colorD1,
			Size:             1,
		})
	}
	for _, el := range d2 {
		out = append(out, types.GraphNode{
			ID:               el.ID,
			Label:            el.Label,
			Description:      truncateContent(el.Content, elementContentBudget),
			NodeType:         types.NodeD2Element,
			SourceDataset:    types.Dataset2,
			SourceElementIDs: []string{el.ID},
			Color:            colorD2,
			Size:             1,
		})
	}
	return out
}

func conceptNode(c types.Concept, tag string) types.GraphNode {
	ids := make([]string, 0, c.IDCount())
	ids = append(ids, c.SourceD1IDs...)
	ids = append(ids, c.SourceD2IDs...)

	dataset := types.DatasetBoth
	color := colorConcept
	switch {
	case len(c.SourceD2IDs) == 0:
		dataset = types.Dataset1
	case len(c.SourceD1IDs) == 0:
		dataset = types.Dataset2
	}
	switch tag {
	case types.TagGap:
		color = colorGap
	case types.TagOrphan:
		color = colorOrphan
	}

	return types.GraphNode{
		ID:               graphstore.NodeKey(c.Label),
		Label:            c.Label,
		Description:      c.Description,
		NodeType:         types.NodeConcept,
		SourceDataset:    dataset,
		SourceElementIDs: ids,
		Tag:              tag,
		Color:            color,
		Size:             c.IDCount(),
	}
}

func ConceptEdges(c types.Concept) []types.GraphEdge {
	key := graphstore.NodeKey(c.Label)
	edges := make([]types.GraphEdge, 0, c.IDCount())
	for _, id := range c.SourceD1IDs {
		edges = append(edges, types.GraphEdge{
			SourceNodeID: id,
			TargetNodeID: key,
			EdgeType:     types.EdgeDefines,
			Weight:       1,
		})
	}
	for _, id := range c.SourceD2IDs {
		edges = append(edges, types.GraphEdge{
			SourceNodeID: id,
			TargetNodeID: key,
			EdgeType:     types.EdgeImplements,
			Weight:       1,
		})
	}
	return edges
}

// SynthesizeGraph materializes the merge outcome as concept nodes and
// element-to-concept edges. Writes are sequential and individually
// best-effort: a failed write lands in the report instead of aborting the
// pass, and the orchestrator decides what the collected failures mean for
// the run.
func SynthesizeGraph(ctx context.Context, deps Deps, sessionID uuid.UUID, outcome *types.MergeOutcome) *types.GraphWriteReport {
	report := &types.GraphWriteReport{}
	if outcome == nil || !deps.Graph.Available() {
		return report
	}

	// Drop the previous pass's concept nodes so a rerun reflects the current
	// merge outcome only. Element nodes survive; they are upserted earlier and
	// never change shape.
	if err := deps.Graph.DeleteConceptNodes(ctx, sessionID); err != nil {
		deps.Log.Warn("concept wipe failed; writing over previous pass", "error", err)
		report.Errors = append(report.Errors, types.GraphWriteError{
			Kind: "wipe",
			Key:  "concepts",
			Err:  err.Error(),
		})
	}

	write := func(c types.Concept, tag string) {
		node := conceptNode(c, tag)
		if err := deps.Graph.UpsertConceptNode(ctx, sessionID, node); err != nil {
			deps.Log.Warn("concept node write failed; skipping", "concept", c.Label, "error", err)
			report.Errors = append(report.Errors, types.GraphWriteError{
				Kind: "node",
				Key:  node.ID,
				Err:  err.Error(),
			})
			return
		}
		report.NodesWritten++

		edges := ConceptEdges(c)
		if err := deps.Graph.InsertEdges(ctx, sessionID, edges); err != nil {
			deps.Log.Warn("concept edge write failed; skipping", "concept", c.Label, "error", err)
			report.Errors = append(report.Errors, types.GraphWriteError{
				Kind: "edge",
				Key:  node.ID,
				Err:  err.Error(),
			})
			return
		}
		report.EdgesWritten += len(edges)
	}

	for _, c := range outcome.Merged {
		write(c, "")
	}
	for _, c := range outcome.UnmergedD1 {
		write(c, types.TagGap)
	}
	for _, c := range outcome.UnmergedD2 {
		write(c, types.TagOrphan)
	}

	return report
}
