package domain

// Graph node types.
const (
	NodeD1Element = "d1_element"
	NodeD2Element = "d2_element"
	NodeConcept   = "concept"
)

// Concept node tags for residual concepts. A gap is a requirement nobody
// implemented; an orphan is an implementation nobody specified.
const (
	TagGap    = "gap"
	TagOrphan = "orphan"
)

// Edge types. DEFINES runs from a dataset1 element into a concept,
// IMPLEMENTS from a dataset2 element.
const (
	EdgeDefines    = "defines"
	EdgeImplements = "implements"
)

// GraphNode is one node of the traceability graph: either a raw element or a
// concept. Element nodes are created eagerly at run start; concept nodes
// after merge.
type GraphNode struct {
	ID               string         `json:"id"`
	Label            string         `json:"label"`
	Description      string         `json:"description,omitempty"`
	NodeType         string         `json:"node_type"`
	SourceDataset    string         `json:"source_dataset"`
	SourceElementIDs []string       `json:"source_element_ids"`
	Tag              string         `json:"tag,omitempty"`
	Color            string         `json:"color,omitempty"`
	Size             int            `json:"size,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// GraphEdge always points from an element node to a concept node.
type GraphEdge struct {
	SourceNodeID string  `json:"source_node_id"`
	TargetNodeID string  `json:"target_node_id"`
	EdgeType     string  `json:"edge_type"`
	Label        string  `json:"label,omitempty"`
	Weight       float64 `json:"weight,omitempty"`
}

// GraphWriteError is one failed node or edge write, kept so the orchestrator
// can decide whether a run with a partial graph still counts as completed.
type GraphWriteError struct {
	Kind string `json:"kind"` // "node" or "edge"
	Key  string `json:"key"`
	Err  string `json:"error"`
}

// GraphWriteReport collects the per-write outcomes of one synthesis pass.
type GraphWriteReport struct {
	NodesWritten int               `json:"nodes_written"`
	EdgesWritten int               `json:"edges_written"`
	Errors       []GraphWriteError `json:"errors,omitempty"`
}

func (r *GraphWriteReport) Failed() int {
	if r == nil {
		return 0
	}
	return len(r.Errors)
}
