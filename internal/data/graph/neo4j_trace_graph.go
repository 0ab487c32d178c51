package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	types "github.com/traceloom/traceloom-backend/internal/domain"
	"github.com/traceloom/traceloom-backend/internal/platform/logger"
	"github.com/traceloom/traceloom-backend/internal/platform/neo4jdb"
)

// Store writes and reads the session-scoped traceability graph. Nodes are
// keyed by (session_id, node_type, key) so repeated upserts across retries
// cannot create duplicates and an element id reused across datasets — or
// colliding with a concept key — stays a distinct node; key is the element's
// external id for element nodes and the normalized label for concept nodes.
type Store struct {
	client *neo4jdb.Client
	log    *logger.Logger
}

func NewStore(client *neo4jdb.Client, baseLog *logger.Logger) *Store {
	return &Store{
		client: client,
		log:    baseLog.With("store", "TraceGraph"),
	}
}

func (s *Store) Available() bool {
	return s != nil && s.client != nil && s.client.Driver != nil
}

// NodeKey normalizes a concept label into its graph key.
func NodeKey(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

func (s *Store) session(ctx context.Context) neo4j.SessionWithContext {
	return s.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.client.Database,
	})
}

// EnsureSchema creates the uniqueness constraint and session index.
// Best-effort; restricted users may not be allowed to.
func (s *Store) EnsureSchema(ctx context.Context) {
	if !s.Available() {
		return
	}
	sess := s.session(ctx)
	defer sess.Close(ctx)

	for _, stmt := range []string{
		`CREATE CONSTRAINT trace_node_key_unique IF NOT EXISTS FOR (n:TraceNode) REQUIRE (n.session_id, n.node_type, n.key) IS UNIQUE`,
		`CREATE INDEX trace_node_session_idx IF NOT EXISTS FOR (n:TraceNode) ON (n.session_id)`,
	} {
		if res, err := sess.Run(ctx, stmt, nil); err != nil {
			s.log.Warn("neo4j schema init failed (continuing)", "error", err)
		} else {
			_, _ = res.Consume(ctx)
		}
	}
}

func nodeRecord(sessionID uuid.UUID, key string, n types.GraphNode, now string) map[string]any {
	return map[string]any{
		"session_id":         sessionID.String(),
		"key":                key,
		"id":                 n.ID,
		"label":              n.Label,
		"description":        n.Description,
		"node_type":          n.NodeType,
		"source_dataset":     n.SourceDataset,
		"source_element_ids": n.SourceElementIDs,
		"tag":                n.Tag,
		"color":              n.Color,
		"size":               int64(n.Size),
		"synced_at":          now,
	}
}

// UpsertElementNodes merges one node per raw element. Safe to call again with
// the same elements; the MERGE key absorbs retries.
func (s *Store) UpsertElementNodes(ctx context.Context, sessionID uuid.UUID, nodes []types.GraphNode) error {
	if !s.Available() {
		return nil
	}
	if sessionID == uuid.Nil {
		return fmt.Errorf("trace graph: missing sessionID")
	}
	if len(nodes) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	records := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		if len(n.SourceElementIDs) == 0 {
			continue
		}
		records = append(records, nodeRecord(sessionID, n.SourceElementIDs[0], n, now))
	}

	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
UNWIND $nodes AS n
MERGE (t:TraceNode {session_id: n.session_id, node_type: n.node_type, key: n.key})
SET t += n
`, map[string]any{"nodes": records})
		if err != nil {
			return nil, err
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	})
	return err
}

// UpsertConceptNode merges a single concept node keyed by its normalized
// label.
func (s *Store) UpsertConceptNode(ctx context.Context, sessionID uuid.UUID, node types.GraphNode) error {
	if !s.Available() {
		return nil
	}
	if sessionID == uuid.Nil {
		return fmt.Errorf("trace graph: missing sessionID")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	record := nodeRecord(sessionID, NodeKey(node.Label), node, now)

	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MERGE (t:TraceNode {session_id: $session_id, node_type: $node_type, key: $key})
SET t += $props
`, map[string]any{
			"session_id": record["session_id"],
			"node_type":  record["node_type"],
			"key":        record["key"],
			"props":      record,
		})
		if err != nil {
			return nil, err
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	})
	return err
}

// InsertEdges merges edges from element nodes to concept nodes. Source and
// target are addressed by (node_type, key) within the session: DEFINES runs
// from a first-dataset element to a concept, IMPLEMENTS from a
// second-dataset element to a concept.
func (s *Store) InsertEdges(ctx context.Context, sessionID uuid.UUID, edges []types.GraphEdge) error {
	if !s.Available() {
		return nil
	}
	if sessionID == uuid.Nil {
		return fmt.Errorf("trace graph: missing sessionID")
	}
	if len(edges) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	defines := make([]map[string]any, 0, len(edges))
	implements := make([]map[string]any, 0, len(edges))
	for _, e := range edges {
		if e.SourceNodeID == "" || e.TargetNodeID == "" {
			continue
		}
		rec := map[string]any{
			"session_id": sessionID.String(),
			"from_key":   e.SourceNodeID,
			"to_key":     e.TargetNodeID,
			"label":      e.Label,
			"weight":     e.Weight,
			"synced_at":  now,
		}
		switch e.EdgeType {
		case types.EdgeImplements:
			implements = append(implements, rec)
		default:
			defines = append(defines, rec)
		}
	}

	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if len(defines) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $rels AS r
MATCH (a:TraceNode {session_id: r.session_id, node_type: $from_type, key: r.from_key})
MATCH (b:TraceNode {session_id: r.session_id, node_type: $concept_type, key: r.to_key})
MERGE (a)-[e:DEFINES]->(b)
SET e.label = r.label,
    e.weight = r.weight,
    e.synced_at = r.synced_at
`, map[string]any{
				"rels":         defines,
				"from_type":    types.NodeD1Element,
				"concept_type": types.NodeConcept,
			})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		if len(implements) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $rels AS r
MATCH (a:TraceNode {session_id: r.session_id, node_type: $from_type, key: r.from_key})
MATCH (b:TraceNode {session_id: r.session_id, node_type: $concept_type, key: r.to_key})
MERGE (a)-[e:IMPLEMENTS]->(b)
SET e.label = r.label,
    e.weight = r.weight,
    e.synced_at = r.synced_at
`, map[string]any{
				"rels":         implements,
				"from_type":    types.NodeD2Element,
				"concept_type": types.NodeConcept,
			})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

// DeleteConceptNodes drops the session's concept nodes and their edges,
// leaving the element nodes in place. Ran before a synthesis pass so a rerun
// after a changed merge outcome cannot leave concepts from the previous pass
// behind.
func (s *Store) DeleteConceptNodes(ctx context.Context, sessionID uuid.UUID) error {
	if !s.Available() {
		return nil
	}
	if sessionID == uuid.Nil {
		return fmt.Errorf("trace graph: missing sessionID")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (t:TraceNode {session_id: $session_id, node_type: $node_type})
DETACH DELETE t
`, map[string]any{
			"session_id": sessionID.String(),
			"node_type":  types.NodeConcept,
		})
		if err != nil {
			return nil, err
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	})
	return err
}

// NodesBySession returns every node written for the session.
func (s *Store) NodesBySession(ctx context.Context, sessionID uuid.UUID) ([]types.GraphNode, error) {
	if !s.Available() {
		return nil, nil
	}
	if sessionID == uuid.Nil {
		return nil, fmt.Errorf("trace graph: missing sessionID")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	sess := s.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: s.client.Database,
	})
	defer sess.Close(ctx)

	out, err := sess.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (t:TraceNode {session_id: $session_id})
RETURN t.key AS key, t.id AS id, t.label AS label, t.description AS description,
       t.node_type AS node_type, t.source_dataset AS source_dataset,
       t.source_element_ids AS source_element_ids, t.tag AS tag,
       t.color AS color, t.size AS size
`, map[string]any{"session_id": sessionID.String()})
		if err != nil {
			return nil, err
		}
		var nodes []types.GraphNode
		for res.Next(ctx) {
			rec := res.Record()
			nodes = append(nodes, types.GraphNode{
				ID:               stringValue(rec, "id"),
				Label:            stringValue(rec, "label"),
				Description:      stringValue(rec, "description"),
				NodeType:         stringValue(rec, "node_type"),
				SourceDataset:    stringValue(rec, "source_dataset"),
				SourceElementIDs: stringSliceValue(rec, "source_element_ids"),
				Tag:              stringValue(rec, "tag"),
				Color:            stringValue(rec, "color"),
				Size:             int(intValue(rec, "size")),
			})
		}
		return nodes, res.Err()
	})
	if err != nil {
		return nil, err
	}
	nodes, _ := out.([]types.GraphNode)
	return nodes, nil
}

// ConceptLinks returns the edges attached to one concept node.
func (s *Store) ConceptLinks(ctx context.Context, sessionID uuid.UUID, conceptLabel string) ([]types.GraphEdge, error) {
	if !s.Available() {
		return nil, nil
	}
	if sessionID == uuid.Nil {
		return nil, fmt.Errorf("trace graph: missing sessionID")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	sess := s.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: s.client.Database,
	})
	defer sess.Close(ctx)

	out, err := sess.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (a:TraceNode {session_id: $session_id})-[e]->(b:TraceNode {session_id: $session_id, node_type: $node_type, key: $key})
RETURN a.key AS from_key, b.key AS to_key, type(e) AS edge_type, e.label AS label, e.weight AS weight
`, map[string]any{
			"session_id": sessionID.String(),
			"node_type":  types.NodeConcept,
			"key":        NodeKey(conceptLabel),
		})
		if err != nil {
			return nil, err
		}
		var edges []types.GraphEdge
		for res.Next(ctx) {
			rec := res.Record()
			edges = append(edges, types.GraphEdge{
				SourceNodeID: stringValue(rec, "from_key"),
				TargetNodeID: stringValue(rec, "to_key"),
				EdgeType:     strings.ToLower(stringValue(rec, "edge_type")),
				Label:        stringValue(rec, "label"),
				Weight:       floatValue(rec, "weight"),
			})
		}
		return edges, res.Err()
	})
	if err != nil {
		return nil, err
	}
	edges, _ := out.([]types.GraphEdge)
	return edges, nil
}

func stringValue(rec *neo4j.Record, key string) string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func stringSliceValue(rec *neo4j.Record, key string) []string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return nil
	}
	raw, _ := v.([]any)
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func intValue(rec *neo4j.Record, key string) int64 {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return 0
	}
	i, _ := v.(int64)
	return i
}

func floatValue(rec *neo4j.Record, key string) float64 {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return 0
	}
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	default:
		return 0
	}
}
