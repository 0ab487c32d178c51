package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Concept is a named grouping of elements produced by extraction or by a
// merge round. Within one pipeline stage the id sets of all concepts are
// pairwise disjoint; the merger's conservation check depends on that.
type Concept struct {
	Label         string   `json:"label"`
	Description   string   `json:"description"`
	SourceD1IDs   []string `json:"source_d1_ids"`
	SourceD2IDs   []string `json:"source_d2_ids"`
	ElementLabels []string `json:"element_labels,omitempty"`
}

// IDCount is the concept's contribution to the conservation total.
func (c Concept) IDCount() int {
	return len(c.SourceD1IDs) + len(c.SourceD2IDs)
}

// MergeOutcome is the merger's output for one round: fused concepts plus the
// residual concepts carried forward unchanged, split by contributing side.
type MergeOutcome struct {
	Merged     []Concept    `json:"merged"`
	UnmergedD1 []Concept    `json:"unmerged_d1"`
	UnmergedD2 []Concept    `json:"unmerged_d2"`
	Log        []MergeEvent `json:"log"`
}

// MergeEvent records one accepted fusion. Audit only; later stages never
// consult it.
type MergeEvent struct {
	From []string `json:"from"`
	To   string   `json:"to"`
}

// MergeLogEntry persists a MergeEvent for the session's audit trail.
type MergeLogEntry struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SessionID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"session_id"`
	Round      int            `gorm:"column:round;not null" json:"round"`
	FromLabels datatypes.JSON `gorm:"column:from_labels;type:jsonb" json:"from_labels"`
	ToLabel    string         `gorm:"column:to_label;not null" json:"to_label"`
	CreatedAt  time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (MergeLogEntry) TableName() string { return "merge_log_entry" }
