package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ClassifiedElement is one element placed into a venn bucket. For aligned
// elements, PairedWith names the counterpart concept members on the other
// side.
type ClassifiedElement struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Concept     string   `json:"concept"`
	Criticality string   `json:"criticality,omitempty"`
	Evidence    string   `json:"evidence,omitempty"`
	PairedWith  []string `json:"paired_with,omitempty"`
}

// VennSummary carries the aggregate coverage metrics.
type VennSummary struct {
	TotalD1Coverage float64 `json:"total_d1_coverage"`
	TotalD2Coverage float64 `json:"total_d2_coverage"`
	AlignmentScore  float64 `json:"alignment_score"`
}

// VennResult is the terminal artifact of a run: the three-bucket element
// classification with coverage metrics.
type VennResult struct {
	UniqueToD1 []ClassifiedElement `json:"unique_to_d1"`
	Aligned    []ClassifiedElement `json:"aligned"`
	UniqueToD2 []ClassifiedElement `json:"unique_to_d2"`
	Summary    VennSummary         `json:"summary"`
}

// VennRecord persists a VennResult. Re-runs supersede the previous record for
// the session.
type VennRecord struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SessionID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"session_id"`
	UniqueToD1 datatypes.JSON `gorm:"column:unique_to_d1;type:jsonb" json:"unique_to_d1"`
	Aligned    datatypes.JSON `gorm:"column:aligned;type:jsonb" json:"aligned"`
	UniqueToD2 datatypes.JSON `gorm:"column:unique_to_d2;type:jsonb" json:"unique_to_d2"`
	Summary    datatypes.JSON `gorm:"column:summary;type:jsonb" json:"summary"`
	CreatedAt  time.Time      `gorm:"not null;default:now();index" json:"created_at"`
}

func (VennRecord) TableName() string { return "venn_record" }
