package domain

import (
	"time"

	"github.com/google/uuid"
)

// Criticality levels for tesseract cells.
const (
	CriticalityCritical = "critical"
	CriticalityMajor    = "major"
	CriticalityMinor    = "minor"
	CriticalityInfo     = "info"
)

// Tesseract analysis steps. Pipeline-defined checkpoints, not a universal
// taxonomy.
const (
	TesseractStepCoverage = "coverage"
	TesseractStepQuality  = "quality"
	TesseractStepRisk     = "risk"
)

// TesseractCell is one per-element, per-step alignment score. Polarity is in
// [-1, 1]; negative values flag misalignment.
type TesseractCell struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SessionID   uuid.UUID `gorm:"type:uuid;not null;index" json:"session_id"`
	ElementID   string    `gorm:"column:element_id;not null;index" json:"element_id"`
	Step        string    `gorm:"column:step;not null" json:"step"`
	Polarity    float64   `gorm:"column:polarity;not null;default:0" json:"polarity"`
	Criticality string    `gorm:"column:criticality;not null" json:"criticality"`
	Evidence    string    `gorm:"column:evidence;type:text" json:"evidence,omitempty"`
	CreatedAt   time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (TesseractCell) TableName() string { return "tesseract_cell" }
