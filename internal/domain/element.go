package domain

import (
	"time"

	"github.com/google/uuid"
)

// The two input collections. Dataset1 holds requirements/specifications,
// Dataset2 holds implementation artifacts.
const (
	Dataset1    = "dataset1"
	Dataset2    = "dataset2"
	DatasetBoth = "both"
)

// DatasetElement is a stored input artifact. Elements are immutable for the
// duration of a run; the pipeline only ever reads them.
type DatasetElement struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SessionID  uuid.UUID `gorm:"type:uuid;not null;index" json:"session_id"`
	Dataset    string    `gorm:"column:dataset;not null;index" json:"dataset"`
	ExternalID string    `gorm:"column:external_id;not null" json:"external_id"`
	Label      string    `gorm:"column:label;not null" json:"label"`
	Content    string    `gorm:"column:content;type:text" json:"content"`
	Category   string    `gorm:"column:category" json:"category,omitempty"`
	Position   int       `gorm:"column:position;not null;default:0" json:"position"`
	CreatedAt  time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (DatasetElement) TableName() string { return "dataset_element" }

// Element is the in-memory view handed to the pipeline stages.
type Element struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Content  string `json:"content"`
	Category string `json:"category,omitempty"`
}
