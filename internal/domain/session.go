package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Session statuses.
const (
	SessionDraft                 = "draft"
	SessionQueued                = "queued"
	SessionRunning               = "running"
	SessionCompleted             = "completed"
	SessionCompletedWithWarnings = "completed_with_warnings"
	SessionFailed                = "failed"
	SessionCanceled              = "canceled"
)

// Pipeline phases, in execution order.
const (
	PhaseIdle              = "idle"
	PhaseCreatingNodes     = "creating_nodes"
	PhaseExtracting        = "extracting"
	PhaseMergingConcepts   = "merging_concepts"
	PhaseBuildingGraph     = "building_graph"
	PhaseBuildingTesseract = "building_tesseract"
	PhaseGeneratingVenn    = "generating_venn"
	PhaseCompleted         = "completed"
	PhaseError             = "error"
)

// AlignmentSession is both the audit session and the job-run row for one
// pipeline execution. Workers claim queued sessions; the pipeline reports
// progress and terminal state through it.
type AlignmentSession struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OwnerUserID uuid.UUID      `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	Title       string         `gorm:"column:title" json:"title"`
	Status      string         `gorm:"column:status;not null;index" json:"status"`
	Phase       string         `gorm:"column:phase;not null;index" json:"phase"`
	Progress    int            `gorm:"column:progress;not null;default:0" json:"progress"`
	Message     string         `gorm:"column:message" json:"message,omitempty"`
	Attempts    int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	Error       string         `gorm:"column:error" json:"error,omitempty"`
	LockedAt    *time.Time     `gorm:"column:locked_at;index" json:"locked_at,omitempty"`
	HeartbeatAt *time.Time     `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
	LastErrorAt *time.Time     `gorm:"column:last_error_at;index" json:"last_error_at,omitempty"`
	Payload     datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`
	Result      datatypes.JSON `gorm:"column:result;type:jsonb" json:"result"`
	CreatedAt   time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (AlignmentSession) TableName() string { return "alignment_session" }
