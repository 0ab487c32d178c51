package steps

import (
	"fmt"

	graphstore "github.com/traceloom/traceloom-backend/internal/data/graph"
	repos "github.com/traceloom/traceloom-backend/internal/data/repos/alignment"
	"github.com/traceloom/traceloom-backend/internal/platform/llm"
	"github.com/traceloom/traceloom-backend/internal/platform/logger"
)

// Deps carries everything a pipeline step may touch. Steps never reach for
// globals; the orchestrator owns the wiring.
type Deps struct {
	Log       *logger.Logger
	AI        llm.Client
	Graph     *graphstore.Store
	Sessions  repos.SessionRepo
	Elements  repos.ElementRepo
	MergeLog  repos.MergeLogRepo
	Tesseract repos.TesseractRepo
	Venn      repos.VennRepo
}

// ExtractionError is a dataset-scoped fatal failure: the network call failed
// or the model output stayed unparseable after recovery. Extraction never
// degrades to an empty concept set, since that would silently break coverage
// downstream.
type ExtractionError struct {
	Dataset string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s: %v", e.Dataset, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// MergeParseError is a fatal failure of one merge round.
type MergeParseError struct {
	Round int
	Err   error
}

func (e *MergeParseError) Error() string {
	return fmt.Sprintf("merge round %d: unparseable model output: %v", e.Round, e.Err)
}

func (e *MergeParseError) Unwrap() error { return e.Err }

// ConservationError reports that a merge round changed the total element-id
// count. That means elements were silently dropped or duplicated, which in a
// traceability tool is a hard failure, not a warning.
type ConservationError struct {
	Round  int
	WantD1 int
	WantD2 int
	GotD1  int
	GotD2  int
}

func (e *ConservationError) Error() string {
	return fmt.Sprintf(
		"merge round %d violated conservation: input %d D1 + %d D2 ids, output %d D1 + %d D2 ids",
		e.Round, e.WantD1, e.WantD2, e.GotD1, e.GotD2,
	)
}
