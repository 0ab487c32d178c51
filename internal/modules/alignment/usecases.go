package alignment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/traceloom/traceloom-backend/internal/data/elements"
	graphstore "github.com/traceloom/traceloom-backend/internal/data/graph"
	repos "github.com/traceloom/traceloom-backend/internal/data/repos/alignment"
	types "github.com/traceloom/traceloom-backend/internal/domain"
	"github.com/traceloom/traceloom-backend/internal/modules/alignment/steps"
	"github.com/traceloom/traceloom-backend/internal/platform/dbctx"
	"github.com/traceloom/traceloom-backend/internal/platform/envutil"
	"github.com/traceloom/traceloom-backend/internal/platform/llm"
	"github.com/traceloom/traceloom-backend/internal/platform/logger"
)

type UsecasesDeps struct {
	Log       *logger.Logger
	AI        llm.Client
	Source    elements.Source
	Graph     *graphstore.Store
	Sessions  repos.SessionRepo
	Elements  repos.ElementRepo
	MergeLog  repos.MergeLogRepo
	Tesseract repos.TesseractRepo
	Venn      repos.VennRepo
}

type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) *Usecases {
	return &Usecases{deps: deps}
}

type BuildInput struct {
	SessionID   uuid.UUID
	OwnerUserID uuid.UUID
}

type BuildOutput struct {
	Venn         *types.VennResult       `json:"venn"`
	GraphReport  *types.GraphWriteReport `json:"graph_report"`
	D1Elements   int                     `json:"d1_elements"`
	D2Elements   int                     `json:"d2_elements"`
	MergedCount  int                     `json:"merged_count"`
	GapCount     int                     `json:"gap_count"`
	OrphanCount  int                     `json:"orphan_count"`
	WithWarnings bool                    `json:"with_warnings"`
}

// ProgressFunc receives one update per state transition plus intra-phase
// ticks. pct is monotone over the run.
type ProgressFunc func(phase string, pct int, message string)

// ErrAborted is returned from stage boundaries when cancellation was
// requested. A call already in flight is never preempted; the run only stops
// before starting the next stage.
var ErrAborted = fmt.Errorf("alignment run aborted")

func (u *Usecases) aborted(ctx context.Context, sessionID uuid.UUID) bool {
	if ctx.Err() != nil {
		return true
	}
	session, err := u.deps.Sessions.GetByID(dbctx.Context{Ctx: ctx}, sessionID)
	if err != nil {
		// Session status is advisory here; a read failure must not kill a
		// healthy run.
		u.deps.Log.Warn("abort check failed; continuing", "error", err)
		return false
	}
	return session != nil && session.Status == types.SessionCanceled
}

// Build runs the full alignment pipeline for one session:
// creating_nodes -> extracting -> merging_concepts -> building_graph ->
// building_tesseract -> generating_venn -> completed.
// Any fatal stage error aborts the remaining stages and propagates.
func (u *Usecases) Build(ctx context.Context, input BuildInput, progress ProgressFunc) (*BuildOutput, error) {
	log := u.deps.Log.With("session_id", input.SessionID.String())
	if progress == nil {
		progress = func(string, int, string) {}
	}

	stepDeps := steps.Deps{
		Log:       log,
		AI:        u.deps.AI,
		Graph:     u.deps.Graph,
		Sessions:  u.deps.Sessions,
		Elements:  u.deps.Elements,
		MergeLog:  u.deps.MergeLog,
		Tesseract: u.deps.Tesseract,
		Venn:      u.deps.Venn,
	}

	// ---- creating_nodes ----
	progress(types.PhaseCreatingNodes, 2, "Loading input elements")

	d1, err := u.deps.Source.List(ctx, input.SessionID, types.Dataset1)
	if err != nil {
		return nil, fmt.Errorf("load dataset1 elements: %w", err)
	}
	d2, err := u.deps.Source.List(ctx, input.SessionID, types.Dataset2)
	if err != nil {
		return nil, fmt.Errorf("load dataset2 elements: %w", err)
	}
	if len(d1) == 0 || len(d2) == 0 {
		return nil, fmt.Errorf("both datasets are required: dataset1=%d dataset2=%d elements", len(d1), len(d2))
	}

	// Raw elements become explorable before extraction ever runs; this write
	// is idempotent across retries.
	u.deps.Graph.EnsureSchema(ctx)
	if err := u.deps.Graph.UpsertElementNodes(ctx, input.SessionID, steps.ElementNodes(d1, d2)); err != nil {
		log.Warn("element node upsert failed; raw elements will not be explorable until graph build", "error", err)
	}
	progress(types.PhaseCreatingNodes, 8, fmt.Sprintf("Created %d element nodes", len(d1)+len(d2)))

	if u.aborted(ctx, input.SessionID) {
		return nil, ErrAborted
	}

	// ---- extracting (the only true parallelism in the pipeline) ----
	progress(types.PhaseExtracting, 10, "Extracting concepts from both datasets")

	var d1Concepts, d2Concepts []types.Concept
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		concepts, err := steps.ExtractConcepts(egCtx, stepDeps, types.Dataset1, d1)
		if err != nil {
			return err
		}
		d1Concepts = concepts
		return nil
	})
	eg.Go(func() error {
		concepts, err := steps.ExtractConcepts(egCtx, stepDeps, types.Dataset2, d2)
		if err != nil {
			return err
		}
		d2Concepts = concepts
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	progress(types.PhaseExtracting, 35, fmt.Sprintf("Extracted %d + %d concepts", len(d1Concepts), len(d2Concepts)))

	if u.aborted(ctx, input.SessionID) {
		return nil, ErrAborted
	}

	// ---- merging_concepts ----
	rounds, err := steps.LoadMergeRounds()
	if err != nil {
		return nil, err
	}

	current := append(append([]types.Concept{}, d1Concepts...), d2Concepts...)
	var outcome *types.MergeOutcome
	for i, round := range rounds {
		pct := 35 + (i+1)*20/len(rounds)
		progress(types.PhaseMergingConcepts, 35+i*20/len(rounds), fmt.Sprintf("Merge round %d: %s", round.Number, round.Name))

		outcome, err = steps.MergeConceptsRound(ctx, stepDeps, round, current)
		if err != nil {
			return nil, err
		}
		if len(outcome.Log) > 0 {
			if err := u.deps.MergeLog.Record(dbctx.Context{Ctx: ctx}, input.SessionID, round.Number, outcome.Log); err != nil {
				log.Warn("failed to persist merge log", "round", round.Number, "error", err)
			}
		}
		current = steps.AllConcepts(outcome)
		progress(types.PhaseMergingConcepts, pct, fmt.Sprintf("Round %d done: %d merged, %d gaps, %d orphans",
			round.Number, len(outcome.Merged), len(outcome.UnmergedD1), len(outcome.UnmergedD2)))

		if u.aborted(ctx, input.SessionID) {
			return nil, ErrAborted
		}
	}

	// ---- building_graph ----
	progress(types.PhaseBuildingGraph, 55, "Building traceability graph")
	report := steps.SynthesizeGraph(ctx, stepDeps, input.SessionID, outcome)
	progress(types.PhaseBuildingGraph, 70, fmt.Sprintf("Graph built: %d nodes, %d edges, %d failed writes",
		report.NodesWritten, report.EdgesWritten, report.Failed()))

	if u.aborted(ctx, input.SessionID) {
		return nil, ErrAborted
	}

	// ---- building_tesseract ----
	progress(types.PhaseBuildingTesseract, 70, "Scoring elements")
	var cells []*types.TesseractCell
	if envutil.Bool("ALIGNMENT_TESSERACT_ENABLED", true) {
		// Per-element ticks are numerous; the reporter keeps them monotone
		// and throttled before they reach the session row and SSE stream.
		reporter := steps.NewProgressReporter(types.PhaseBuildingTesseract, progress, 70, 2*time.Second)
		tessReporter := func(done, total int) {
			reporter.UpdateRange(done, total, 70, 85, fmt.Sprintf("Scored %d/%d elements", done, total))
		}
		cells, err = steps.BuildTesseract(ctx, stepDeps, input.SessionID, d1, outcome, tessReporter)
		if err != nil {
			// Only context cancellation surfaces here; per-element failures
			// were already skipped inside the step.
			return nil, err
		}
	}
	progress(types.PhaseBuildingTesseract, 85, fmt.Sprintf("Recorded %d tesseract cells", len(cells)))

	if u.aborted(ctx, input.SessionID) {
		return nil, ErrAborted
	}

	// ---- generating_venn ----
	progress(types.PhaseGeneratingVenn, 85, "Classifying elements")
	venn := steps.FinalizeVenn(outcome, d1, d2, cells)
	if _, err := u.deps.Venn.Replace(dbctx.Context{Ctx: ctx}, input.SessionID, venn); err != nil {
		return nil, fmt.Errorf("persist venn result: %w", err)
	}
	progress(types.PhaseGeneratingVenn, 95, fmt.Sprintf("Classified: %d unique-to-D1, %d aligned, %d unique-to-D2",
		len(venn.UniqueToD1), len(venn.Aligned), len(venn.UniqueToD2)))

	withWarnings := report.Failed() > 0 && envutil.Bool("ALIGNMENT_WARN_ON_GRAPH_ERRORS", true)

	return &BuildOutput{
		Venn:         venn,
		GraphReport:  report,
		D1Elements:   len(d1),
		D2Elements:   len(d2),
		MergedCount:  len(outcome.Merged),
		GapCount:     len(outcome.UnmergedD1),
		OrphanCount:  len(outcome.UnmergedD2),
		WithWarnings: withWarnings,
	}, nil
}
