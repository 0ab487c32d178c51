package alignment_build

import (
	"errors"
	"fmt"
	"time"

	types "github.com/traceloom/traceloom-backend/internal/domain"
	jobrt "github.com/traceloom/traceloom-backend/internal/jobs/runtime"
	alignmentmod "github.com/traceloom/traceloom-backend/internal/modules/alignment"
	"github.com/traceloom/traceloom-backend/internal/modules/alignment/steps"
	"github.com/traceloom/traceloom-backend/internal/platform/dbctx"
)

const heartbeatEvery = 30 * time.Second

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Session == nil {
		return nil
	}
	if p == nil || p.db == nil || p.log == nil || p.ai == nil || p.source == nil || p.sessions == nil || p.elements == nil || p.mergeLog == nil || p.tesseract == nil || p.venn == nil {
		jc.Fail(types.PhaseError, fmt.Errorf("alignment_build: pipeline not configured"))
		return nil
	}

	sessionID := jc.Session.ID

	// Heartbeat keeps the claim fresh so a slow LLM phase is not mistaken
	// for a dead worker.
	stopHeartbeat := make(chan struct{})
	go func() {
		ticker := time.NewTicker(heartbeatEvery)
		defer ticker.Stop()
		for {
			select {
			case <-stopHeartbeat:
				return
			case <-jc.Ctx.Done():
				return
			case <-ticker.C:
				if err := p.sessions.Heartbeat(dbctx.Context{Ctx: jc.Ctx}, sessionID); err != nil {
					p.log.Warn("heartbeat failed", "session_id", sessionID, "error", err)
				}
			}
		}
	}()
	defer close(stopHeartbeat)

	out, err := alignmentmod.New(alignmentmod.UsecasesDeps{
		Log:       p.log,
		AI:        p.ai,
		Source:    p.source,
		Graph:     p.graph,
		Sessions:  p.sessions,
		Elements:  p.elements,
		MergeLog:  p.mergeLog,
		Tesseract: p.tesseract,
		Venn:      p.venn,
	}).Build(jc.Ctx, alignmentmod.BuildInput{
		SessionID:   sessionID,
		OwnerUserID: jc.Session.OwnerUserID,
	}, jc.Progress)
	if err != nil {
		if errors.Is(err, alignmentmod.ErrAborted) {
			// The cancel already owns the row; Fail would be rejected by the
			// status guard anyway.
			p.log.Info("run aborted", "session_id", sessionID)
			return nil
		}
		jc.Fail(failurePhase(err), err)
		return nil
	}

	jc.Succeed(map[string]any{
		"session_id":    sessionID.String(),
		"d1_elements":   out.D1Elements,
		"d2_elements":   out.D2Elements,
		"merged_count":  out.MergedCount,
		"gap_count":     out.GapCount,
		"orphan_count":  out.OrphanCount,
		"graph_failed":  out.GraphReport.Failed(),
		"with_warnings": out.WithWarnings,
	}, out.WithWarnings)
	return nil
}

// failurePhase maps step errors to the phase the status row should show.
func failurePhase(err error) string {
	var extractErr *steps.ExtractionError
	if errors.As(err, &extractErr) {
		return types.PhaseExtracting
	}
	var parseErr *steps.MergeParseError
	if errors.As(err, &parseErr) {
		return types.PhaseMergingConcepts
	}
	var consErr *steps.ConservationError
	if errors.As(err, &consErr) {
		return types.PhaseMergingConcepts
	}
	return types.PhaseError
}
