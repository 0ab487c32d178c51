package worker

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	repos "github.com/traceloom/traceloom-backend/internal/data/repos/alignment"
	jobrt "github.com/traceloom/traceloom-backend/internal/jobs/runtime"
	"github.com/traceloom/traceloom-backend/internal/platform/dbctx"
	"github.com/traceloom/traceloom-backend/internal/platform/envutil"
	"github.com/traceloom/traceloom-backend/internal/platform/logger"
	"github.com/traceloom/traceloom-backend/internal/services"
)

const (
	maxAttempts  = 5
	staleRunning = 2 * time.Minute
)

// Worker polls for runnable sessions and hands each claim to the pipeline
// handler. WORKER_CONCURRENCY controls how many claim loops run; the claim
// query's SKIP LOCKED keeps concurrent workers from double-running a session.
type Worker struct {
	db      *gorm.DB
	log     *logger.Logger
	repo    repos.SessionRepo
	handler jobrt.Handler
	notify  services.SessionNotifier
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, repo repos.SessionRepo, handler jobrt.Handler, notify services.SessionNotifier) *Worker {
	return &Worker{
		db:      db,
		log:     baseLog.With("component", "SessionWorker"),
		repo:    repo,
		handler: handler,
		notify:  notify,
	}
}

func (w *Worker) Start(ctx context.Context) {
	n := envutil.Int("WORKER_CONCURRENCY", 1)
	if n < 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		go w.loop(ctx)
	}
}

func (w *Worker) loop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			session, err := w.repo.ClaimNextRunnable(dbctx.Context{Ctx: ctx}, maxAttempts, staleRunning)
			if err != nil {
				w.log.Warn("ClaimNextRunnable failed", "error", err)
				continue
			}
			if session == nil {
				continue
			}
			jc := jobrt.NewContext(ctx, w.db, session, w.repo, w.notify)
			// Panics inside the pipeline must not take the loop down.
			func() {
				defer func() {
					if r := recover(); r != nil {
						w.log.Error("pipeline panic", "session_id", session.ID, "panic", r)
						jc.Fail("panic", fmt.Errorf("panic: %v", r))
					}
				}()
				if err := w.handler.Run(jc); err != nil {
					w.log.Error("pipeline returned error", "session_id", session.ID, "error", err)
				}
			}()
		}
	}
}
