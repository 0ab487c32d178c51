package alignment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/traceloom/traceloom-backend/internal/data/repos/testutil"
	types "github.com/traceloom/traceloom-backend/internal/domain"
	"github.com/traceloom/traceloom-backend/internal/platform/dbctx"
)

func ptrTime(t time.Time) *time.Time { return &t }

func TestSessionRepoClaimAndGuards(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewSessionRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	owner := uuid.New()

	queued := &types.AlignmentSession{
		ID:          uuid.New(),
		OwnerUserID: owner,
		Title:       "queued run",
		Status:      types.SessionQueued,
		Phase:       types.PhaseIdle,
		Payload:     datatypes.JSON([]byte("{}")),
		CreatedAt:   now.Add(-3 * time.Hour),
		UpdatedAt:   now.Add(-3 * time.Hour),
	}
	failed := &types.AlignmentSession{
		ID:          uuid.New(),
		OwnerUserID: owner,
		Title:       "failed run",
		Status:      types.SessionFailed,
		Phase:       types.PhaseError,
		Attempts:    1,
		LastErrorAt: ptrTime(now.Add(-2 * time.Hour)),
		Payload:     datatypes.JSON([]byte("{}")),
		CreatedAt:   now.Add(-2 * time.Hour),
		UpdatedAt:   now.Add(-2 * time.Hour),
	}
	staleRunning := &types.AlignmentSession{
		ID:          uuid.New(),
		OwnerUserID: owner,
		Title:       "stale run",
		Status:      types.SessionRunning,
		Phase:       types.PhaseExtracting,
		HeartbeatAt: ptrTime(now.Add(-10 * time.Hour)),
		Payload:     datatypes.JSON([]byte("{}")),
		CreatedAt:   now.Add(-1 * time.Hour),
		UpdatedAt:   now.Add(-1 * time.Hour),
	}
	draft := &types.AlignmentSession{
		ID:          uuid.New(),
		OwnerUserID: owner,
		Title:       "draft, never enqueued",
		Status:      types.SessionDraft,
		Phase:       types.PhaseIdle,
		Payload:     datatypes.JSON([]byte("{}")),
		CreatedAt:   now.Add(-4 * time.Hour),
		UpdatedAt:   now.Add(-4 * time.Hour),
	}

	for _, s := range []*types.AlignmentSession{queued, failed, staleRunning, draft} {
		if _, err := repo.Create(dbc, s); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	got, err := repo.GetByID(dbc, queued.ID)
	if err != nil || got == nil || got.ID != queued.ID {
		t.Fatalf("GetByID: got=%v err=%v", got, err)
	}
	if missing, err := repo.GetByID(dbc, uuid.New()); err != nil || missing != nil {
		t.Fatalf("GetByID for unknown id: got=%v err=%v", missing, err)
	}

	// Claims walk created_at ASC over the runnable set. The draft is oldest
	// but never runnable, and the failed session stays terminal.
	first, err := repo.ClaimNextRunnable(dbc, 5, 2*time.Hour)
	if err != nil {
		t.Fatalf("ClaimNextRunnable: %v", err)
	}
	if first == nil || first.ID != queued.ID {
		t.Fatalf("first claim: want=%v got=%+v", queued.ID, first)
	}

	second, err := repo.ClaimNextRunnable(dbc, 5, 2*time.Hour)
	if err != nil || second == nil || second.ID != staleRunning.ID {
		t.Fatalf("second claim: got=%+v err=%v", second, err)
	}

	if third, err := repo.ClaimNextRunnable(dbc, 5, 2*time.Hour); err != nil || third != nil {
		t.Fatalf("third claim must find nothing, failed sessions are not retried: got=%+v err=%v", third, err)
	}

	// A claim bumps attempts and stamps the lock.
	claimed, err := repo.GetByID(dbc, queued.ID)
	if err != nil {
		t.Fatalf("GetByID after claim: %v", err)
	}
	if claimed.Status != types.SessionRunning || claimed.Attempts != 1 || claimed.LockedAt == nil {
		t.Fatalf("claimed row: %+v", claimed)
	}

	// The cancel guard wins over late pipeline writes.
	if err := repo.UpdateFields(dbc, queued.ID, map[string]interface{}{"status": types.SessionCanceled}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	ok, err := repo.UpdateFieldsUnlessStatus(dbc, queued.ID, []string{types.SessionCanceled}, map[string]interface{}{
		"status": types.SessionCompleted,
	})
	if err != nil {
		t.Fatalf("UpdateFieldsUnlessStatus: %v", err)
	}
	if ok {
		t.Fatal("guarded update must not touch a canceled session")
	}
	after, _ := repo.GetByID(dbc, queued.ID)
	if after.Status != types.SessionCanceled {
		t.Fatalf("status after guarded update: %q", after.Status)
	}

	// Heartbeat refreshes the stale-claim cutoff.
	if err := repo.Heartbeat(dbc, staleRunning.ID); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	beat, _ := repo.GetByID(dbc, staleRunning.ID)
	if beat.HeartbeatAt == nil || !beat.HeartbeatAt.After(now.Add(-time.Minute)) {
		t.Fatalf("heartbeat not refreshed: %+v", beat.HeartbeatAt)
	}
}

func TestSessionRepoClaimExcludesTerminalAndExhausted(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewSessionRepo(db, testutil.Logger(t))

	now := time.Now().UTC()

	// Failed sessions are terminal even with attempts to spare.
	failed := &types.AlignmentSession{
		ID:          uuid.New(),
		OwnerUserID: uuid.New(),
		Status:      types.SessionFailed,
		Phase:       types.PhaseError,
		Attempts:    1,
		LastErrorAt: ptrTime(now.Add(-time.Hour)),
		Payload:     datatypes.JSON([]byte("{}")),
	}
	// A stale running session that already burned its attempts stays down.
	exhausted := &types.AlignmentSession{
		ID:          uuid.New(),
		OwnerUserID: uuid.New(),
		Status:      types.SessionRunning,
		Phase:       types.PhaseExtracting,
		Attempts:    5,
		HeartbeatAt: ptrTime(now.Add(-10 * time.Hour)),
		Payload:     datatypes.JSON([]byte("{}")),
	}
	for _, s := range []*types.AlignmentSession{failed, exhausted} {
		if _, err := repo.Create(dbc, s); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	if got, err := repo.ClaimNextRunnable(dbc, 5, time.Hour); err != nil || got != nil {
		t.Fatalf("no session should be claimable: got=%+v err=%v", got, err)
	}
}
