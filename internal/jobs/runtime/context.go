package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	repos "github.com/traceloom/traceloom-backend/internal/data/repos/alignment"
	types "github.com/traceloom/traceloom-backend/internal/domain"
	"github.com/traceloom/traceloom-backend/internal/platform/dbctx"
	"github.com/traceloom/traceloom-backend/internal/services"
)

// Context is the execution handle for one claimed session run. It wraps the
// mutable alignment_session row, the repo that guards its transitions, and
// the notification side channel. Pipelines never write the session row
// directly; Progress/Fail/Succeed are the only sanctioned transitions, all
// guarded so a concurrent cancel is never overwritten.
type Context struct {
	Ctx     context.Context
	DB      *gorm.DB
	Session *types.AlignmentSession
	Repo    repos.SessionRepo
	Notify  services.SessionNotifier
	payload map[string]any
}

// NewContext constructs a runtime Context for a claimed session. The payload
// is decoded eagerly; a malformed payload is non-fatal here since pipelines
// validate their required fields anyway.
func NewContext(ctx context.Context, db *gorm.DB, session *types.AlignmentSession, repo repos.SessionRepo, notify services.SessionNotifier) *Context {
	c := &Context{
		Ctx:     ctx,
		DB:      db,
		Session: session,
		Repo:    repo,
		Notify:  notify,
	}
	_ = c.decodePayload()
	return c
}

func (c *Context) decodePayload() error {
	if c.Session == nil {
		return nil
	}
	if len(c.Session.Payload) == 0 {
		c.payload = map[string]any{}
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.Session.Payload, &m); err != nil {
		c.payload = map[string]any{}
		return err
	}
	c.payload = m
	return nil
}

// Payload returns the decoded session payload. Never nil.
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

// PayloadUUID reads a payload field and parses it as a UUID. Returns
// (uuid.Nil, false) when missing or unparseable.
func (c *Context) PayloadUUID(key string) (uuid.UUID, bool) {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(fmt.Sprint(v))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Canceled reports whether the session row has been moved to canceled out
// from under this run.
func (c *Context) Canceled() bool {
	if c == nil || c.Repo == nil || c.Session == nil || c.Session.ID == uuid.Nil {
		return false
	}
	current, err := c.Repo.GetByID(dbctx.Context{Ctx: c.Ctx}, c.Session.ID)
	if err != nil || current == nil {
		return false
	}
	return current.Status == types.SessionCanceled
}

// Progress publishes a non-terminal phase update: persists phase, progress,
// message and heartbeat, mirrors them in memory, and emits an SSE event.
func (c *Context) Progress(phase string, pct int, msg string) {
	if c == nil {
		return
	}
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	now := time.Now()

	if c.Repo != nil && c.Session != nil && c.Session.ID != uuid.Nil {
		ok, _ := c.Repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: ctx}, c.Session.ID, []string{types.SessionCanceled}, map[string]interface{}{
			"phase":        phase,
			"progress":     pct,
			"message":      msg,
			"heartbeat_at": now,
			"updated_at":   now,
		})
		if !ok {
			return
		}
	}

	if c.Session != nil {
		c.Session.Phase = phase
		c.Session.Progress = pct
		c.Session.Message = msg
		c.Session.HeartbeatAt = &now
		c.Session.UpdatedAt = now
	}

	if c.Notify != nil && c.Session != nil {
		c.Notify.SessionProgress(c.Session.OwnerUserID, c.Session, phase, pct, msg)
	}
}

// Fail marks the run terminally failed, clears the lock so another worker can
// retry, and emits a failed event. A canceled session is left untouched.
func (c *Context) Fail(phase string, err error) {
	if c == nil {
		return
	}
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	now := time.Now()
	msg := ""
	if err != nil {
		msg = err.Error()
	}

	if c.Repo != nil && c.Session != nil && c.Session.ID != uuid.Nil {
		ok, _ := c.Repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: ctx}, c.Session.ID, []string{types.SessionCanceled}, map[string]interface{}{
			"status":        types.SessionFailed,
			"phase":         phase,
			"message":       "",
			"error":         msg,
			"last_error_at": now,
			"locked_at":     nil,
			"updated_at":    now,
		})
		if !ok {
			return
		}
	}

	if c.Session != nil {
		c.Session.Status = types.SessionFailed
		c.Session.Phase = phase
		c.Session.Message = ""
		c.Session.Error = msg
		c.Session.LastErrorAt = &now
		c.Session.LockedAt = nil
		c.Session.UpdatedAt = now
	}

	if c.Notify != nil && c.Session != nil {
		c.Notify.SessionFailed(c.Session.OwnerUserID, c.Session, phase, msg)
	}
}

// Succeed marks the run terminally complete and persists a result payload.
// withWarnings routes graph write failures into a distinct terminal status
// without failing the run.
func (c *Context) Succeed(result any, withWarnings bool) {
	if c == nil {
		return
	}
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	now := time.Now()
	status := types.SessionCompleted
	if withWarnings {
		status = types.SessionCompletedWithWarnings
	}
	var res datatypes.JSON
	if result != nil {
		b, _ := json.Marshal(result)
		res = datatypes.JSON(b)
	}

	if c.Repo != nil && c.Session != nil && c.Session.ID != uuid.Nil {
		ok, _ := c.Repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: ctx}, c.Session.ID, []string{types.SessionCanceled}, map[string]interface{}{
			"status":       status,
			"phase":        types.PhaseCompleted,
			"progress":     100,
			"message":      "",
			"error":        "",
			"result":       res,
			"locked_at":    nil,
			"heartbeat_at": now,
			"updated_at":   now,
		})
		if !ok {
			return
		}
	}

	if c.Session != nil {
		c.Session.Status = status
		c.Session.Phase = types.PhaseCompleted
		c.Session.Progress = 100
		c.Session.Message = ""
		c.Session.Error = ""
		c.Session.Result = res
		c.Session.LockedAt = nil
		c.Session.HeartbeatAt = &now
		c.Session.UpdatedAt = now
	}

	if c.Notify != nil && c.Session != nil {
		c.Notify.SessionDone(c.Session.OwnerUserID, c.Session)
	}
}
