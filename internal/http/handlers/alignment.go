package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	repos "github.com/traceloom/traceloom-backend/internal/data/repos/alignment"
	types "github.com/traceloom/traceloom-backend/internal/domain"
	"github.com/traceloom/traceloom-backend/internal/http/response"
	"github.com/traceloom/traceloom-backend/internal/platform/apierr"
	"github.com/traceloom/traceloom-backend/internal/platform/dbctx"
	"github.com/traceloom/traceloom-backend/internal/platform/envutil"
	"github.com/traceloom/traceloom-backend/internal/platform/logger"
	"github.com/traceloom/traceloom-backend/internal/services"
)

type SessionHandler struct {
	log      *logger.Logger
	sessions repos.SessionRepo
	elements repos.ElementRepo
	mergeLog repos.MergeLogRepo
	venn     repos.VennRepo
	notify   services.SessionNotifier
}

func NewSessionHandler(
	baseLog *logger.Logger,
	sessions repos.SessionRepo,
	elements repos.ElementRepo,
	mergeLog repos.MergeLogRepo,
	venn repos.VennRepo,
	notify services.SessionNotifier,
) *SessionHandler {
	return &SessionHandler{
		log:      baseLog.With("handler", "SessionHandler"),
		sessions: sessions,
		elements: elements,
		mergeLog: mergeLog,
		venn:     venn,
		notify:   notify,
	}
}

type createElementRequest struct {
	ID       string `json:"id" binding:"required"`
	Label    string `json:"label" binding:"required"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

type createSessionRequest struct {
	Title       string                 `json:"title"`
	OwnerUserID string                 `json:"owner_user_id" binding:"required"`
	Dataset1    []createElementRequest `json:"dataset1" binding:"required"`
	Dataset2    []createElementRequest `json:"dataset2" binding:"required"`
}

// POST /api/sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	ownerID, err := uuid.Parse(strings.TrimSpace(req.OwnerUserID))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_owner_user_id", err)
		return
	}
	if len(req.Dataset1) == 0 || len(req.Dataset2) == 0 {
		response.RespondError(c, http.StatusBadRequest, "empty_dataset", fmt.Errorf("both datasets must contain at least one element"))
		return
	}
	maxElements := envutil.Int("ALIGNMENT_MAX_ELEMENTS", 200)
	if len(req.Dataset1) > maxElements || len(req.Dataset2) > maxElements {
		response.RespondError(c, http.StatusBadRequest, "dataset_too_large", fmt.Errorf("each dataset is limited to %d elements", maxElements))
		return
	}
	if err := validateElementIDs(req.Dataset1); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_dataset1", err)
		return
	}
	if err := validateElementIDs(req.Dataset2); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_dataset2", err)
		return
	}

	payload, _ := json.Marshal(map[string]any{
		"d1_count": len(req.Dataset1),
		"d2_count": len(req.Dataset2),
	})
	session := &types.AlignmentSession{
		ID:          uuid.New(),
		OwnerUserID: ownerID,
		Title:       strings.TrimSpace(req.Title),
		Status:      types.SessionDraft,
		Phase:       types.PhaseIdle,
		Payload:     datatypes.JSON(payload),
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	if _, err := h.sessions.Create(dbc, session); err != nil {
		response.RespondError(c, http.StatusInternalServerError, "create_session_failed", err)
		return
	}

	rows := make([]*types.DatasetElement, 0, len(req.Dataset1)+len(req.Dataset2))
	rows = append(rows, toElementRows(session.ID, types.Dataset1, req.Dataset1)...)
	rows = append(rows, toElementRows(session.ID, types.Dataset2, req.Dataset2)...)
	if _, err := h.elements.CreateBatch(dbc, rows); err != nil {
		response.RespondError(c, http.StatusInternalServerError, "create_elements_failed", err)
		return
	}

	if h.notify != nil {
		h.notify.SessionCreated(ownerID, session)
	}
	c.JSON(http.StatusCreated, gin.H{"session": session})
}

// POST /api/sessions/:id/run
func (h *SessionHandler) RunSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	session, aerr := h.loadSession(dbc, sessionID)
	if aerr != nil {
		response.RespondAPIError(c, aerr)
		return
	}

	ok, err := h.sessions.UpdateFieldsUnlessStatus(dbc, sessionID,
		[]string{types.SessionQueued, types.SessionRunning},
		map[string]interface{}{
			"status":   types.SessionQueued,
			"phase":    types.PhaseIdle,
			"progress": 0,
			"message":  "",
			"error":    "",
		})
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "run_session_failed", err)
		return
	}
	if !ok {
		response.RespondError(c, http.StatusConflict, "session_already_running", fmt.Errorf("session %s is already queued or running", sessionID))
		return
	}

	session.Status = types.SessionQueued
	response.RespondOK(c, gin.H{"session": session})
}

// GET /api/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	session, aerr := h.loadSession(dbctx.Context{Ctx: c.Request.Context()}, sessionID)
	if aerr != nil {
		response.RespondAPIError(c, aerr)
		return
	}
	response.RespondOK(c, gin.H{"session": session})
}

// GET /api/sessions/:id/venn
func (h *SessionHandler) GetVenn(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	record, err := h.venn.GetBySession(dbctx.Context{Ctx: c.Request.Context()}, sessionID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "get_venn_failed", err)
		return
	}
	if record == nil {
		response.RespondError(c, http.StatusNotFound, "venn_not_found", fmt.Errorf("no venn result for session %s", sessionID))
		return
	}
	response.RespondOK(c, gin.H{"venn": record})
}

// GET /api/sessions/:id/merge-log
func (h *SessionHandler) GetMergeLog(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	entries, err := h.mergeLog.ListBySession(dbctx.Context{Ctx: c.Request.Context()}, sessionID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "get_merge_log_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"merge_log": entries})
}

// POST /api/sessions/:id/cancel
func (h *SessionHandler) CancelSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	ok, err := h.sessions.UpdateFieldsUnlessStatus(dbc, sessionID,
		[]string{types.SessionCompleted, types.SessionCompletedWithWarnings, types.SessionFailed, types.SessionCanceled},
		map[string]interface{}{
			"status":    types.SessionCanceled,
			"locked_at": nil,
		})
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "cancel_session_failed", err)
		return
	}
	if !ok {
		response.RespondError(c, http.StatusConflict, "session_not_cancelable", fmt.Errorf("session %s is already terminal", sessionID))
		return
	}

	session, err := h.sessions.GetByID(dbc, sessionID)
	if err == nil && session != nil && h.notify != nil {
		h.notify.SessionCanceled(session.OwnerUserID, session)
	}
	response.RespondOK(c, gin.H{"session": session})
}

func (h *SessionHandler) loadSession(dbc dbctx.Context, sessionID uuid.UUID) (*types.AlignmentSession, *apierr.Error) {
	session, err := h.sessions.GetByID(dbc, sessionID)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "get_session_failed", err)
	}
	if session == nil {
		return nil, apierr.New(http.StatusNotFound, "session_not_found", fmt.Errorf("session %s not found", sessionID))
	}
	return session, nil
}

func validateElementIDs(elems []createElementRequest) error {
	seen := make(map[string]bool, len(elems))
	for _, el := range elems {
		id := strings.TrimSpace(el.ID)
		if id == "" {
			return fmt.Errorf("element id must not be empty")
		}
		if seen[id] {
			return fmt.Errorf("duplicate element id %q", id)
		}
		seen[id] = true
	}
	return nil
}

func toElementRows(sessionID uuid.UUID, dataset string, elems []createElementRequest) []*types.DatasetElement {
	rows := make([]*types.DatasetElement, 0, len(elems))
	for i, el := range elems {
		rows = append(rows, &types.DatasetElement{
			ID:         uuid.New(),
			SessionID:  sessionID,
			Dataset:    dataset,
			ExternalID: strings.TrimSpace(el.ID),
			Label:      el.Label,
			Content:    el.Content,
			Category:   el.Category,
			Position:   i,
		})
	}
	return rows
}
