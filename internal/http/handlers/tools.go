package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/traceloom/traceloom-backend/internal/data/blackboard"
	"github.com/traceloom/traceloom-backend/internal/http/response"
	alignmentmod "github.com/traceloom/traceloom-backend/internal/modules/alignment"
	"github.com/traceloom/traceloom-backend/internal/platform/logger"
)

// ToolsHandler exposes the agent tool contract over HTTP: the spec listing
// plus a per-session dispatch endpoint.
type ToolsHandler struct {
	log        *logger.Logger
	deps       alignmentmod.UsecasesDeps
	blackboard blackboard.Store
}

func NewToolsHandler(baseLog *logger.Logger, deps alignmentmod.UsecasesDeps, bb blackboard.Store) *ToolsHandler {
	return &ToolsHandler{
		log:        baseLog.With("handler", "ToolsHandler"),
		deps:       deps,
		blackboard: bb,
	}
}

// GET /api/tools
func (h *ToolsHandler) ListTools(c *gin.Context) {
	response.RespondOK(c, gin.H{"tools": alignmentmod.ToolSpecs()})
}

// POST /api/sessions/:id/tools/:name
func (h *ToolsHandler) DispatchTool(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	name := c.Param("name")

	args := map[string]any{}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&args); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_args", err)
			return
		}
	}

	toolset := alignmentmod.NewToolset(h.deps, h.blackboard, sessionID)
	result, err := toolset.Dispatch(c.Request.Context(), name, args)
	if err != nil {
		h.log.Warn("tool dispatch failed", "session_id", sessionID, "tool", name, "error", err)
		response.RespondError(c, http.StatusBadRequest, "tool_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"tool": name, "result": result})
}
