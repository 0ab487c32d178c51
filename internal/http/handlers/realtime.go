package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/traceloom/traceloom-backend/internal/platform/logger"
	"github.com/traceloom/traceloom-backend/internal/realtime"
)

type RealtimeHandler struct {
	Log *logger.Logger
	Hub *realtime.SSEHub
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub) *RealtimeHandler {
	return &RealtimeHandler{Log: log, Hub: hub}
}

// GET /sse/stream?user_id=<uuid>
//
// The stream subscribes to the user's channel, where every session the user
// owns publishes its lifecycle events.
func (h *RealtimeHandler) SSEStream(c *gin.Context) {
	userID, err := uuid.Parse(c.Query("user_id"))
	if err != nil || userID == uuid.Nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid user_id"})
		return
	}
	h.Log.Info("SSEStream open", "user_id", userID.String())

	client := h.Hub.NewSSEClient(userID)
	h.Hub.AddChannel(client, userID.String())

	h.Hub.ServeHTTP(c.Writer, c.Request, client)

	h.Hub.CloseClient(client)
}
