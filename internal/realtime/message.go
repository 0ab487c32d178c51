package realtime

type SSEEvent string

// Alignment session lifecycle events. The channel is always the owner user's
// id; the session id rides in the payload.
const (
	SSEEventSessionCreated  SSEEvent = "AlignmentSessionCreated"
	SSEEventSessionProgress SSEEvent = "AlignmentSessionProgress"
	SSEEventSessionFailed   SSEEvent = "AlignmentSessionFailed"
	SSEEventSessionDone     SSEEvent = "AlignmentSessionDone"
	SSEEventSessionCanceled SSEEvent = "AlignmentSessionCanceled"
)

type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}
