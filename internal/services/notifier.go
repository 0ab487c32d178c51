package services

import (
	"context"

	"github.com/google/uuid"

	types "github.com/traceloom/traceloom-backend/internal/domain"
	"github.com/traceloom/traceloom-backend/internal/realtime"
)

// SessionNotifier publishes alignment session lifecycle events on the owner's
// channel. Emission is fire-and-forget; delivery failures never fail the
// pipeline.
type SessionNotifier interface {
	SessionCreated(userID uuid.UUID, session *types.AlignmentSession)
	SessionProgress(userID uuid.UUID, session *types.AlignmentSession, phase string, progress int, message string)
	SessionFailed(userID uuid.UUID, session *types.AlignmentSession, phase string, errorMessage string)
	SessionDone(userID uuid.UUID, session *types.AlignmentSession)
	SessionCanceled(userID uuid.UUID, session *types.AlignmentSession)
}

type sessionNotifier struct {
	emit SSEEmitter
}

func NewSessionNotifier(emit SSEEmitter) SessionNotifier {
	return &sessionNotifier{emit: emit}
}

func (n *sessionNotifier) SessionCreated(userID uuid.UUID, session *types.AlignmentSession) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: userID.String(),
		Event:   realtime.SSEEventSessionCreated,
		Data:    map[string]any{"session": session},
	})
}

func (n *sessionNotifier) SessionProgress(userID uuid.UUID, session *types.AlignmentSession, phase string, progress int, message string) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: userID.String(),
		Event:   realtime.SSEEventSessionProgress,
		Data: map[string]any{
			"session_id": safeSessionID(session),
			"phase":      phase,
			"progress":   progress,
			"message":    message,
			"session":    session,
		},
	})
}

func (n *sessionNotifier) SessionFailed(userID uuid.UUID, session *types.AlignmentSession, phase string, errorMessage string) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: userID.String(),
		Event:   realtime.SSEEventSessionFailed,
		Data: map[string]any{
			"session_id": safeSessionID(session),
			"phase":      phase,
			"error":      errorMessage,
			"session":    session,
		},
	})
}

func (n *sessionNotifier) SessionDone(userID uuid.UUID, session *types.AlignmentSession) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: userID.String(),
		Event:   realtime.SSEEventSessionDone,
		Data: map[string]any{
			"session_id": safeSessionID(session),
			"session":    session,
		},
	})
}

func (n *sessionNotifier) SessionCanceled(userID uuid.UUID, session *types.AlignmentSession) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: userID.String(),
		Event:   realtime.SSEEventSessionCanceled,
		Data: map[string]any{
			"session_id": safeSessionID(session),
			"session":    session,
		},
	})
}

func safeSessionID(session *types.AlignmentSession) uuid.UUID {
	if session == nil {
		return uuid.Nil
	}
	return session.ID
}
