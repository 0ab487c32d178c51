package runtime

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/traceloom/traceloom-backend/internal/domain"
)

func TestPayloadDecodeAndUUID(t *testing.T) {
	id := uuid.New()
	session := &types.AlignmentSession{
		ID:      uuid.New(),
		Payload: datatypes.JSON(`{"session_id": "` + id.String() + `", "d1_count": 4, "note": "hi"}`),
	}
	jc := NewContext(context.Background(), nil, session, nil, nil)

	got, ok := jc.PayloadUUID("session_id")
	if !ok || got != id {
		t.Fatalf("PayloadUUID: got=(%v,%v)", got, ok)
	}
	if _, ok := jc.PayloadUUID("missing"); ok {
		t.Fatal("missing key must not resolve")
	}
	if _, ok := jc.PayloadUUID("note"); ok {
		t.Fatal("non-uuid value must not resolve")
	}
	if jc.Payload()["d1_count"] != float64(4) {
		t.Fatalf("payload: %+v", jc.Payload())
	}
}

func TestPayloadMalformedIsNonFatal(t *testing.T) {
	session := &types.AlignmentSession{
		ID:      uuid.New(),
		Payload: datatypes.JSON(`{broken`),
	}
	jc := NewContext(context.Background(), nil, session, nil, nil)
	if jc.Payload() == nil || len(jc.Payload()) != 0 {
		t.Fatalf("malformed payload must decode to an empty map, got=%+v", jc.Payload())
	}
}

func TestProgressWithoutRepoMutatesInMemory(t *testing.T) {
	session := &types.AlignmentSession{ID: uuid.New(), Status: types.SessionRunning}
	jc := NewContext(context.Background(), nil, session, nil, nil)

	jc.Progress(types.PhaseExtracting, 20, "extracting concepts")

	if session.Phase != types.PhaseExtracting || session.Progress != 20 || session.Message != "extracting concepts" {
		t.Fatalf("session after progress: %+v", session)
	}
	if session.HeartbeatAt == nil {
		t.Fatal("heartbeat must be stamped")
	}
}

func TestSucceedSetsWarningStatus(t *testing.T) {
	session := &types.AlignmentSession{ID: uuid.New(), Status: types.SessionRunning}
	jc := NewContext(context.Background(), nil, session, nil, nil)

	jc.Succeed(map[string]any{"merged_count": 3}, true)

	if session.Status != types.SessionCompletedWithWarnings {
		t.Fatalf("status: got=%q", session.Status)
	}
	if session.Phase != types.PhaseCompleted || session.Progress != 100 {
		t.Fatalf("session after succeed: %+v", session)
	}
	if len(session.Result) == 0 {
		t.Fatal("result payload must be persisted on the row")
	}
}

func TestFailRecordsError(t *testing.T) {
	session := &types.AlignmentSession{ID: uuid.New(), Status: types.SessionRunning}
	jc := NewContext(context.Background(), nil, session, nil, nil)

	jc.Fail(types.PhaseMergingConcepts, context.DeadlineExceeded)

	if session.Status != types.SessionFailed || session.Phase != types.PhaseMergingConcepts {
		t.Fatalf("session after fail: %+v", session)
	}
	if session.Error == "" || session.LastErrorAt == nil {
		t.Fatalf("error fields: %+v", session)
	}
}
