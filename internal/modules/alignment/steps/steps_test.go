package steps

import (
	"context"
	"testing"

	"github.com/traceloom/traceloom-backend/internal/platform/logger"
)

// fakeAI replays canned completions in order.
type fakeAI struct {
	responses []string
	calls     int
	err       error
}

func (f *fakeAI) Complete(_ context.Context, _ string, _ int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.calls >= len(f.responses) {
		return "", nil
	}
	resp := f.responses[f.calls]
	f.calls++
	return resp, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func testDeps(t *testing.T, ai *fakeAI) Deps {
	t.Helper()
	return Deps{Log: testLogger(t), AI: ai}
}
