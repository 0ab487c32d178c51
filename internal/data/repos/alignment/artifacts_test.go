package alignment

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/traceloom/traceloom-backend/internal/data/repos/testutil"
	types "github.com/traceloom/traceloom-backend/internal/domain"
	"github.com/traceloom/traceloom-backend/internal/platform/dbctx"
)

func TestElementRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewElementRepo(db, testutil.Logger(t))

	sessionID := uuid.New()
	rows := []*types.DatasetElement{
		{ID: uuid.New(), SessionID: sessionID, Dataset: types.Dataset1, ExternalID: "req-2", Label: "Retry on timeout", Position: 1},
		{ID: uuid.New(), SessionID: sessionID, Dataset: types.Dataset1, ExternalID: "req-1", Label: "Persist sessions", Position: 0},
		{ID: uuid.New(), SessionID: sessionID, Dataset: types.Dataset2, ExternalID: "impl-1", Label: "session store", Content: "gorm backed", Position: 0},
	}
	if _, err := repo.CreateBatch(dbc, rows); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}

	d1, err := repo.ListBySession(dbc, sessionID, types.Dataset1)
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(d1) != 2 || d1[0].ExternalID != "req-1" || d1[1].ExternalID != "req-2" {
		t.Fatalf("dataset1 list out of position order: %+v", d1)
	}

	d2, err := repo.ListBySession(dbc, sessionID, types.Dataset2)
	if err != nil || len(d2) != 1 {
		t.Fatalf("dataset2 list: len=%d err=%v", len(d2), err)
	}

	got, err := repo.GetByExternalID(dbc, sessionID, types.Dataset2, "impl-1")
	if err != nil || got == nil || got.Content != "gorm backed" {
		t.Fatalf("GetByExternalID: got=%+v err=%v", got, err)
	}
	if missing, err := repo.GetByExternalID(dbc, sessionID, types.Dataset1, "impl-1"); err != nil || missing != nil {
		t.Fatalf("GetByExternalID must scope by dataset: got=%+v err=%v", missing, err)
	}
}

func TestMergeLogRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewMergeLogRepo(db, testutil.Logger(t))

	sessionID := uuid.New()
	if err := repo.Record(dbc, sessionID, 1, nil); err != nil {
		t.Fatalf("Record with no events must be a no-op: %v", err)
	}
	if err := repo.Record(dbc, sessionID, 2, []types.MergeEvent{
		{From: []string{"auth", "login"}, To: "authentication"},
	}); err != nil {
		t.Fatalf("Record round 2: %v", err)
	}
	if err := repo.Record(dbc, sessionID, 1, []types.MergeEvent{
		{From: []string{"db", "storage"}, To: "persistence"},
	}); err != nil {
		t.Fatalf("Record round 1: %v", err)
	}
	if err := repo.Record(dbc, uuid.New(), 1, []types.MergeEvent{
		{From: []string{"other"}, To: "unrelated"},
	}); err != nil {
		t.Fatalf("Record for other session: %v", err)
	}

	entries, err := repo.ListBySession(dbc, sessionID)
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("want 2 entries, got %d", len(entries))
	}
	if entries[0].Round != 1 || entries[0].ToLabel != "persistence" {
		t.Fatalf("entries not ordered by round: %+v", entries[0])
	}
	var from []string
	if err := json.Unmarshal(entries[1].FromLabels, &from); err != nil {
		t.Fatalf("decode from_labels: %v", err)
	}
	if len(from) != 2 || from[0] != "auth" {
		t.Fatalf("from_labels round trip: %v", from)
	}
}

func TestTesseractRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewTesseractRepo(db, testutil.Logger(t))

	sessionID := uuid.New()
	cells := []*types.TesseractCell{
		{ID: uuid.New(), SessionID: sessionID, ElementID: "req-1", Step: "validation", Polarity: -0.8, Criticality: types.CriticalityCritical, Evidence: "missing input check"},
		{ID: uuid.New(), SessionID: sessionID, ElementID: "req-1", Step: "persistence", Polarity: 0.9, Criticality: types.CriticalityInfo},
	}
	if err := repo.CreateBatch(dbc, cells); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	if err := repo.CreateBatch(dbc, nil); err != nil {
		t.Fatalf("CreateBatch with no cells must be a no-op: %v", err)
	}

	listed, err := repo.ListBySession(dbc, sessionID)
	if err != nil || len(listed) != 2 {
		t.Fatalf("ListBySession: len=%d err=%v", len(listed), err)
	}

	if err := repo.DeleteBySession(dbc, sessionID); err != nil {
		t.Fatalf("DeleteBySession: %v", err)
	}
	after, err := repo.ListBySession(dbc, sessionID)
	if err != nil || len(after) != 0 {
		t.Fatalf("cells survived delete: len=%d err=%v", len(after), err)
	}
}

func TestVennRepoReplaceSupersedes(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewVennRepo(db, testutil.Logger(t))

	sessionID := uuid.New()
	first := &types.VennResult{
		UniqueToD1: []types.ClassifiedElement{{ID: "req-9", Label: "unmatched requirement", Concept: "auditing"}},
		Aligned:    []types.ClassifiedElement{},
		UniqueToD2: []types.ClassifiedElement{},
		Summary:    types.VennSummary{TotalD1Coverage: 0, TotalD2Coverage: 0, AlignmentScore: 0},
	}
	if _, err := repo.Replace(dbc, sessionID, first); err != nil {
		t.Fatalf("Replace first: %v", err)
	}

	second := &types.VennResult{
		UniqueToD1: []types.ClassifiedElement{},
		Aligned: []types.ClassifiedElement{
			{ID: "req-9", Label: "unmatched requirement", Concept: "auditing", PairedWith: []string{"impl-3"}},
		},
		UniqueToD2: []types.ClassifiedElement{},
		Summary:    types.VennSummary{TotalD1Coverage: 1, TotalD2Coverage: 1, AlignmentScore: 1},
	}
	rec, err := repo.Replace(dbc, sessionID, second)
	if err != nil || rec == nil {
		t.Fatalf("Replace second: rec=%v err=%v", rec, err)
	}

	got, err := repo.GetBySession(dbc, sessionID)
	if err != nil || got == nil {
		t.Fatalf("GetBySession: got=%v err=%v", got, err)
	}
	if got.ID != rec.ID {
		t.Fatalf("latest record must win: want=%v got=%v", rec.ID, got.ID)
	}
	var aligned []types.ClassifiedElement
	if err := json.Unmarshal(got.Aligned, &aligned); err != nil {
		t.Fatalf("decode aligned: %v", err)
	}
	if len(aligned) != 1 || aligned[0].PairedWith[0] != "impl-3" {
		t.Fatalf("aligned bucket round trip: %+v", aligned)
	}
	var summary types.VennSummary
	if err := json.Unmarshal(got.Summary, &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.AlignmentScore != 1 {
		t.Fatalf("summary round trip: %+v", summary)
	}

	if none, err := repo.GetBySession(dbc, uuid.New()); err != nil || none != nil {
		t.Fatalf("GetBySession for unknown session: got=%v err=%v", none, err)
	}
}
