package blackboard

import (
	"context"
	"sort"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, ok, err := store.Read(ctx, "s1", "absent"); err != nil || ok {
		t.Fatalf("read absent: ok=%v err=%v", ok, err)
	}

	if err := store.Write(ctx, "s1", "plan", "merge auth concepts first"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, ok, err := store.Read(ctx, "s1", "plan")
	if err != nil || !ok || got != "merge auth concepts first" {
		t.Fatalf("Read: got=(%q,%v,%v)", got, ok, err)
	}

	// Overwrite.
	if err := store.Write(ctx, "s1", "plan", "revised"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _, _ = store.Read(ctx, "s1", "plan")
	if got != "revised" {
		t.Fatalf("overwrite: got=%q", got)
	}
}

func TestMemoryStoreSessionNamespacing(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_ = store.Write(ctx, "s1", "a", "1")
	_ = store.Write(ctx, "s1", "b", "2")
	_ = store.Write(ctx, "s2", "c", "3")

	keys, err := store.Keys(ctx, "s1")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("s1 keys: %v", keys)
	}

	if _, ok, _ := store.Read(ctx, "s2", "a"); ok {
		t.Fatal("sessions must not see each other's keys")
	}
}

func TestMemoryStoreRejectsBlankIdentifiers(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Write(context.Background(), "", "k", "v"); err == nil {
		t.Fatal("blank session must be rejected")
	}
	if err := store.Write(context.Background(), "s", " ", "v"); err == nil {
		t.Fatal("blank key must be rejected")
	}
}
