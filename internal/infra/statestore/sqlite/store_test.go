package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"tripgroups/pkg/domain"
)

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := New(context.Background(), path)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSaveLoadAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	store := openStore(t, path)
	want := domain.PersistedState{
		SelectedAdventure: "adv-9",
		Groups: []domain.Group{{
			ID:            "g1",
			Name:          "Group 1",
			Participants:  []domain.Participant{{ID: "p1"}},
			MaxSize:       2,
			Compatibility: domain.NeutralCompatibility(),
			Version:       1,
			CreatedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		}},
		Participants: []domain.Participant{{ID: "p1"}, {ID: "p2"}},
		GroupConfigurations: []domain.GroupConfiguration{{
			ID: "c1", Name: "Draft", AdventureID: "adv-9", VendorID: "v1",
			CreatedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		}},
	}
	if err := store.SaveState(ctx, "v1", want); err != nil {
		t.Fatalf("save: %v", err)
	}
	_ = store.Close()

	reopened := openStore(t, path)
	got, ok, err := reopened.LoadState(ctx, "v1")
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("state mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveIsolatesSessionsAndOverwrites(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, filepath.Join(t.TempDir(), "state.db"))
	if err := store.SaveState(ctx, "a", domain.PersistedState{SelectedAdventure: "first"}); err != nil {
		t.Fatalf("save a: %v", err)
	}
	if err := store.SaveState(ctx, "a", domain.PersistedState{SelectedAdventure: "second"}); err != nil {
		t.Fatalf("overwrite a: %v", err)
	}
	if err := store.SaveState(ctx, "b", domain.PersistedState{SelectedAdventure: "other"}); err != nil {
		t.Fatalf("save b: %v", err)
	}
	got, _, err := store.LoadState(ctx, "a")
	if err != nil || got.SelectedAdventure != "second" {
		t.Fatalf("expected overwritten session a, got %+v err=%v", got, err)
	}
	var rows int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM session_state WHERE session = ?`, "a").Scan(&rows); err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != len(stateBuckets) {
		t.Fatalf("expected %d buckets, got %d", len(stateBuckets), rows)
	}
}

func TestLoadMissingSession(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "state.db"))
	_, ok, err := store.LoadState(context.Background(), "ghost")
	if err != nil || ok {
		t.Fatalf("expected absent session, got ok=%v err=%v", ok, err)
	}
	if err := store.SaveState(context.Background(), "", domain.PersistedState{}); err == nil {
		t.Fatalf("expected empty key error")
	}
}

func TestLoadRejectsCorruptBucket(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, filepath.Join(t.TempDir(), "state.db"))
	if _, err := store.DB().Exec(`INSERT INTO session_state(session,bucket,payload) VALUES(?,?,?)`, "bad", bucketGroups, []byte("{")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, _, err := store.LoadState(ctx, "bad"); err == nil {
		t.Fatalf("expected decode error")
	}
}
