package localstore

import (
	"path/filepath"
	"testing"

	"lbm-go/internal/lbm"
)

func stores(t *testing.T) map[string]lbm.LocalStore {
	t.Helper()
	sqlite, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })
	return map[string]lbm.LocalStore{
		"sqlite": sqlite,
		"memory": NewMemoryStore(),
	}
}

func TestLocalStore_ConfigCache(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			got, err := store.LoadConfigCache()
			if err != nil {
				t.Fatalf("LoadConfigCache() error = %v", err)
			}
			if got != nil {
				t.Errorf("fresh store returned cache %q", got)
			}

			if err := store.SaveConfigCache([]byte(`{"siteName":"x"}`)); err != nil {
				t.Fatalf("SaveConfigCache() error = %v", err)
			}
			if err := store.SaveConfigCache([]byte(`{"siteName":"y"}`)); err != nil {
				t.Fatalf("second SaveConfigCache() error = %v", err)
			}
			got, err = store.LoadConfigCache()
			if err != nil {
				t.Fatalf("LoadConfigCache() error = %v", err)
			}
			if string(got) != `{"siteName":"y"}` {
				t.Errorf("cache = %s, want latest write", got)
			}
		})
	}
}

func TestLocalStore_Reactions(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if action, _ := store.Reaction(1); action != "" {
				t.Errorf("fresh store has reaction %q", action)
			}
			if err := store.SetReaction(1, "like"); err != nil {
				t.Fatalf("SetReaction() error = %v", err)
			}
			if err := store.SetReaction(1, "dislike"); err != nil {
				t.Fatalf("SetReaction() overwrite error = %v", err)
			}
			if action, _ := store.Reaction(1); action != "dislike" {
				t.Errorf("reaction = %q, want dislike", action)
			}
			if err := store.ClearReaction(1); err != nil {
				t.Fatalf("ClearReaction() error = %v", err)
			}
			if action, _ := store.Reaction(1); action != "" {
				t.Errorf("reaction = %q after clear", action)
			}
			// Clearing a missing entry is not an error.
			if err := store.ClearReaction(42); err != nil {
				t.Errorf("ClearReaction(missing) error = %v", err)
			}
		})
	}
}

func TestLocalStore_Session(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if got, _ := store.LoadSession(); got != nil {
				t.Errorf("fresh store has session %q", got)
			}
			if err := store.SaveSession([]byte(`{"username":"mika"}`)); err != nil {
				t.Fatalf("SaveSession() error = %v", err)
			}
			got, err := store.LoadSession()
			if err != nil {
				t.Fatalf("LoadSession() error = %v", err)
			}
			if string(got) != `{"username":"mika"}` {
				t.Errorf("session = %s", got)
			}
			if err := store.ClearSession(); err != nil {
				t.Fatalf("ClearSession() error = %v", err)
			}
			if got, _ := store.LoadSession(); got != nil {
				t.Errorf("session = %q after clear", got)
			}
		})
	}
}

func TestSQLiteStore_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lbm.db")

	first, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	if err := first.SetReaction(7, "like"); err != nil {
		t.Fatalf("SetReaction() error = %v", err)
	}
	first.Close()

	second, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopening store: %v", err)
	}
	defer second.Close()
	if action, _ := second.Reaction(7); action != "like" {
		t.Errorf("reaction = %q after reopen, want like", action)
	}
}
