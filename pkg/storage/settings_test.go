package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSettingsLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SetSetting(ctx, "theme", "dark"); err != nil {
		t.Fatalf("failed to set setting: %v", err)
	}
	settings, err := store.GetSettings(ctx, []string{"theme"})
	if err != nil {
		t.Fatalf("failed to get settings: %v", err)
	}
	if settings["theme"] != "dark" {
		t.Errorf("expected theme=dark, got %q", settings["theme"])
	}

	if err := store.SetSetting(ctx, "theme", "light"); err != nil {
		t.Fatalf("failed to update setting: %v", err)
	}
	settings, _ = store.GetSettings(ctx, []string{"theme"})
	if settings["theme"] != "light" {
		t.Errorf("expected theme=light, got %q", settings["theme"])
	}

	if err := store.SetSetting(ctx, "theme", ""); err != nil {
		t.Fatalf("failed to delete setting: %v", err)
	}
	settings, _ = store.GetSettings(ctx, []string{"theme"})
	if _, exists := settings["theme"]; exists {
		t.Errorf("expected theme to be deleted, but it exists")
	}
}

func TestSelectionRoundTripAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.db")
	ctx := context.Background()

	store, err := New(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := store.LastSelection(ctx); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	want := Selection{URL: "https://example.com", Devices: []string{"mobile-360x800", "desktop-1280"}}
	if err := store.SaveSelection(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	_ = store.Close()

	store, err = New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	got, err := store.LastSelection(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.URL != want.URL || len(got.Devices) != 2 || got.Devices[1] != "desktop-1280" {
		t.Fatalf("unexpected selection %+v", got)
	}
	version, err := store.SchemaVersion()
	if err != nil || version != 1 {
		t.Fatalf("expected schema version 1, got %d (%v)", version, err)
	}
}

func TestInMemoryStore(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	defer store.Close()
	if err := store.SetSetting(context.Background(), "k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
}

func TestClosedStore(t *testing.T) {
	var store *Store
	if _, err := store.GetSettings(context.Background(), []string{"k"}); err != ErrStoreClosed {
		t.Fatalf("expected ErrStoreClosed, got %v", err)
	}
}
