// Package testsupport provides shared fixtures for catalog-backed tests.
package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"kinotek/internal/catalog"
)

// MustOpenStore opens a catalog store in a per-test temp dir and registers
// cleanup.
func MustOpenStore(t testing.TB) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// SeedSeason creates a series with one season for tests.
func SeedSeason(t testing.TB, store *catalog.Store) *catalog.Season {
	t.Helper()

	ctx := context.Background()
	series, err := store.CreateSeries(ctx, "test-show", "Test Show", "")
	if err != nil {
		t.Fatalf("CreateSeries: %v", err)
	}
	season, err := store.CreateSeason(ctx, series.ID, 1, "Season 1")
	if err != nil {
		t.Fatalf("CreateSeason: %v", err)
	}
	return season
}
