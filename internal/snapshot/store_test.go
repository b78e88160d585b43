// SimilarUsers - Wikipedia Editor Similarity Service
// Copyright 2026 Wikimedia Foundation
// SPDX-License-Identifier: Apache-2.0
// https://github.com/wikimedia/similarusers

package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wikimedia/similarusers/internal/config"
	"github.com/wikimedia/similarusers/internal/similarity"
)

func writeDataset(t *testing.T, dir string) {
	t.Helper()
	files := map[string]string{
		"metadata.tsv": "user_text\tis_anon\tnum_edits\tnum_pages\tmost_recent_edit\toldest_edit\n" +
			"Alice\tfalse\t20\t12\t2026-01-15T10:00:00Z\t2024-03-01T08:00:00Z\n" +
			"Bob\tfalse\t8\t5\t2026-01-10T09:30:00Z\t2025-06-20T12:00:00Z\n" +
			"192.0.2.7\ttrue\t3\t3\t2025-12-01T00:00:00Z\t2025-11-01T00:00:00Z\n",
		"coedit_counts.tsv": "user_text\tuser_neighbor\tnum_pages_overlapped\n" +
			"Alice\tBob\t4\n" +
			"Alice\t192.0.2.7\t1\n" +
			"Bob\tAlice\t4\n",
		"temporal.tsv": "user_text\tday_of_week\thour_of_day\tnum_edits\n" +
			"Alice\t2\t9\t15\n" + // Monday (1 = Sunday in the export)
			"Alice\t3\t14\t5\n" +
			"Bob\t2\t9\t8\n",
		"page_editors.tsv": "page_id\tuser_text\tlast_edit\n" +
			"101\tAlice\t2026-01-15T10:00:00Z\n" +
			"101\tBob\t2026-01-10T09:30:00Z\n" +
			"102\tAlice\t2025-08-01T11:00:00Z\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(&config.DatabaseConfig{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestIngestAndLoad(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir)
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.IngestTSV(ctx, dir)
	if err != nil {
		t.Fatalf("IngestTSV() error = %v", err)
	}
	if id == 0 {
		t.Fatal("IngestTSV() returned dataset id 0")
	}

	store := similarity.NewStore(250, time.Time{})
	loaded, err := s.Load(ctx, store)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded != id {
		t.Errorf("Load() dataset = %d, want %d", loaded, id)
	}

	meta, ok := store.Metadata.Get("Alice")
	if !ok {
		t.Fatal("Alice metadata not loaded")
	}
	if meta.NumEdits != 20 || meta.NumPages != 12 {
		t.Errorf("Alice metadata = %d edits / %d pages, want 20/12", meta.NumEdits, meta.NumPages)
	}
	if meta.EarliestEdit.IsZero() || meta.LatestEdit.IsZero() {
		t.Error("Alice edit range not loaded")
	}

	anon, _ := store.Metadata.Get("192.0.2.7")
	if !anon.IsAnon {
		t.Error("anonymous editor flag not loaded")
	}

	neighbours := store.Coedit.Lookup("Alice")
	if len(neighbours) != 2 || neighbours[0].UserText != "Bob" || neighbours[0].Overlap != 4 {
		t.Errorf("Alice neighbours = %v", neighbours)
	}

	// Export day 2 is Monday; in-memory day index 1.
	obs := store.Temporal.Observation("Alice")
	if len(obs) != 2 {
		t.Fatalf("Alice observation has %d buckets, want 2", len(obs))
	}
	v := similarity.Densify(obs, []int{0})
	if v.Day[1] != 15 || v.Hour[9] != 15 {
		t.Errorf("Monday 9h = %v day / %v hour, want 15/15", v.Day[1], v.Hour[9])
	}

	if !store.Pages.HasEditor(101, "Alice") || !store.Pages.HasEditor(101, "Bob") {
		t.Error("page 101 editors not loaded")
	}

	// Cutoff is the newest edit in the data.
	want := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	if !store.GlobalCutoff().Equal(want) {
		t.Errorf("cutoff = %v, want %v", store.GlobalCutoff(), want)
	}
	if store.DatasetID() != id {
		t.Errorf("dataset id = %d, want %d", store.DatasetID(), id)
	}
}

func TestIngestWithoutPageEditors(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir)
	if err := os.Remove(filepath.Join(dir, "page_editors.tsv")); err != nil {
		t.Fatal(err)
	}
	s := openTestStore(t)

	if _, err := s.IngestTSV(context.Background(), dir); err != nil {
		t.Fatalf("IngestTSV() error = %v", err)
	}
	store := similarity.NewStore(250, time.Time{})
	if _, err := s.Load(context.Background(), store); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if store.Pages.Len() != 0 {
		t.Errorf("page index has %d pages, want 0", store.Pages.Len())
	}
}

func TestIngestMissingFile(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.IngestTSV(context.Background(), t.TempDir()); err == nil {
		t.Fatal("IngestTSV() error = nil for empty directory")
	}
}

func TestLoadWithoutActiveDataset(t *testing.T) {
	s := openTestStore(t)
	store := similarity.NewStore(250, time.Time{})
	id, err := s.Load(context.Background(), store)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if id != 0 {
		t.Errorf("Load() dataset = %d, want 0", id)
	}
	if store.Metadata.Len() != 0 {
		t.Error("empty database must not seed records")
	}
}

func TestReloadReplacesGeneration(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir)
	s := openTestStore(t)
	ctx := context.Background()

	store := similarity.NewStore(250, time.Time{})
	first, err := s.Reload(ctx, store, dir, 250)
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	// Second export drops Bob and adds a newer edit for Alice.
	dir2 := t.TempDir()
	files := map[string]string{
		"metadata.tsv": "user_text\tis_anon\tnum_edits\tnum_pages\tmost_recent_edit\toldest_edit\n" +
			"Alice\tfalse\t25\t14\t2026-02-01T00:00:00Z\t2024-03-01T08:00:00Z\n",
		"coedit_counts.tsv": "user_text\tuser_neighbor\tnum_pages_overlapped\nAlice\tCarol\t2\n",
		"temporal.tsv":      "user_text\tday_of_week\thour_of_day\tnum_edits\nAlice\t1\t0\t25\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir2, name), []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	second, err := s.Reload(ctx, store, dir2, 250)
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if second <= first {
		t.Errorf("second generation id %d not after first %d", second, first)
	}

	if _, ok := store.Metadata.Get("Bob"); ok {
		t.Error("Bob survived the reload")
	}
	meta, _ := store.Metadata.Get("Alice")
	if meta.NumEdits != 25 {
		t.Errorf("Alice NumEdits = %d after reload, want 25", meta.NumEdits)
	}
	want := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	if !store.GlobalCutoff().Equal(want) {
		t.Errorf("cutoff = %v, want %v", store.GlobalCutoff(), want)
	}
	if store.ReloadInProgress() {
		t.Error("reload gate left set")
	}
}
