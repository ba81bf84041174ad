package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type rec struct {
	ID   string `json:"id"`
	Note string `json:"note"`
}

func TestCollection_MissingFileReadsEmpty(t *testing.T) {
	col, err := NewCollection[rec](filepath.Join(t.TempDir(), "recs.json"))
	if err != nil {
		t.Fatalf("NewCollection error: %v", err)
	}
	items, err := col.All()
	if err != nil {
		t.Fatalf("All error: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty collection, got %v", items)
	}
}

func TestCollection_MutateRoundTrip(t *testing.T) {
	col, err := NewCollection[rec](filepath.Join(t.TempDir(), "recs.json"))
	if err != nil {
		t.Fatalf("NewCollection error: %v", err)
	}

	err = col.Mutate(func(items []rec) ([]rec, error) {
		return append(items, rec{ID: "a", Note: "first"}, rec{ID: "b"}), nil
	})
	if err != nil {
		t.Fatalf("Mutate error: %v", err)
	}

	items, err := col.All()
	if err != nil {
		t.Fatalf("All error: %v", err)
	}
	if len(items) != 2 || items[0].ID != "a" || items[1].ID != "b" {
		t.Fatalf("unexpected items: %v", items)
	}
}

func TestCollection_MutateErrorWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recs.json")
	col, err := NewCollection[rec](path)
	if err != nil {
		t.Fatalf("NewCollection error: %v", err)
	}
	if err := col.Mutate(func(items []rec) ([]rec, error) {
		return append(items, rec{ID: "a"}), nil
	}); err != nil {
		t.Fatalf("Mutate error: %v", err)
	}

	boom := errors.New("boom")
	err = col.Mutate(func(items []rec) ([]rec, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}

	items, err := col.All()
	if err != nil {
		t.Fatalf("All error: %v", err)
	}
	if len(items) != 1 || items[0].ID != "a" {
		t.Fatalf("store changed after failed mutation: %v", items)
	}
}

func TestCollection_NoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	col, err := NewCollection[rec](filepath.Join(dir, "recs.json"))
	if err != nil {
		t.Fatalf("NewCollection error: %v", err)
	}
	if err := col.Mutate(func(items []rec) ([]rec, error) {
		return append(items, rec{ID: "a"}), nil
	}); err != nil {
		t.Fatalf("Mutate error: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir error: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "recs.json" {
		t.Fatalf("unexpected dir contents: %v", entries)
	}
}
