package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wareshop/counter/internal/entity"
)

func newTestExporter(t *testing.T) (*Exporter, string) {
	t.Helper()
	dir := t.TempDir()
	e, err := NewExporter(dir)
	if err != nil {
		t.Fatalf("NewExporter error: %v", err)
	}
	e.now = func() time.Time {
		return time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	}
	return e, dir
}

func sampleDeleted() entity.DeletedOrder {
	return entity.DeletedOrder{
		Order: entity.Order{
			Number:       "WHS-007",
			CustomerName: "Ruwan Silva",
			Status:       entity.StatusPacked,
		},
		DeletedAt:      time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
		DeletedBy:      "kasun",
		OriginalStatus: entity.StatusPacked,
	}
}

func TestExportWritesSnapshot(t *testing.T) {
	e, dir := newTestExporter(t)

	name, err := e.Export(sampleDeleted(), ReasonPermanentDelete)
	if err != nil {
		t.Fatalf("Export error: %v", err)
	}
	if name != "WHS-007_20250314T092653.json" {
		t.Fatalf("unexpected snapshot name: %q", name)
	}

	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("snapshot unreadable: %v", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("snapshot is not valid JSON: %v", err)
	}
	if snap.Reason != ReasonPermanentDelete {
		t.Fatalf("unexpected reason: %q", snap.Reason)
	}
	if snap.Order.Number != "WHS-007" || snap.Order.OriginalStatus != entity.StatusPacked {
		t.Fatalf("snapshot lost order data: %+v", snap.Order)
	}
}

func TestExportNeverOverwrites(t *testing.T) {
	e, dir := newTestExporter(t)

	first, err := e.Export(sampleDeleted(), ReasonRetentionPurge)
	if err != nil {
		t.Fatalf("first Export error: %v", err)
	}
	second, err := e.Export(sampleDeleted(), ReasonRetentionPurge)
	if err != nil {
		t.Fatalf("second Export error: %v", err)
	}
	if first == second {
		t.Fatalf("colliding exports share a name: %q", first)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 snapshot files, got %d", len(entries))
	}
}
