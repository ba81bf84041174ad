// Package export writes immutable point-in-time order snapshots before an
// order is permanently removed.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/fx"

	"github.com/wareshop/counter/internal/config"
	"github.com/wareshop/counter/internal/entity"
)

// Reasons recorded inside a snapshot.
const (
	ReasonPermanentDelete = "permanent_delete"
	ReasonRetentionPurge  = "retention_purge"
)

// Snapshot is the document written for each exported order.
type Snapshot struct {
	Order      entity.DeletedOrder `json:"order"`
	ExportedAt time.Time           `json:"exported_at"`
	Reason     string              `json:"reason"`
}

// Exporter writes snapshots into a flat directory, one file per export, named
// by order number and timestamp so files are never overwritten.
type Exporter struct {
	dir string
	now func() time.Time
}

// Module provides the exporter to the Fx graph.
var Module = fx.Provide(New)

// New builds an Exporter rooted at the configured exports directory.
func New(cfg config.Config) (*Exporter, error) {
	return NewExporter(cfg.Storage.ExportsDir)
}

// NewExporter builds an Exporter rooted at dir.
func NewExporter(dir string) (*Exporter, error) {
	if dir == "" {
		return nil, errors.New("exports directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("prepare exports dir: %w", err)
	}
	return &Exporter{dir: dir, now: time.Now}, nil
}

// Export writes one snapshot and returns the file name of the artifact.
func (e *Exporter) Export(order entity.DeletedOrder, reason string) (string, error) {
	now := e.now().UTC()
	snap := Snapshot{Order: order, ExportedAt: now, Reason: reason}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	name := fmt.Sprintf("%s_%s.json", order.Number, now.Format("20060102T150405"))
	path := filepath.Join(e.dir, name)

	// O_EXCL keeps snapshots immutable: a name collision (same order, same
	// second) gets a numbered suffix instead of overwriting.
	for i := 0; ; i++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, os.ErrExist) {
			name = fmt.Sprintf("%s_%s_%d.json", order.Number, now.Format("20060102T150405"), i+1)
			path = filepath.Join(e.dir, name)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create snapshot: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", fmt.Errorf("write snapshot: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("close snapshot: %w", err)
		}
		return name, nil
	}
}
