// Package audit keeps an append-only, line-oriented record of every action
// taken at the counter. Lines are CSV-encoded so embedded commas and quotes in
// the free-text details survive a round trip.
package audit

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/wareshop/counter/internal/config"
)

// Action tags every audit record with the operation that produced it.
type Action string

const (
	ActionOrderCreated  Action = "ORDER_CREATED"
	ActionStatusUpdated Action = "STATUS_UPDATED"
	ActionOrderApproved Action = "ORDER_APPROVED"
	ActionOrderDeleted  Action = "ORDER_DELETED"
	ActionOrderRestored Action = "ORDER_RESTORED"
	ActionOrderPurged   Action = "ORDER_PURGED"
	ActionOrderExported Action = "ORDER_EXPORTED"
	ActionStaffLogin    Action = "STAFF_LOGIN"
	ActionCleanupRun    Action = "CLEANUP_RUN"
)

// NoOrder is recorded when an action has no subject order.
const NoOrder = "N/A"

// ExportHeader is the first line of every audit export.
const ExportHeader = "timestamp,action,order_id,staff_name,details"

// Log is the append-only audit log. Appends never rewrite prior lines.
type Log struct {
	path   string
	mu     sync.Mutex
	logger *zap.Logger
	now    func() time.Time
}

// Module provides the audit log to the Fx graph.
var Module = fx.Provide(New)

// New opens the audit log at the configured path.
func New(cfg config.Config, logger *zap.Logger) (*Log, error) {
	return Open(cfg.Storage.AuditFile, logger)
}

// Open opens (creating parent directories as needed) an audit log at path.
func Open(path string, logger *zap.Logger) (*Log, error) {
	if path == "" {
		return nil, errors.New("audit log path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("prepare audit dir: %w", err)
	}
	return &Log{path: path, logger: logger, now: time.Now}, nil
}

// Append writes one record. orderNumber may be empty, in which case N/A is
// recorded. staff may be empty for system actions.
func (l *Log) Append(action Action, orderNumber, staff, details string) error {
	if orderNumber == "" {
		orderNumber = NoOrder
	}
	if staff == "" {
		staff = "SYSTEM"
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	record := []string{
		l.now().UTC().Format(time.RFC3339),
		string(action),
		orderNumber,
		staff,
		details,
	}
	if err := w.Write(record); err != nil {
		return fmt.Errorf("encode audit record: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encode audit record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}

// Record appends and logs rather than fails: audit write errors must never
// abort the operation they describe.
func (l *Log) Record(action Action, orderNumber, staff, details string) {
	if err := l.Append(action, orderNumber, staff, details); err != nil && l.logger != nil {
		l.logger.Error("audit append failed",
			zap.String("action", string(action)),
			zap.String("order", orderNumber),
			zap.Error(err),
		)
	}
}

// Export returns the full log, header row first, as CSV text.
func (l *Log) Export() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("read audit log: %w", err)
	}
	return ExportHeader + "\n" + string(data), nil
}
