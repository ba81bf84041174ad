// Package scheduler runs the daily recycle-bin purge. It replaces a naive
// "poll until the clock reads 02:00" loop with a calendar-aware job: the
// last-run date is persisted, so across restarts the purge fires at most once
// per day, and a missed 02:00 slot is caught up on the next poll.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/wareshop/counter/internal/audit"
	"github.com/wareshop/counter/internal/config"
	recyclebinsvc "github.com/wareshop/counter/internal/service/recyclebin"
)

const dateLayout = "2006-01-02"

// Cleaner is the job the scheduler drives.
type Cleaner interface {
	AutoCleanup(ctx context.Context) (int, error)
}

// Scheduler fires the retention purge once per calendar day.
type Scheduler struct {
	cleaner   Cleaner
	audit     *audit.Log
	logger    *zap.Logger
	retention config.Retention
	stateFile string
	now       func() time.Time

	mu      sync.Mutex
	lastRun string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Params defines dependencies for constructing the Scheduler.
type Params struct {
	fx.In

	Recycle *recyclebinsvc.Service
	Audit   *audit.Log
	Config  config.Config
	Logger  *zap.Logger
}

// Module wires the scheduler into the Fx lifecycle.
var Module = fx.Options(
	fx.Provide(NewScheduler),
	fx.Invoke(func(lc fx.Lifecycle, s *Scheduler) {
		lc.Append(fx.Hook{
			OnStart: s.start,
			OnStop:  s.stop,
		})
	}),
)

// NewScheduler builds a Scheduler around the recycle-bin service.
func NewScheduler(p Params) *Scheduler {
	return New(p.Recycle, p.Audit, p.Config, p.Logger)
}

// New builds a Scheduler with explicit dependencies.
func New(cleaner Cleaner, auditLog *audit.Log, cfg config.Config, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cleaner:   cleaner,
		audit:     auditLog,
		logger:    logger,
		retention: cfg.Retention,
		stateFile: cfg.Storage.CleanupFile,
		now:       time.Now,
	}
}

func (s *Scheduler) start(ctx context.Context) error {
	s.lastRun = s.loadLastRun()

	// One run on startup regardless of the clock; cleanup on an already
	// clean bin is a no-op.
	s.runCleanup(ctx)

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(runCtx)
	}()

	s.logger.Info("cleanup scheduler started",
		zap.Int("hour", s.retention.CleanupHour),
		zap.Duration("poll", s.retention.PollInterval),
	)
	return nil
}

func (s *Scheduler) stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		s.logger.Info("cleanup scheduler stopped")
		return nil
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(s.retention.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.due(s.now()) {
				s.runCleanup(ctx)
			}
		}
	}
}

// due reports whether the daily purge should fire: the target hour has been
// reached and no run has happened today.
func (s *Scheduler) due(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Hour() < s.retention.CleanupHour {
		return false
	}
	return s.lastRun != now.Format(dateLayout)
}

func (s *Scheduler) runCleanup(ctx context.Context) {
	purged, err := s.cleaner.AutoCleanup(ctx)
	if err != nil {
		s.logger.Error("retention cleanup failed", zap.Error(err))
		return
	}
	if purged > 0 {
		s.logger.Info("retention cleanup finished", zap.Int("purged", purged))
	}
	s.audit.Record(audit.ActionCleanupRun, "", "", fmt.Sprintf("purged=%d", purged))

	today := s.now().Format(dateLayout)
	s.mu.Lock()
	s.lastRun = today
	s.mu.Unlock()
	s.saveLastRun(today)
}

func (s *Scheduler) loadLastRun() string {
	data, err := os.ReadFile(s.stateFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("cleanup state unreadable", zap.Error(err))
		}
		return ""
	}
	date := strings.TrimSpace(string(data))
	if _, err := time.Parse(dateLayout, date); err != nil {
		return ""
	}
	return date
}

func (s *Scheduler) saveLastRun(date string) {
	if err := os.MkdirAll(filepath.Dir(s.stateFile), 0o755); err != nil {
		s.logger.Warn("cleanup state dir", zap.Error(err))
		return
	}
	if err := os.WriteFile(s.stateFile, []byte(date+"\n"), 0o644); err != nil {
		s.logger.Warn("cleanup state write failed", zap.Error(err))
	}
}
