package recyclebin

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wareshop/counter/internal/audit"
	"github.com/wareshop/counter/internal/cache"
	"github.com/wareshop/counter/internal/config"
	"github.com/wareshop/counter/internal/entity"
	"github.com/wareshop/counter/internal/export"
	"github.com/wareshop/counter/internal/messaging"
	orderrepo "github.com/wareshop/counter/internal/repository/order"
	binrepo "github.com/wareshop/counter/internal/repository/recyclebin"
	ordersvc "github.com/wareshop/counter/internal/service/order"
	"github.com/wareshop/counter/pkg/errorbank"
)

type fixture struct {
	svc        *Service
	orders     *ordersvc.Service
	orderRepo  *orderrepo.Repository
	binRepo    *binrepo.Repository
	exportsDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	orders, err := orderrepo.NewRepositoryAt(filepath.Join(dir, "orders.json"))
	require.NoError(t, err)
	bin, err := binrepo.NewRepositoryAt(filepath.Join(dir, "recycle_bin.json"))
	require.NoError(t, err)
	auditLog, err := audit.Open(filepath.Join(dir, "audit.log"), zap.NewNop())
	require.NoError(t, err)
	exportsDir := filepath.Join(dir, "exports")
	exporter, err := export.NewExporter(exportsDir)
	require.NoError(t, err)

	cfg := config.Config{
		Retention: config.Retention{Days: 7, ExpiringDays: 5},
	}

	lifecycle := ordersvc.NewService(ordersvc.Params{
		Repository: orders,
		Bin:        bin,
		Cache:      cache.NoopStore{},
		Audit:      auditLog,
		Config:     cfg,
		Logger:     zap.NewNop(),
		Publisher:  messaging.NoopClient{},
	})
	svc := NewService(Params{
		Orders:    orders,
		Bin:       bin,
		Exporter:  exporter,
		Audit:     auditLog,
		Lifecycle: lifecycle,
		Config:    cfg,
		Logger:    zap.NewNop(),
		Publisher: messaging.NoopClient{},
	})

	return &fixture{svc: svc, orders: lifecycle, orderRepo: orders, binRepo: bin, exportsDir: exportsDir}
}

func (f *fixture) createOrder(t *testing.T) entity.Order {
	t.Helper()
	created, err := f.orders.Create(context.Background(), ordersvc.CreateInput{
		CustomerName:  "Jane Perera",
		CustomerPhone: "077-123-4567",
		Items:         []entity.Item{{SKU: "HMR-16OZ", Qty: 1}},
		PaymentMethod: "cash",
		StaffName:     "kasun",
	})
	require.NoError(t, err)
	return created
}

func (f *fixture) snapshotCount(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(f.exportsDir)
	require.NoError(t, err)
	return len(entries)
}

func TestSoftDeleteMovesOrderToBin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createOrder(t)

	count, err := f.svc.SoftDelete(ctx, created.Number, "nadia")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	active, err := f.orderRepo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, active, "order must leave the active store")

	parked, err := f.svc.ListDeleted(ctx)
	require.NoError(t, err)
	require.Len(t, parked, 1)
	assert.Equal(t, created.Number, parked[0].Number)
	assert.Equal(t, "nadia", parked[0].DeletedBy)
	assert.Equal(t, created.Status, parked[0].OriginalStatus)
	assert.False(t, parked[0].DeletedAt.IsZero())
}

func TestSoftDeleteMissingOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SoftDelete(context.Background(), "WHS-404", "nadia")
	assert.Equal(t, errorbank.KindNotFound, errorbank.From(err).Kind())
}

func TestRestoreRecoversStatusAndStripsMetadata(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createOrder(t)
	_, err := f.orders.UpdateStatus(ctx, created.Number, entity.StatusPacked, "kasun", "")
	require.NoError(t, err)
	_, err = f.svc.SoftDelete(ctx, created.Number, "nadia")
	require.NoError(t, err)

	restored, err := f.svc.Restore(ctx, created.Number)
	require.NoError(t, err)
	assert.Equal(t, created.Number, restored.Number)
	assert.Equal(t, entity.StatusPacked, restored.Status)

	active, err := f.orderRepo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
	parked, err := f.svc.ListDeleted(ctx)
	require.NoError(t, err)
	assert.Empty(t, parked, "order must never live in both stores")
}

func TestRestoreDefaultsToReceived(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// An entry that predates status preservation carries no original status.
	require.NoError(t, f.binRepo.Insert(ctx, entity.DeletedOrder{
		Order:     entity.Order{Number: "WHS-090", CustomerName: "Old Entry"},
		DeletedAt: time.Now().UTC(),
	}))

	restored, err := f.svc.Restore(ctx, "WHS-090")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusReceived, restored.Status)
}

func TestRestoreMissingOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Restore(context.Background(), "WHS-404")
	assert.Equal(t, errorbank.KindNotFound, errorbank.From(err).Kind())
}

func TestPermanentDeleteExportsFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createOrder(t)
	_, err := f.svc.SoftDelete(ctx, created.Number, "nadia")
	require.NoError(t, err)

	ref, err := f.svc.PermanentDelete(ctx, created.Number, "nadia")
	require.NoError(t, err)
	require.NotEqual(t, ExportFailed, ref)

	if _, err := os.Stat(filepath.Join(f.exportsDir, ref)); err != nil {
		t.Fatalf("snapshot %q missing: %v", ref, err)
	}

	parked, err := f.svc.ListDeleted(ctx)
	require.NoError(t, err)
	assert.Empty(t, parked)

	_, err = f.svc.PermanentDelete(ctx, created.Number, "nadia")
	assert.Equal(t, errorbank.KindNotFound, errorbank.From(err).Kind())
}

func TestAutoCleanupPurgesOnlyExpiredEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 14, 2, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	require.NoError(t, f.binRepo.Insert(ctx, entity.DeletedOrder{
		Order:     entity.Order{Number: "WHS-010", CustomerName: "Stale"},
		DeletedAt: now.AddDate(0, 0, -8),
	}))
	require.NoError(t, f.binRepo.Insert(ctx, entity.DeletedOrder{
		Order:     entity.Order{Number: "WHS-011", CustomerName: "Fresh"},
		DeletedAt: now.AddDate(0, 0, -3),
	}))

	purged, err := f.svc.AutoCleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)
	assert.Equal(t, 1, f.snapshotCount(t), "each purged order gets exactly one snapshot")

	parked, err := f.svc.ListDeleted(ctx)
	require.NoError(t, err)
	require.Len(t, parked, 1)
	assert.Equal(t, "WHS-011", parked[0].Number)

	// A second run finds nothing expired and exports nothing new.
	purged, err = f.svc.AutoCleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, purged)
	assert.Equal(t, 1, f.snapshotCount(t))
}

func TestAutoCleanupOnEmptyBin(t *testing.T) {
	f := newFixture(t)

	purged, err := f.svc.AutoCleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, purged)
}

func TestStatsCountsExpiringSoon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 14, 2, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	require.NoError(t, f.binRepo.Insert(ctx, entity.DeletedOrder{
		Order:     entity.Order{Number: "WHS-020"},
		DeletedAt: now.AddDate(0, 0, -6),
	}))
	require.NoError(t, f.binRepo.Insert(ctx, entity.DeletedOrder{
		Order:     entity.Order{Number: "WHS-021"},
		DeletedAt: now.AddDate(0, 0, -1),
	}))

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ExpiringSoon)
}
