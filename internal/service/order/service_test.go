package order

import (
	"context"
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
	"github.com/wareshop/counter/internal/messaging"
	repo "github.com/wareshop/counter/internal/repository/order"
	binrepo "github.com/wareshop/counter/internal/repository/recyclebin"
	"github.com/wareshop/counter/pkg/errorbank"
)

func newTestService(t *testing.T) (*Service, *binrepo.Repository) {
	t.Helper()
	dir := t.TempDir()

	orders, err := repo.NewRepositoryAt(filepath.Join(dir, "orders.json"))
	require.NoError(t, err)
	bin, err := binrepo.NewRepositoryAt(filepath.Join(dir, "recycle_bin.json"))
	require.NoError(t, err)
	auditLog, err := audit.Open(filepath.Join(dir, "audit.log"), zap.NewNop())
	require.NoError(t, err)

	svc := NewService(Params{
		Repository: orders,
		Bin:        bin,
		Cache:      cache.NoopStore{},
		Audit:      auditLog,
		Config:     config.Config{},
		Logger:     zap.NewNop(),
		Publisher:  messaging.NoopClient{},
	})
	return svc, bin
}

func validInput() CreateInput {
	return CreateInput{
		CustomerName:  "Jane Perera",
		CustomerPhone: "077-123-4567",
		Items:         []entity.Item{{SKU: "HMR-16OZ", Name: "Claw hammer", Qty: 1}},
		PaymentMethod: "cash",
		StaffName:     "kasun",
	}
}

func TestCreateOpensReceivedOrder(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	assert.Equal(t, "WHS-001", created.Number)
	assert.Equal(t, entity.StatusReceived, created.Status)
	assert.Equal(t, "Jane Perera", created.CustomerName)
	assert.Empty(t, created.Approvals)
	require.Len(t, created.History, 1)
	assert.Equal(t, entity.StatusReceived, created.History[0].Status)
	assert.Equal(t, "kasun", created.History[0].Staff)

	second, err := svc.Create(ctx, validInput())
	require.NoError(t, err)
	assert.Equal(t, "WHS-002", second.Number)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := map[string]func(*CreateInput){
		"missing customer name":  func(in *CreateInput) { in.CustomerName = "  " },
		"missing customer phone": func(in *CreateInput) { in.CustomerPhone = "" },
		"no items":               func(in *CreateInput) { in.Items = nil },
		"item without sku":       func(in *CreateInput) { in.Items = []entity.Item{{Qty: 1}} },
		"zero quantity":          func(in *CreateInput) { in.Items = []entity.Item{{SKU: "X", Qty: 0}} },
		"missing payment method": func(in *CreateInput) { in.PaymentMethod = "" },
		"missing staff name":     func(in *CreateInput) { in.StaffName = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := validInput()
			mutate(&in)
			_, err := svc.Create(ctx, in)
			require.Error(t, err)
			assert.Equal(t, errorbank.KindBadRequest, errorbank.From(err).Kind())
		})
	}
}

func TestCreateSkipsRecycledNumbers(t *testing.T) {
	svc, bin := newTestService(t)
	ctx := context.Background()

	require.NoError(t, bin.Insert(ctx, entity.DeletedOrder{
		Order:     entity.Order{Number: "WHS-005"},
		DeletedAt: time.Now().UTC(),
	}))

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)
	assert.Equal(t, "WHS-006", created.Number)
}

func TestUpdateStatusAppendsHistory(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(ctx, created.Number, entity.StatusPacked, "nadia", "INV-9001")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPacked, updated.Status)
	assert.Equal(t, "INV-9001", updated.InvoiceNumber)
	require.Len(t, updated.History, 2)
	assert.Equal(t, entity.StatusPacked, updated.History[1].Status)
	assert.Equal(t, "nadia", updated.History[1].Staff)

	// Invoice survives later transitions that do not carry one.
	updated, err = svc.UpdateStatus(ctx, created.Number, entity.StatusReady, "nadia", "")
	require.NoError(t, err)
	assert.Equal(t, "INV-9001", updated.InvoiceNumber)
}

func TestUpdateStatusErrors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, "WHS-404", entity.StatusPacked, "nadia", "")
	assert.Equal(t, errorbank.KindNotFound, errorbank.From(err).Kind())

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, created.Number, "", "nadia", "")
	assert.Equal(t, errorbank.KindBadRequest, errorbank.From(err).Kind())
	_, err = svc.UpdateStatus(ctx, created.Number, entity.StatusPacked, "", "")
	assert.Equal(t, errorbank.KindBadRequest, errorbank.From(err).Kind())
}

func TestThirdApprovalPromotesOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	count, err := svc.AddApproval(ctx, created.Number, "asha")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	count, err = svc.AddApproval(ctx, created.Number, "bimal")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	got, err := svc.Get(ctx, created.Number)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusReceived, got.Status, "two approvals must not promote")

	count, err = svc.AddApproval(ctx, created.Number, "chamari")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	got, err = svc.Get(ctx, created.Number)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, got.Status)

	last := got.History[len(got.History)-1]
	assert.Equal(t, entity.StatusApproved, last.Status)
	assert.Equal(t, entity.SystemActor, last.Staff)

	// A fourth approval is recorded but must not promote again.
	count, err = svc.AddApproval(ctx, created.Number, "dilan")
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	got, err = svc.Get(ctx, created.Number)
	require.NoError(t, err)
	systemEntries := 0
	for _, h := range got.History {
		if h.Staff == entity.SystemActor {
			systemEntries++
		}
	}
	assert.Equal(t, 1, systemEntries)
}

func TestDuplicateApprovalRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	_, err = svc.AddApproval(ctx, created.Number, "asha")
	require.NoError(t, err)
	_, err = svc.AddApproval(ctx, created.Number, "asha")
	require.Error(t, err)
	assert.Equal(t, errorbank.KindConflict, errorbank.From(err).Kind())

	got, err := svc.Get(ctx, created.Number)
	require.NoError(t, err)
	assert.Len(t, got.Approvals, 1)
}

func TestApprovalOnMissingOrder(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.AddApproval(context.Background(), "WHS-404", "asha")
	assert.Equal(t, errorbank.KindNotFound, errorbank.From(err).Kind())
}

func TestSearch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	jane, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	other := validInput()
	other.CustomerName = "Ruwan Silva"
	other.CustomerPhone = "011 555 9988"
	ruwan, err := svc.Create(ctx, other)
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, ruwan.Number, entity.StatusPacked, "kasun", "")
	require.NoError(t, err)

	byName, err := svc.Search(ctx, "jane", "")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, jane.Number, byName[0].Number)

	// Phone matches on digits even when the stored format differs.
	byPhone, err := svc.Search(ctx, "1234567", "")
	require.NoError(t, err)
	require.Len(t, byPhone, 1)
	assert.Equal(t, jane.Number, byPhone[0].Number)

	byNumber, err := svc.Search(ctx, "whs-002", "")
	require.NoError(t, err)
	require.Len(t, byNumber, 1)
	assert.Equal(t, ruwan.Number, byNumber[0].Number)

	packed, err := svc.Search(ctx, "", entity.StatusPacked)
	require.NoError(t, err)
	require.Len(t, packed, 1)
	assert.Equal(t, ruwan.Number, packed[0].Number)

	all, err := svc.Search(ctx, "", "all")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	none, err := svc.Search(ctx, "nobody", "")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStats(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

	svc.now = func() time.Time { return base.AddDate(0, 0, -2) }
	_, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	svc.now = func() time.Time { return base }
	today, err := svc.Create(ctx, validInput())
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, today.Number, entity.StatusPacked, "kasun", "")
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Today)
	assert.Equal(t, 1, stats.ByStatus[entity.StatusReceived])
	assert.Equal(t, 1, stats.ByStatus[entity.StatusPacked])
	assert.Equal(t, 0, stats.ByStatus[entity.StatusCompleted])
}
