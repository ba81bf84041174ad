package lookup

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wareshop/counter/internal/entity"
	repo "github.com/wareshop/counter/internal/repository/order"
	"github.com/wareshop/counter/pkg/errorbank"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	repository, err := repo.NewRepositoryAt(filepath.Join(t.TempDir(), "orders.json"))
	require.NoError(t, err)

	ctx := context.Background()
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repository.Insert(ctx, entity.Order{
		Number:        "WHS-001",
		CustomerName:  "Jane Perera",
		CustomerPhone: "077-123-4567",
		Items:         []entity.Item{{SKU: "HMR-16OZ", Qty: 1}},
		Status:        entity.StatusPacked,
		CreatedAt:     now,
		CreatedBy:     "kasun",
		History: []entity.StatusChange{
			{Status: entity.StatusReceived, ChangedAt: now, Staff: "kasun"},
			{Status: entity.StatusPacked, ChangedAt: now.Add(time.Hour), Staff: "nadia"},
		},
	}))
	require.NoError(t, repository.Insert(ctx, entity.Order{
		Number:        "WHS-002",
		CustomerName:  "Ruwan Silva",
		CustomerPhone: "011 555 9988",
		Status:        entity.StatusReceived,
		CreatedAt:     now,
	}))

	return NewService(repository)
}

func TestFindByOrderNumber(t *testing.T) {
	svc := newTestService(t)

	views, err := svc.Find(context.Background(), "whs-001")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "WHS-001", views[0].OrderNumber)
	assert.Equal(t, entity.StatusPacked, views[0].Status)
	assert.Len(t, views[0].History, 2)
}

func TestFindByPhoneFragment(t *testing.T) {
	svc := newTestService(t)

	// A bare digit fragment matches against the dashed stored phone.
	views, err := svc.Find(context.Background(), "1234567")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "WHS-001", views[0].OrderNumber)
}

func TestFindErrors(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Find(ctx, "   ")
	assert.Equal(t, errorbank.KindBadRequest, errorbank.From(err).Kind())

	_, err = svc.Find(ctx, "WHS-999")
	assert.Equal(t, errorbank.KindNotFound, errorbank.From(err).Kind())
}
