package order

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/wareshop/counter/internal/entity"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	r, err := NewRepositoryAt(filepath.Join(t.TempDir(), "orders.json"))
	if err != nil {
		t.Fatalf("NewRepositoryAt error: %v", err)
	}
	return r
}

func TestCreateAllocatesSequentialNumbers(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	first, err := r.Create(ctx, entity.Order{CustomerName: "a"}, nil)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	second, err := r.Create(ctx, entity.Order{CustomerName: "b"}, nil)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if first.Number != "WHS-001" || second.Number != "WHS-002" {
		t.Fatalf("unexpected numbers: %q, %q", first.Number, second.Number)
	}
}

func TestCreateSkipsReservedNumbers(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	created, err := r.Create(ctx, entity.Order{CustomerName: "a"}, []string{"WHS-041"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if created.Number != "WHS-042" {
		t.Fatalf("reserved number not respected: %q", created.Number)
	}
}

func TestGetAndUpdate(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	created, err := r.Create(ctx, entity.Order{CustomerName: "a", Status: entity.StatusReceived}, nil)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	updated, err := r.Update(ctx, created.Number, func(o *entity.Order) error {
		o.Status = entity.StatusPacked
		return nil
	})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if updated.Status != entity.StatusPacked {
		t.Fatalf("update not applied: %+v", updated)
	}

	got, err := r.Get(ctx, created.Number)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Status != entity.StatusPacked {
		t.Fatalf("update not persisted: %+v", got)
	}

	if _, err := r.Get(ctx, "WHS-999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := r.Update(ctx, "WHS-999", func(o *entity.Order) error { return nil }); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRemoveAndInsert(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	created, err := r.Create(ctx, entity.Order{CustomerName: "a"}, nil)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	removed, err := r.Remove(ctx, created.Number)
	if err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if removed.Number != created.Number {
		t.Fatalf("removed wrong order: %+v", removed)
	}
	if _, err := r.Remove(ctx, created.Number); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double remove, got %v", err)
	}

	if err := r.Insert(ctx, removed); err != nil {
		t.Fatalf("Insert error: %v", err)
	}
	if err := r.Insert(ctx, removed); err == nil {
		t.Fatal("expected duplicate insert to fail")
	}

	orders, err := r.List(ctx)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected one order after reinsert, got %d", len(orders))
	}
}

func TestNumberingSurvivesGaps(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := r.Create(ctx, entity.Order{CustomerName: "x"}, nil); err != nil {
			t.Fatalf("Create error: %v", err)
		}
	}
	if _, err := r.Remove(ctx, "WHS-002"); err != nil {
		t.Fatalf("Remove error: %v", err)
	}

	// The gap left by WHS-002 is never reused while WHS-003 exists.
	created, err := r.Create(ctx, entity.Order{CustomerName: "y"}, nil)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if created.Number != "WHS-004" {
		t.Fatalf("expected WHS-004, got %q", created.Number)
	}
}
