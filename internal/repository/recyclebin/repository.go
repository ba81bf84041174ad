package recyclebin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wareshop/counter/internal/config"
	"github.com/wareshop/counter/internal/entity"
	"github.com/wareshop/counter/internal/storage"
)

var repoTracer = otel.Tracer("github.com/wareshop/counter/repository/recyclebin")

// ErrNotFound is returned when an order is missing from the recycle bin.
var ErrNotFound = errors.New("deleted order not found")

// Repository owns the recycle-bin store document.
type Repository struct {
	col *storage.Collection[entity.DeletedOrder]
}

// NewRepository opens the recycle bin at the configured path.
func NewRepository(cfg config.Config) (*Repository, error) {
	return NewRepositoryAt(cfg.Storage.RecycleFile)
}

// NewRepositoryAt opens the recycle bin at an explicit path.
func NewRepositoryAt(path string) (*Repository, error) {
	col, err := storage.NewCollection[entity.DeletedOrder](path)
	if err != nil {
		return nil, err
	}
	return &Repository{col: col}, nil
}

// List returns every deleted order in the bin.
func (r *Repository) List(ctx context.Context) ([]entity.DeletedOrder, error) {
	_, span := repoTracer.Start(ctx, "RecycleBinRepository.List")
	defer span.End()

	items, err := r.col.All()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return nil, err
	}
	return items, nil
}

// Numbers returns the order numbers currently parked in the bin.
func (r *Repository) Numbers(ctx context.Context) ([]string, error) {
	items, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	numbers := make([]string, 0, len(items))
	for _, item := range items {
		numbers = append(numbers, item.Number)
	}
	return numbers, nil
}

// Insert parks a deleted order in the bin.
func (r *Repository) Insert(ctx context.Context, deleted entity.DeletedOrder) error {
	_, span := repoTracer.Start(ctx, "RecycleBinRepository.Insert", trace.WithAttributes(attribute.String("order.number", deleted.Number)))
	defer span.End()

	err := r.col.Mutate(func(items []entity.DeletedOrder) ([]entity.DeletedOrder, error) {
		for i := range items {
			if items[i].Number == deleted.Number {
				return nil, fmt.Errorf("order %s already in recycle bin", deleted.Number)
			}
		}
		return append(items, deleted), nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
	}
	return err
}

// Remove takes a deleted order out of the bin and returns it.
func (r *Repository) Remove(ctx context.Context, number string) (entity.DeletedOrder, error) {
	_, span := repoTracer.Start(ctx, "RecycleBinRepository.Remove", trace.WithAttributes(attribute.String("order.number", number)))
	defer span.End()

	var removed entity.DeletedOrder
	err := r.col.Mutate(func(items []entity.DeletedOrder) ([]entity.DeletedOrder, error) {
		for i := range items {
			if items[i].Number == number {
				removed = items[i]
				return append(items[:i], items[i+1:]...), nil
			}
		}
		return nil, ErrNotFound
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "write failed")
		}
		return entity.DeletedOrder{}, err
	}
	return removed, nil
}

// RemoveOlderThan drops every entry deleted at or before cutoff and persists
// only the kept set. The dropped entries are returned. Running it again on a
// clean bin removes nothing.
func (r *Repository) RemoveOlderThan(ctx context.Context, cutoff time.Time) ([]entity.DeletedOrder, error) {
	_, span := repoTracer.Start(ctx, "RecycleBinRepository.RemoveOlderThan")
	defer span.End()

	var dropped []entity.DeletedOrder
	err := r.col.Mutate(func(items []entity.DeletedOrder) ([]entity.DeletedOrder, error) {
		kept := items[:0]
		for _, item := range items {
			if !item.DeletedAt.After(cutoff) {
				dropped = append(dropped, item)
			} else {
				kept = append(kept, item)
			}
		}
		return kept, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("recyclebin.dropped", len(dropped)))
	return dropped, nil
}
