package order

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wareshop/counter/internal/config"
	"github.com/wareshop/counter/internal/entity"
	"github.com/wareshop/counter/internal/storage"
)

var repoTracer = otel.Tracer("github.com/wareshop/counter/repository/order")

// ErrNotFound is returned when an order is missing from the active store.
var ErrNotFound = errors.New("order not found")

// NumberPrefix is the fixed prefix of every order number.
const NumberPrefix = "WHS-"

// Repository owns the active-order store document.
type Repository struct {
	col *storage.Collection[entity.Order]
}

// NewRepository opens the active store at the configured path.
func NewRepository(cfg config.Config) (*Repository, error) {
	return NewRepositoryAt(cfg.Storage.OrdersFile)
}

// NewRepositoryAt opens the active store at an explicit path.
func NewRepositoryAt(path string) (*Repository, error) {
	col, err := storage.NewCollection[entity.Order](path)
	if err != nil {
		return nil, err
	}
	return &Repository{col: col}, nil
}

// List returns every active order.
func (r *Repository) List(ctx context.Context) ([]entity.Order, error) {
	_, span := repoTracer.Start(ctx, "OrderRepository.List")
	defer span.End()

	orders, err := r.col.All()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return nil, err
	}
	return orders, nil
}

// Get fetches one order by number.
func (r *Repository) Get(ctx context.Context, number string) (*entity.Order, error) {
	_, span := repoTracer.Start(ctx, "OrderRepository.Get", trace.WithAttributes(attribute.String("order.number", number)))
	defer span.End()

	orders, err := r.col.All()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return nil, err
	}
	for i := range orders {
		if orders[i].Number == number {
			return &orders[i], nil
		}
	}
	span.SetStatus(codes.Error, "not found")
	return nil, ErrNotFound
}

// Create appends a new order, allocating the next sequential number under the
// store's writer lock. reserved holds numbers that are taken elsewhere (the
// recycle bin) and must not be reissued.
func (r *Repository) Create(ctx context.Context, order entity.Order, reserved []string) (entity.Order, error) {
	_, span := repoTracer.Start(ctx, "OrderRepository.Create")
	defer span.End()

	var created entity.Order
	err := r.col.Mutate(func(orders []entity.Order) ([]entity.Order, error) {
		seq := 0
		for _, o := range orders {
			if n, ok := parseSequence(o.Number); ok && n > seq {
				seq = n
			}
		}
		for _, num := range reserved {
			if n, ok := parseSequence(num); ok && n > seq {
				seq = n
			}
		}
		order.Number = fmt.Sprintf("%s%03d", NumberPrefix, seq+1)
		created = order
		return append(orders, order), nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		return entity.Order{}, err
	}
	span.SetAttributes(attribute.String("order.number", created.Number))
	return created, nil
}

// Update applies fn to the order in place as a single read-mutate-rewrite.
func (r *Repository) Update(ctx context.Context, number string, fn func(*entity.Order) error) (entity.Order, error) {
	_, span := repoTracer.Start(ctx, "OrderRepository.Update", trace.WithAttributes(attribute.String("order.number", number)))
	defer span.End()

	var updated entity.Order
	err := r.col.Mutate(func(orders []entity.Order) ([]entity.Order, error) {
		for i := range orders {
			if orders[i].Number == number {
				if err := fn(&orders[i]); err != nil {
					return nil, err
				}
				updated = orders[i]
				return orders, nil
			}
		}
		return nil, ErrNotFound
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "write failed")
		}
		return entity.Order{}, err
	}
	return updated, nil
}

// Remove deletes the order from the active store and returns it.
func (r *Repository) Remove(ctx context.Context, number string) (entity.Order, error) {
	_, span := repoTracer.Start(ctx, "OrderRepository.Remove", trace.WithAttributes(attribute.String("order.number", number)))
	defer span.End()

	var removed entity.Order
	err := r.col.Mutate(func(orders []entity.Order) ([]entity.Order, error) {
		for i := range orders {
			if orders[i].Number == number {
				removed = orders[i]
				return append(orders[:i], orders[i+1:]...), nil
			}
		}
		return nil, ErrNotFound
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "write failed")
		}
		return entity.Order{}, err
	}
	return removed, nil
}

// Insert adds an order that already carries a number (restore path). It fails
// if the number is already present.
func (r *Repository) Insert(ctx context.Context, order entity.Order) error {
	_, span := repoTracer.Start(ctx, "OrderRepository.Insert", trace.WithAttributes(attribute.String("order.number", order.Number)))
	defer span.End()

	err := r.col.Mutate(func(orders []entity.Order) ([]entity.Order, error) {
		for i := range orders {
			if orders[i].Number == order.Number {
				return nil, fmt.Errorf("order %s already exists", order.Number)
			}
		}
		return append(orders, order), nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
	}
	return err
}

func parseSequence(number string) (int, bool) {
	rest, ok := strings.CutPrefix(number, NumberPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
