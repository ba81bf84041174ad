// Package lookup serves customer self-service order tracking. It only ever
// returns the public-safe view of an order.
package lookup

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"github.com/wareshop/counter/internal/dto"
	repo "github.com/wareshop/counter/internal/repository/order"
	"github.com/wareshop/counter/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/wareshop/counter/service/lookup")

// Service answers customer lookups against the active store.
type Service struct {
	repo *repo.Repository
}

// Module provides the lookup service to Fx.
var Module = fx.Provide(NewService)

// NewService wires a new Service instance.
func NewService(repository *repo.Repository) *Service {
	return &Service{repo: repository}
}

// Find matches q against order numbers (exact, case-insensitive) and customer
// phones (substring, digits compared digit-to-digit). Deleted orders are
// invisible here: the bin is never consulted.
func (s *Service) Find(ctx context.Context, q string) ([]dto.PublicOrderView, error) {
	ctx, span := serviceTracer.Start(ctx, "LookupService.Find", trace.WithAttributes(attribute.Int("query.len", len(q))))
	defer span.End()

	q = strings.TrimSpace(q)
	if q == "" {
		return nil, errorbank.BadRequest("order number or phone is required")
	}

	orders, err := s.repo.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("lookup failed", errorbank.WithCause(err))
	}

	lowered := strings.ToLower(q)
	digits := digitsOnly(q)

	var views []dto.PublicOrderView
	for _, o := range orders {
		if strings.ToLower(o.Number) == lowered {
			views = append(views, dto.ToPublicView(o))
			continue
		}
		if digits != "" && strings.Contains(digitsOnly(o.CustomerPhone), digits) {
			views = append(views, dto.ToPublicView(o))
		}
	}
	if len(views) == 0 {
		return nil, errorbank.NotFound("no matching order")
	}
	return views, nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
