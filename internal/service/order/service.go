package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/wareshop/counter/internal/audit"
	"github.com/wareshop/counter/internal/cache"
	"github.com/wareshop/counter/internal/config"
	"github.com/wareshop/counter/internal/dto"
	"github.com/wareshop/counter/internal/entity"
	"github.com/wareshop/counter/internal/messaging"
	repo "github.com/wareshop/counter/internal/repository/order"
	binrepo "github.com/wareshop/counter/internal/repository/recyclebin"
	"github.com/wareshop/counter/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/wareshop/counter/service/order")

// OrderEvent is emitted on the bus whenever an order changes.
type OrderEvent struct {
	Type        string    `json:"type"`
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status,omitempty"`
	Staff       string    `json:"staff,omitempty"`
	At          time.Time `json:"at"`
}

// Event types carried by OrderEvent.
const (
	EventOrderCreated  = "order.created"
	EventStatusChanged = "order.status_changed"
	EventOrderApproved = "order.approved"
	EventOrderDeleted  = "order.deleted"
	EventOrderRestored = "order.restored"
	EventOrderPurged   = "order.purged"
)

// CreateInput carries everything needed to open a new pickup order.
type CreateInput struct {
	CustomerName  string
	CustomerPhone string
	Items         []entity.Item
	PaymentMethod string
	StaffName     string
}

// Service enforces the order lifecycle: creation, status transitions,
// approvals and lookups over the active store.
type Service struct {
	repo      *repo.Repository
	bin       *binrepo.Repository
	cache     cache.Store
	cacheTTL  time.Duration
	audit     *audit.Log
	logger    *zap.Logger
	publisher messaging.Client
	publish   bool
	now       func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Bin        *binrepo.Repository
	Cache      cache.Store
	Audit      *audit.Log
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		repo:      p.Repository,
		bin:       p.Bin,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		audit:     p.Audit,
		logger:    p.Logger,
		publisher: p.Publisher,
		publish:   p.Config.Messaging.Enabled,
		now:       time.Now,
	}
}

// Create opens a new order. The number is allocated sequentially under the
// store lock, skipping numbers parked in the recycle bin.
func (s *Service) Create(ctx context.Context, in CreateInput) (entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Create")
	defer span.End()

	if err := validateCreate(in); err != nil {
		return entity.Order{}, err
	}

	reserved, err := s.bin.Numbers(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "recycle bin read failed")
		return entity.Order{}, errorbank.Internal("failed to allocate order number", errorbank.WithCause(err))
	}

	now := s.now().UTC()
	order := entity.Order{
		CustomerName:  strings.TrimSpace(in.CustomerName),
		CustomerPhone: strings.TrimSpace(in.CustomerPhone),
		Items:         in.Items,
		PaymentMethod: in.PaymentMethod,
		Status:        entity.StatusReceived,
		CreatedAt:     now,
		CreatedBy:     in.StaffName,
		Approvals:     []entity.Approval{},
		History: []entity.StatusChange{
			{Status: entity.StatusReceived, ChangedAt: now, Staff: in.StaffName},
		},
	}

	created, err := s.repo.Create(ctx, order, reserved)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return entity.Order{}, errorbank.Internal("failed to create order", errorbank.WithCause(err))
	}
	span.SetAttributes(attribute.String("order.number", created.Number))

	s.audit.Record(audit.ActionOrderCreated, created.Number, in.StaffName,
		fmt.Sprintf("customer=%s payment=%s items=%d", created.CustomerName, created.PaymentMethod, len(created.Items)))
	s.storeInCache(ctx, created)
	s.publishEvent(ctx, OrderEvent{
		Type: EventOrderCreated, OrderNumber: created.Number, Status: created.Status,
		Staff: in.StaffName, At: now,
	})

	return created, nil
}

// UpdateStatus sets the order status, optionally fills the invoice number and
// appends one history entry, all as a single store rewrite. Any status string
// is accepted; the counter workflow is not graph-validated.
func (s *Service) UpdateStatus(ctx context.Context, number, newStatus, staff, invoiceNumber string) (entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.UpdateStatus", trace.WithAttributes(
		attribute.String("order.number", number),
		attribute.String("order.status", newStatus),
	))
	defer span.End()

	if strings.TrimSpace(newStatus) == "" {
		return entity.Order{}, errorbank.BadRequest("status is required")
	}
	if strings.TrimSpace(staff) == "" {
		return entity.Order{}, errorbank.BadRequest("staff name is required")
	}

	now := s.now().UTC()
	updated, err := s.repo.Update(ctx, number, func(o *entity.Order) error {
		o.Status = newStatus
		if invoiceNumber != "" {
			o.InvoiceNumber = invoiceNumber
		}
		o.History = append(o.History, entity.StatusChange{Status: newStatus, ChangedAt: now, Staff: staff})
		return nil
	})
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return entity.Order{}, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return entity.Order{}, errorbank.Internal("failed to update status", errorbank.WithCause(err))
	}

	s.audit.Record(audit.ActionStatusUpdated, number, staff, fmt.Sprintf("status=%s", newStatus))
	s.storeInCache(ctx, updated)
	s.publishEvent(ctx, OrderEvent{
		Type: EventStatusChanged, OrderNumber: number, Status: newStatus, Staff: staff, At: now,
	})

	return updated, nil
}

// AddApproval records one staff sign-off and returns the new approval count.
// The third distinct approval on a still-received order promotes it to
// approved exactly once, with a SYSTEM-authored history entry.
func (s *Service) AddApproval(ctx context.Context, number, staff string) (int, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.AddApproval", trace.WithAttributes(attribute.String("order.number", number)))
	defer span.End()

	if strings.TrimSpace(staff) == "" {
		return 0, errorbank.BadRequest("staff name is required")
	}

	now := s.now().UTC()
	var count int
	var promoted bool
	updated, err := s.repo.Update(ctx, number, func(o *entity.Order) error {
		if o.ApprovedBy(staff) {
			return errorbank.Conflict("staff member already approved this order",
				errorbank.WithDetail("staff", staff))
		}
		o.Approvals = append(o.Approvals, entity.Approval{Staff: staff, ApprovedAt: now})
		count = len(o.Approvals)

		// The received-status guard makes the promotion fire once even when
		// approvals keep arriving past the threshold.
		if count == entity.ApprovalsRequired && o.Status == entity.StatusReceived {
			o.Status = entity.StatusApproved
			o.History = append(o.History, entity.StatusChange{
				Status:    entity.StatusApproved,
				ChangedAt: now,
				Staff:     entity.SystemActor,
			})
			promoted = true
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return 0, errorbank.NotFound("order not found")
		}
		var appErr *errorbank.AppError
		if errors.As(err, &appErr) && appErr.Kind() == errorbank.KindConflict {
			return 0, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return 0, errorbank.Internal("failed to add approval", errorbank.WithCause(err))
	}

	s.audit.Record(audit.ActionOrderApproved, number, staff, fmt.Sprintf("approvals=%d", count))
	s.publishEvent(ctx, OrderEvent{Type: EventOrderApproved, OrderNumber: number, Staff: staff, At: now})
	if promoted {
		s.audit.Record(audit.ActionStatusUpdated, number, entity.SystemActor,
			fmt.Sprintf("status=%s auto-promoted after %d approvals", entity.StatusApproved, entity.ApprovalsRequired))
		s.publishEvent(ctx, OrderEvent{
			Type: EventStatusChanged, OrderNumber: number, Status: entity.StatusApproved,
			Staff: entity.SystemActor, At: now,
		})
	}
	s.storeInCache(ctx, updated)

	return count, nil
}

// List returns every active order.
func (s *Service) List(ctx context.Context) ([]entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.List")
	defer span.End()

	orders, err := s.repo.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return orders, nil
}

// Get retrieves an order by number, consulting cache when available.
func (s *Service) Get(ctx context.Context, number string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.String("order.number", number)))
	defer span.End()

	if order, err := s.getFromCache(ctx, number); err == nil {
		return order, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		if s.logger != nil {
			s.logger.Warn("orders cache read failed", zap.String("number", number), zap.Error(err))
		}
	}

	order, err := s.repo.Get(ctx, number)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	s.storeInCache(ctx, *order)
	return order, nil
}

// Search filters the active store by free-text query and status. Status "all"
// or empty means unfiltered. The query matches customer name, order number or
// phone, case-insensitively; phone also matches on digits alone.
func (s *Service) Search(ctx context.Context, query, status string) ([]entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Search")
	defer span.End()

	orders, err := s.repo.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to search orders", errorbank.WithCause(err))
	}

	query = strings.ToLower(strings.TrimSpace(query))
	queryDigits := digitsOnly(query)
	filterStatus := status != "" && status != "all"

	matched := make([]entity.Order, 0, len(orders))
	for _, o := range orders {
		if filterStatus && o.Status != status {
			continue
		}
		if query != "" && !matchesQuery(o, query, queryDigits) {
			continue
		}
		matched = append(matched, o)
	}
	return matched, nil
}

// Stats returns total and per-status counts plus orders created today.
func (s *Service) Stats(ctx context.Context) (dto.OrderStats, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Stats")
	defer span.End()

	orders, err := s.repo.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return dto.OrderStats{}, errorbank.Internal("failed to compute stats", errorbank.WithCause(err))
	}

	stats := dto.OrderStats{Total: len(orders), ByStatus: make(map[string]int, len(entity.Statuses))}
	for _, st := range entity.Statuses {
		stats.ByStatus[st] = 0
	}
	today := s.now().UTC().Format("2006-01-02")
	for _, o := range orders {
		stats.ByStatus[o.Status]++
		if strings.HasPrefix(o.CreatedAt.UTC().Format(time.RFC3339), today) {
			stats.Today++
		}
	}
	return stats, nil
}

// Evict drops an order from the cache; used when it leaves the active store.
func (s *Service) Evict(ctx context.Context, number string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cacheKey(number)); err != nil && s.logger != nil {
		s.logger.Warn("orders cache evict failed", zap.String("number", number), zap.Error(err))
	}
}

func validateCreate(in CreateInput) error {
	if strings.TrimSpace(in.CustomerName) == "" {
		return errorbank.BadRequest("customer name is required")
	}
	if strings.TrimSpace(in.CustomerPhone) == "" {
		return errorbank.BadRequest("customer phone is required")
	}
	if len(in.Items) == 0 {
		return errorbank.BadRequest("at least one item is required")
	}
	for _, item := range in.Items {
		if item.SKU == "" || item.Qty <= 0 {
			return errorbank.BadRequest("items must carry a sku and a positive quantity")
		}
	}
	if strings.TrimSpace(in.PaymentMethod) == "" {
		return errorbank.BadRequest("payment method is required")
	}
	if strings.TrimSpace(in.StaffName) == "" {
		return errorbank.BadRequest("staff name is required")
	}
	return nil
}

func matchesQuery(o entity.Order, query, queryDigits string) bool {
	if strings.Contains(strings.ToLower(o.CustomerName), query) {
		return true
	}
	if strings.Contains(strings.ToLower(o.Number), query) {
		return true
	}
	if strings.Contains(strings.ToLower(o.CustomerPhone), query) {
		return true
	}
	if queryDigits != "" && strings.Contains(digitsOnly(o.CustomerPhone), queryDigits) {
		return true
	}
	return false
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

func cacheKey(number string) string {
	return "orders:" + number
}

func (s *Service) getFromCache(ctx context.Context, number string) (*entity.Order, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, cacheKey(number))
	if err != nil {
		return nil, err
	}
	var order entity.Order
	if err := json.Unmarshal(bytes, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) storeInCache(ctx context.Context, order entity.Order) {
	if s.cache == nil {
		return
	}
	bytes, err := json.Marshal(order)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(order.Number), bytes, s.cacheTTL); err != nil && s.logger != nil {
		s.logger.Warn("orders cache write failed", zap.String("number", order.Number), zap.Error(err))
	}
}

func (s *Service) publishEvent(ctx context.Context, event OrderEvent) {
	if !s.publish || s.publisher == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("marshal order event", zap.Error(err))
		}
		return
	}
	if err := s.publisher.Publish(ctx, []byte(event.OrderNumber), payload); err != nil {
		if s.logger != nil {
			s.logger.Error("publish order event", zap.String("type", event.Type), zap.Error(err))
		}
	}
}
