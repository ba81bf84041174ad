package recyclebin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/wareshop/counter/internal/audit"
	"github.com/wareshop/counter/internal/config"
	"github.com/wareshop/counter/internal/dto"
	"github.com/wareshop/counter/internal/entity"
	"github.com/wareshop/counter/internal/export"
	"github.com/wareshop/counter/internal/messaging"
	orderrepo "github.com/wareshop/counter/internal/repository/order"
	binrepo "github.com/wareshop/counter/internal/repository/recyclebin"
	ordersvc "github.com/wareshop/counter/internal/service/order"
	"github.com/wareshop/counter/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/wareshop/counter/service/recyclebin")

// ExportFailed is recorded as the export reference when writing the snapshot
// failed; the deletion itself still proceeds.
const ExportFailed = "failed"

// Service moves orders between the active store and the recycle bin, exports
// snapshots before permanent removal and runs the retention purge.
type Service struct {
	orders    *orderrepo.Repository
	bin       *binrepo.Repository
	exporter  *export.Exporter
	audit     *audit.Log
	lifecycle *ordersvc.Service
	logger    *zap.Logger
	publisher messaging.Client
	publish   bool
	retention config.Retention
	now       func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Orders    *orderrepo.Repository
	Bin       *binrepo.Repository
	Exporter  *export.Exporter
	Audit     *audit.Log
	Lifecycle *ordersvc.Service
	Config    config.Config
	Logger    *zap.Logger
	Publisher messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		orders:    p.Orders,
		bin:       p.Bin,
		exporter:  p.Exporter,
		audit:     p.Audit,
		lifecycle: p.Lifecycle,
		logger:    p.Logger,
		publisher: p.Publisher,
		publish:   p.Config.Messaging.Enabled,
		retention: p.Config.Retention,
		now:       time.Now,
	}
}

// SoftDelete moves an order from the active store into the bin, stamping
// deletion metadata. Returns the new bin count.
func (s *Service) SoftDelete(ctx context.Context, number, staff string) (int, error) {
	ctx, span := serviceTracer.Start(ctx, "RecycleBinService.SoftDelete", trace.WithAttributes(attribute.String("order.number", number)))
	defer span.End()

	order, err := s.orders.Remove(ctx, number)
	if err != nil {
		if errors.Is(err, orderrepo.ErrNotFound) {
			return 0, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "active store error")
		return 0, errorbank.Internal("failed to delete order", errorbank.WithCause(err))
	}

	now := s.now().UTC()
	deleted := entity.DeletedOrder{
		Order:          order,
		DeletedAt:      now,
		DeletedBy:      staff,
		OriginalStatus: order.Status,
	}
	if err := s.bin.Insert(ctx, deleted); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "recycle bin error")
		return 0, errorbank.Internal("failed to park order in recycle bin", errorbank.WithCause(err))
	}

	s.lifecycle.Evict(ctx, number)
	s.audit.Record(audit.ActionOrderDeleted, number, staff, fmt.Sprintf("original_status=%s", order.Status))
	s.publishEvent(ctx, ordersvc.OrderEvent{
		Type: ordersvc.EventOrderDeleted, OrderNumber: number, Status: order.Status, Staff: staff, At: now,
	})

	items, err := s.bin.List(ctx)
	if err != nil {
		return 0, errorbank.Internal("failed to count recycle bin", errorbank.WithCause(err))
	}
	return len(items), nil
}

// ListDeleted returns every order in the bin.
func (s *Service) ListDeleted(ctx context.Context) ([]entity.DeletedOrder, error) {
	ctx, span := serviceTracer.Start(ctx, "RecycleBinService.ListDeleted")
	defer span.End()

	items, err := s.bin.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "recycle bin error")
		return nil, errorbank.Internal("failed to list recycle bin", errorbank.WithCause(err))
	}
	return items, nil
}

// Restore moves an order back into the active store, recovering its
// pre-deletion status and stripping the deletion metadata.
func (s *Service) Restore(ctx context.Context, number string) (entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "RecycleBinService.Restore", trace.WithAttributes(attribute.String("order.number", number)))
	defer span.End()

	deleted, err := s.bin.Remove(ctx, number)
	if err != nil {
		if errors.Is(err, binrepo.ErrNotFound) {
			return entity.Order{}, errorbank.NotFound("order not in recycle bin")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "recycle bin error")
		return entity.Order{}, errorbank.Internal("failed to restore order", errorbank.WithCause(err))
	}

	order := deleted.Order
	order.Status = deleted.OriginalStatus
	if order.Status == "" {
		order.Status = entity.StatusReceived
	}

	if err := s.orders.Insert(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "active store error")
		return entity.Order{}, errorbank.Internal("failed to restore order", errorbank.WithCause(err))
	}

	now := s.now().UTC()
	s.audit.Record(audit.ActionOrderRestored, number, "", fmt.Sprintf("status=%s", order.Status))
	s.publishEvent(ctx, ordersvc.OrderEvent{
		Type: ordersvc.EventOrderRestored, OrderNumber: number, Status: order.Status, At: now,
	})
	return order, nil
}

// PermanentDelete exports a snapshot and removes the order from the bin. A
// failed export is logged and recorded but never blocks the removal.
func (s *Service) PermanentDelete(ctx context.Context, number, staff string) (string, error) {
	ctx, span := serviceTracer.Start(ctx, "RecycleBinService.PermanentDelete", trace.WithAttributes(attribute.String("order.number", number)))
	defer span.End()

	deleted, err := s.find(ctx, number)
	if err != nil {
		return "", err
	}

	ref := s.exportSnapshot(*deleted, export.ReasonPermanentDelete)

	if _, err := s.bin.Remove(ctx, number); err != nil {
		if errors.Is(err, binrepo.ErrNotFound) {
			return "", errorbank.NotFound("order not in recycle bin")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "recycle bin error")
		return "", errorbank.Internal("failed to remove order", errorbank.WithCause(err))
	}

	s.audit.Record(audit.ActionOrderPurged, number, staff, "export="+ref)
	s.publishEvent(ctx, ordersvc.OrderEvent{
		Type: ordersvc.EventOrderPurged, OrderNumber: number, Staff: staff, At: s.now().UTC(),
	})
	return ref, nil
}

// Stats reports the bin size and how many entries are close to the purge
// threshold.
func (s *Service) Stats(ctx context.Context) (dto.BinStats, error) {
	ctx, span := serviceTracer.Start(ctx, "RecycleBinService.Stats")
	defer span.End()

	items, err := s.bin.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "recycle bin error")
		return dto.BinStats{}, errorbank.Internal("failed to read recycle bin", errorbank.WithCause(err))
	}

	stats := dto.BinStats{Total: len(items)}
	expiringCutoff := s.now().UTC().Add(-time.Duration(s.retention.ExpiringDays) * 24 * time.Hour)
	for _, item := range items {
		if !item.DeletedAt.After(expiringCutoff) {
			stats.ExpiringSoon++
		}
	}
	return stats, nil
}

// AutoCleanup exports and drops every bin entry older than the retention
// window. Re-running on a clean bin is a no-op. Returns the purge count.
func (s *Service) AutoCleanup(ctx context.Context) (int, error) {
	ctx, span := serviceTracer.Start(ctx, "RecycleBinService.AutoCleanup")
	defer span.End()

	cutoff := s.now().UTC().Add(-time.Duration(s.retention.Days) * 24 * time.Hour)

	items, err := s.bin.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "recycle bin error")
		return 0, errorbank.Internal("failed to read recycle bin", errorbank.WithCause(err))
	}

	refs := make(map[string]string)
	for _, item := range items {
		if item.DeletedAt.After(cutoff) {
			continue
		}
		refs[item.Number] = s.exportSnapshot(item, export.ReasonRetentionPurge)
	}
	if len(refs) == 0 {
		return 0, nil
	}

	dropped, err := s.bin.RemoveOlderThan(ctx, cutoff)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "recycle bin error")
		return 0, errorbank.Internal("failed to purge recycle bin", errorbank.WithCause(err))
	}

	now := s.now().UTC()
	for _, item := range dropped {
		age := now.Sub(item.DeletedAt)
		s.audit.Record(audit.ActionOrderPurged, item.Number, "",
			fmt.Sprintf("retention purge after %dd export=%s", int(age.Hours()/24), refs[item.Number]))
		s.publishEvent(ctx, ordersvc.OrderEvent{
			Type: ordersvc.EventOrderPurged, OrderNumber: item.Number, At: now,
		})
	}
	span.SetAttributes(attribute.Int("recyclebin.purged", len(dropped)))
	return len(dropped), nil
}

func (s *Service) find(ctx context.Context, number string) (*entity.DeletedOrder, error) {
	items, err := s.bin.List(ctx)
	if err != nil {
		return nil, errorbank.Internal("failed to read recycle bin", errorbank.WithCause(err))
	}
	for i := range items {
		if items[i].Number == number {
			return &items[i], nil
		}
	}
	return nil, errorbank.NotFound("order not in recycle bin")
}

// exportSnapshot never fails the caller: losing the export is preferred over
// blocking the purge.
func (s *Service) exportSnapshot(deleted entity.DeletedOrder, reason string) string {
	ref, err := s.exporter.Export(deleted, reason)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("order export failed",
				zap.String("number", deleted.Number),
				zap.String("reason", reason),
				zap.Error(err),
			)
		}
		return ExportFailed
	}
	s.audit.Record(audit.ActionOrderExported, deleted.Number, "", fmt.Sprintf("reason=%s file=%s", reason, ref))
	return ref
}

func (s *Service) publishEvent(ctx context.Context, event ordersvc.OrderEvent) {
	if !s.publish || s.publisher == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := s.publisher.Publish(ctx, []byte(event.OrderNumber), payload); err != nil && s.logger != nil {
		s.logger.Error("publish order event", zap.String("type", event.Type), zap.Error(err))
	}
}
