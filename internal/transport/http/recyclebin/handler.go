package recyclebin

import (
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wareshop/counter/internal/auth"
	"github.com/wareshop/counter/internal/dto"
	"github.com/wareshop/counter/internal/presentation/http/response"
	service "github.com/wareshop/counter/internal/service/recyclebin"
	"github.com/wareshop/counter/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/wareshop/counter/transport/http/recyclebin")

// Handler exposes recycle-bin endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a recycle-bin Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance. Soft delete lives on the
// orders resource; everything else under /recycle-bin. All staff-facing.
func Register(e *echo.Echo, h *Handler, authSvc *auth.Service) {
	e.DELETE("/orders/:number", h.softDelete, authSvc.Middleware())

	g := e.Group("/recycle-bin", authSvc.Middleware())
	g.GET("", h.list)
	g.GET("/stats", h.stats)
	g.POST("/:number/restore", h.restore)
	g.DELETE("/:number", h.permanentDelete)
}

type deletePayload struct {
	StaffName string `json:"staff_name"`
}

func (h *Handler) softDelete(c echo.Context) error {
	b := response.New(c)

	var payload deletePayload
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	number := c.Param("number")
	ctx, span := httpTracer.Start(c.Request().Context(), "recyclebin.softDelete", trace.WithAttributes(attribute.String("order.number", number)))
	defer span.End()

	count, err := h.svc.SoftDelete(ctx, number, staffName(c, payload.StaffName))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(map[string]int{"recycle_bin_count": count}).Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "recyclebin.list")
	defer span.End()

	items, err := h.svc.ListDeleted(ctx)
	if err != nil {
		return b.WithError(err).Build()
	}
	views := make([]dto.DeletedOrderResponse, 0, len(items))
	for _, item := range items {
		views = append(views, dto.FromDeletedOrder(item))
	}
	return b.WithData(views).WithMeta("count", len(views)).Build()
}

func (h *Handler) restore(c echo.Context) error {
	b := response.New(c)

	number := c.Param("number")
	ctx, span := httpTracer.Start(c.Request().Context(), "recyclebin.restore", trace.WithAttributes(attribute.String("order.number", number)))
	defer span.End()

	order, err := h.svc.Restore(ctx, number)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) permanentDelete(c echo.Context) error {
	b := response.New(c)

	var payload deletePayload
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	number := c.Param("number")
	ctx, span := httpTracer.Start(c.Request().Context(), "recyclebin.permanentDelete", trace.WithAttributes(attribute.String("order.number", number)))
	defer span.End()

	ref, err := h.svc.PermanentDelete(ctx, number, staffName(c, payload.StaffName))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(map[string]string{"export": ref}).Build()
}

func (h *Handler) stats(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "recyclebin.stats")
	defer span.End()

	stats, err := h.svc.Stats(ctx)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(stats).Build()
}

func staffName(c echo.Context, fromBody string) string {
	if v, ok := c.Get(auth.StaffContextKey).(string); ok && v != "" {
		return v
	}
	return fromBody
}
