package order

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wareshop/counter/internal/auth"
	"github.com/wareshop/counter/internal/dto"
	"github.com/wareshop/counter/internal/entity"
	"github.com/wareshop/counter/internal/presentation/http/response"
	service "github.com/wareshop/counter/internal/service/order"
	"github.com/wareshop/counter/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/wareshop/counter/transport/http/order")

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance. Everything under /orders
// is staff-facing and sits behind the auth middleware.
func Register(e *echo.Echo, h *Handler, authSvc *auth.Service) {
	g := e.Group("/orders", authSvc.Middleware())
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/stats", h.stats)
	g.GET("/:number", h.get)
	g.PUT("/:number/status", h.updateStatus)
	g.POST("/:number/approvals", h.addApproval)
}

type createPayload struct {
	CustomerName  string        `json:"customer_name"`
	CustomerPhone string        `json:"customer_phone"`
	Items         []entity.Item `json:"items"`
	PaymentMethod string        `json:"payment_method"`
	StaffName     string        `json:"staff_name"`
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload createPayload
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create")
	defer span.End()

	order, err := h.svc.Create(ctx, service.CreateInput{
		CustomerName:  payload.CustomerName,
		CustomerPhone: payload.CustomerPhone,
		Items:         payload.Items,
		PaymentMethod: payload.PaymentMethod,
		StaffName:     staffName(c, payload.StaffName),
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	span.SetAttributes(attribute.String("order.number", order.Number))

	return b.WithStatus(http.StatusCreated).WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.list")
	defer span.End()

	query := c.QueryParam("q")
	status := c.QueryParam("status")

	orders, err := h.svc.Search(ctx, query, status)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrders(orders)).WithMeta("count", len(orders)).Build()
}

func (h *Handler) get(c echo.Context) error {
	b := response.New(c)

	number := c.Param("number")
	ctx, span := httpTracer.Start(c.Request().Context(), "orders.get", trace.WithAttributes(attribute.String("order.number", number)))
	defer span.End()

	order, err := h.svc.Get(ctx, number)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrder(*order)).Build()
}

type statusPayload struct {
	Status        string `json:"status"`
	StaffName     string `json:"staff_name"`
	InvoiceNumber string `json:"invoice_number"`
}

func (h *Handler) updateStatus(c echo.Context) error {
	b := response.New(c)

	var payload statusPayload
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	number := c.Param("number")
	ctx, span := httpTracer.Start(c.Request().Context(), "orders.updateStatus", trace.WithAttributes(
		attribute.String("order.number", number),
		attribute.String("order.status", payload.Status),
	))
	defer span.End()

	order, err := h.svc.UpdateStatus(ctx, number, payload.Status, staffName(c, payload.StaffName), payload.InvoiceNumber)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrder(order)).Build()
}

type approvalPayload struct {
	StaffName string `json:"staff_name"`
}

func (h *Handler) addApproval(c echo.Context) error {
	b := response.New(c)

	var payload approvalPayload
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	number := c.Param("number")
	ctx, span := httpTracer.Start(c.Request().Context(), "orders.addApproval", trace.WithAttributes(attribute.String("order.number", number)))
	defer span.End()

	count, err := h.svc.AddApproval(ctx, number, staffName(c, payload.StaffName))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(map[string]int{"approvals": count}).Build()
}

func (h *Handler) stats(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.stats")
	defer span.End()

	stats, err := h.svc.Stats(ctx)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(stats).Build()
}

// staffName prefers the authenticated identity over the request body.
func staffName(c echo.Context, fromBody string) string {
	if v, ok := c.Get(auth.StaffContextKey).(string); ok && v != "" {
		return v
	}
	return fromBody
}
