package lookup

import (
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"

	"github.com/wareshop/counter/internal/presentation/http/response"
	service "github.com/wareshop/counter/internal/service/lookup"
)

var httpTracer = otel.Tracer("github.com/wareshop/counter/transport/http/lookup")

// Handler exposes the public customer lookup endpoint.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a lookup Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance. Lookup is public: no auth.
func Register(e *echo.Echo, h *Handler) {
	e.GET("/lookup", h.find)
}

func (h *Handler) find(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "lookup.find")
	defer span.End()

	views, err := h.svc.Find(ctx, c.QueryParam("q"))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(views).WithMeta("count", len(views)).Build()
}
