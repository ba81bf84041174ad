package audit

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"

	auditlog "github.com/wareshop/counter/internal/audit"
	"github.com/wareshop/counter/internal/auth"
	"github.com/wareshop/counter/internal/presentation/http/response"
	"github.com/wareshop/counter/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/wareshop/counter/transport/http/audit")

// Handler exposes the audit export endpoint.
type Handler struct {
	log *auditlog.Log
}

// NewHandler constructs an audit Handler.
func NewHandler(log *auditlog.Log) *Handler {
	return &Handler{log: log}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler, authSvc *auth.Service) {
	e.GET("/audit/export", h.export, authSvc.Middleware())
}

func (h *Handler) export(c echo.Context) error {
	_, span := httpTracer.Start(c.Request().Context(), "audit.export")
	defer span.End()

	content, err := h.log.Export()
	if err != nil {
		return response.New(c).WithError(errorbank.Internal("audit export failed", errorbank.WithCause(err))).Build()
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="audit.csv"`)
	return c.Blob(http.StatusOK, "text/csv", []byte(content))
}
