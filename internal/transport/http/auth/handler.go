package auth

import (
	"github.com/labstack/echo/v4"

	authsvc "github.com/wareshop/counter/internal/auth"
	"github.com/wareshop/counter/internal/presentation/http/response"
	"github.com/wareshop/counter/pkg/errorbank"
)

// Handler exposes the staff login endpoint.
type Handler struct {
	svc *authsvc.Service
}

// NewHandler constructs an auth Handler.
func NewHandler(svc *authsvc.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	e.POST("/auth/login", h.login)
}

type loginPayload struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (h *Handler) login(c echo.Context) error {
	b := response.New(c)

	var payload loginPayload
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.Name == "" || payload.Password == "" {
		return b.WithError(errorbank.BadRequest("name and password are required")).Build()
	}

	token, err := h.svc.Login(payload.Name, payload.Password)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(map[string]string{"token": token}).Build()
}
