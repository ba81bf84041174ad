package audit

import (
	"go.uber.org/fx"

	"github.com/labstack/echo/v4"

	"github.com/wareshop/counter/internal/auth"
)

// Module wires the audit export handler.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(func(e *echo.Echo, h *Handler, authSvc *auth.Service) {
		Register(e, h, authSvc)
	}),
)
