package lookup

import (
	"go.uber.org/fx"

	"github.com/labstack/echo/v4"
)

// Module wires the public lookup handler.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(func(e *echo.Echo, h *Handler) {
		Register(e, h)
	}),
)
