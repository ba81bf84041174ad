package http

import (
	"go.uber.org/fx"

	audittransport "github.com/wareshop/counter/internal/transport/http/audit"
	authtransport "github.com/wareshop/counter/internal/transport/http/auth"
	lookuptransport "github.com/wareshop/counter/internal/transport/http/lookup"
	ordertransport "github.com/wareshop/counter/internal/transport/http/order"
	recyclebintransport "github.com/wareshop/counter/internal/transport/http/recyclebin"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	ordertransport.Module,
	recyclebintransport.Module,
	lookuptransport.Module,
	audittransport.Module,
	authtransport.Module,
)
