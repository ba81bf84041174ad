package app

import (
	"go.uber.org/fx"

	"github.com/wareshop/counter/internal/audit"
	"github.com/wareshop/counter/internal/auth"
	"github.com/wareshop/counter/internal/cache"
	"github.com/wareshop/counter/internal/config"
	"github.com/wareshop/counter/internal/export"
	"github.com/wareshop/counter/internal/logger"
	"github.com/wareshop/counter/internal/messaging"
	"github.com/wareshop/counter/internal/observability"
	repositoryorder "github.com/wareshop/counter/internal/repository/order"
	repositoryrecyclebin "github.com/wareshop/counter/internal/repository/recyclebin"
	"github.com/wareshop/counter/internal/scheduler"
	grpcserver "github.com/wareshop/counter/internal/server/grpc"
	httpserver "github.com/wareshop/counter/internal/server/http"
	servicelookup "github.com/wareshop/counter/internal/service/lookup"
	serviceorder "github.com/wareshop/counter/internal/service/order"
	servicerecyclebin "github.com/wareshop/counter/internal/service/recyclebin"
	transporthttp "github.com/wareshop/counter/internal/transport/http"
	"github.com/wareshop/counter/internal/worker"
	workerorder "github.com/wareshop/counter/internal/worker/order"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	logger.Module,
	audit.Module,
	export.Module,
	cache.Module,
	messaging.Module,
	observability.Module,
	auth.Module,
	repositoryorder.Module,
	repositoryrecyclebin.Module,
	serviceorder.Module,
	servicerecyclebin.Module,
	servicelookup.Module,
)

// HTTP wires the serving surface on top of the core modules, including the
// daily cleanup scheduler.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
	scheduler.Module,
)

// Worker exposes background order-event processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
