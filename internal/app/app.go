package app

import (
	"go.uber.org/fx"

	"github.com/homefleet/shoplist/internal/cache"
	"github.com/homefleet/shoplist/internal/config"
	"github.com/homefleet/shoplist/internal/extractor"
	"github.com/homefleet/shoplist/internal/logger"
	"github.com/homefleet/shoplist/internal/messaging"
	"github.com/homefleet/shoplist/internal/observability"
	repositoryorder "github.com/homefleet/shoplist/internal/repository/order"
	httpserver "github.com/homefleet/shoplist/internal/server/http"
	serviceintake "github.com/homefleet/shoplist/internal/service/intake"
	servicelist "github.com/homefleet/shoplist/internal/service/list"
	"github.com/homefleet/shoplist/internal/sheet"
	"github.com/homefleet/shoplist/internal/speech"
	transporthttp "github.com/homefleet/shoplist/internal/transport/http"
	"github.com/homefleet/shoplist/internal/worker"
	workerorder "github.com/homefleet/shoplist/internal/worker/order"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	logger.Module,
	observability.Module,
	cache.Module,
	messaging.Module,
	sheet.Module,
	repositoryorder.Module,
	speech.Module,
	extractor.Module,
	servicelist.Module,
	serviceintake.Module,
)

// HTTP wires the HTTP transport on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	transporthttp.Module,
)

// Worker exposes background event processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
