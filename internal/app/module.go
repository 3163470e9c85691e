package app

import (
	"time"

	"github.com/payflexi/reconciler/internal/app/api/server"
	"github.com/payflexi/reconciler/internal/app/service/checkout"
	"github.com/payflexi/reconciler/internal/app/service/eventlog"
	"github.com/payflexi/reconciler/internal/app/service/orders"
	"github.com/payflexi/reconciler/internal/app/service/reconcile"
	"github.com/payflexi/reconciler/internal/app/service/statistics"
	"github.com/payflexi/reconciler/internal/ledger"
	"github.com/payflexi/reconciler/internal/platform/db"
	"github.com/payflexi/reconciler/internal/platform/payflexi"
	"github.com/payflexi/reconciler/pkg/config"
	"github.com/payflexi/reconciler/pkg/logger"

	"go.uber.org/fx"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	ledger.Module,
	payflexi.Module,
	reconcile.Module,
	checkout.Module,
	eventlog.Module,
	orders.Module,
	statistics.Module,
	server.Module,
)
