package app

import (
	"log/slog"
	"net/http"

	"github.com/amirasaad/giftfund/pkg/cache"
	"github.com/amirasaad/giftfund/pkg/config"
	"github.com/amirasaad/giftfund/pkg/eventbus"
	"github.com/amirasaad/giftfund/pkg/provider/connect"
	repo "github.com/amirasaad/giftfund/pkg/repository/custodial"
	"github.com/amirasaad/giftfund/pkg/service/custodial"
)

// Metrics is the observability surface shared by the bus handlers and the
// HTTP layer.
type Metrics interface {
	ObserveWebhook(eventType, result string)
	ObserveEvent(eventType string)
	Handler() http.Handler
}

// Deps contains everything the services are built from.
type Deps struct {
	Accounts repo.AccountRepository
	Profiles repo.ProfileRepository
	Gateway  connect.Gateway
	Locker   cache.Locker
	EventBus eventbus.Bus
	Metrics  Metrics
	Logger   *slog.Logger
}

type App struct {
	Deps             *Deps
	Config           *config.App
	CustodialService *custodial.Service
}

func New(deps *Deps, cfg *config.App) *App {
	app := &App{
		Deps:   deps,
		Config: cfg,
	}
	app.setupEventBus()

	app.CustodialService = custodial.New(custodial.Deps{
		Accounts: deps.Accounts,
		Profiles: deps.Profiles,
		Gateway:  deps.Gateway,
		Locker:   deps.Locker,
		Bus:      deps.EventBus,
		Logger:   deps.Logger,
	}, custodial.ConfigFrom(cfg))
	return app
}
