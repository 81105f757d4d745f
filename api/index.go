// Package handler is the serverless entry point. The app is built once per
// instance and reused across invocations.
package handler

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/amirasaad/giftfund/infra/initializer"
	"github.com/amirasaad/giftfund/pkg/app"
	"github.com/amirasaad/giftfund/pkg/config"
	"github.com/amirasaad/giftfund/webapi"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

var (
	once    sync.Once
	serve   http.HandlerFunc
	initErr error
)

// Handler is the main entry point of the application.
// Think of it like the main() method
func Handler(w http.ResponseWriter, r *http.Request) {
	// This is needed to set the proper request path in `*fiber.Ctx`
	r.RequestURI = r.URL.String()

	once.Do(func() {
		serve, initErr = build()
	})
	if initErr != nil {
		slog.Error("Failed to initialize application", "error", initErr)
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	serve.ServeHTTP(w, r)
}

func build() (http.HandlerFunc, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	deps, err := initializer.InitializeDependencies(cfg)
	if err != nil {
		return nil, err
	}
	return adaptor.FiberApp(webapi.SetupApp(app.New(deps, cfg))), nil
}
