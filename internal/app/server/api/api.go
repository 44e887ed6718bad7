// POST /webhook/apple     # Прием пакетов данных здоровья (x-api-key)
// GET  /api/v1/health     # Проверка доступности (публичный)

package api

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/slog"

	"healthsync/internal/app/server/api/http/health"
	"healthsync/internal/app/server/api/http/middleware"
	"healthsync/internal/app/server/api/http/middleware/auth"
	"healthsync/internal/app/server/api/http/middleware/logger"
	"healthsync/internal/app/server/api/http/webhook"
	"healthsync/internal/domain/ingest"
)

// Deps внешние зависимости API
type Deps struct {
	DB           health.Pinger
	Ingest       ingest.Servicer
	Clients      ingest.ClientServicer
	MaxBodyBytes int64
}

type Handlers struct {
	Health  *health.Handler
	Webhook *webhook.Handler
}

// New создает *chi.Mux с ВСЕМИ операциями через huma.Register
func New(deps Deps, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()

	config := huma.DefaultConfig("HealthSync API", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"apiKey": {Type: "apiKey", In: "header", Name: auth.APIKeyHeader},
	}

	API := humachi.New(mux, config)

	h := handlers(deps, log)
	h.Health.SetupRoutes(API)
	h.Webhook.SetupRoutes(API)

	return mux
}

func handlers(deps Deps, log *slog.Logger) *Handlers {
	authMW := auth.New(deps.Clients, log)
	loggerMW := logger.New(log)
	middlewares := middleware.NewContainer()

	middlewares.Add(loggerMW.Middleware())
	healthHandler := health.NewHandler(deps.DB, log, middlewares.GetAllAndClear())

	middlewares.Add(loggerMW.Middleware())
	middlewares.Add(authMW.Middleware())
	webhookHandler := webhook.NewHandler(deps.Ingest, log, middlewares.GetAllAndClear(), deps.MaxBodyBytes)

	return &Handlers{
		Health:  healthHandler,
		Webhook: webhookHandler,
	}
}
