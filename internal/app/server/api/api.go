//GET  /api/v1/health                       # Состояние сервиса (публичный)
//GET  /api/v1/integrations                 # Список интеграций (auth)
//GET  /api/v1/integrations/{id}            # Интеграция (auth)
//GET  /api/v1/integrations/{id}/usage      # Вызовы API по месяцам (auth)
//POST /api/v1/integrations/{id}/sync       # Прогон синхронизации, SSE (auth)

package api

import (
	"context"

	healthAPI "airsync/internal/app/server/api/http/health"
	integrationAPI "airsync/internal/app/server/api/http/integration"
	"airsync/internal/app/server/api/http/middleware"
	"airsync/internal/app/server/api/http/middleware/auth"
	"airsync/internal/app/server/api/http/middleware/logger"
	syncAPI "airsync/internal/app/server/api/http/sync"
	"airsync/internal/domain/entity"
	"airsync/internal/domain/integration"
	"airsync/internal/domain/sync"
	"airsync/internal/infrastructure/secrets"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/slog"
)

// Deps зависимости HTTP API
type Deps struct {
	Repo         entity.Repository
	Integrations integration.Servicer
	Sync         sync.Servicer
	Secrets      secrets.Provider
	// APIToken bearer токен, пустой отключает проверку
	APIToken string
}

type Handlers struct {
	Health      *healthAPI.Handler
	Integration *integrationAPI.Handler
	Sync        *syncAPI.Handler
}

// New создает *chi.Mux с ВСЕМИ операциями через huma.Register
func New(deps Deps, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()

	config := huma.DefaultConfig("airsync API", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer"},
	}

	API := humachi.New(mux, config)

	h := handlers(deps, log)
	h.Health.SetupRoutes(API)
	h.Integration.SetupRoutes(API)
	h.Sync.SetupRoutes(API)

	return mux
}

func handlers(deps Deps, log *slog.Logger) *Handlers {
	authMW := auth.New(deps.APIToken, log)
	loggerMW := logger.New(log)
	middlewares := middleware.NewContainer()

	middlewares.Add(loggerMW.Middleware())
	healthHandler := healthAPI.NewHandler(storageCheck(deps.Repo), log, middlewares.GetAllAndClear())

	middlewares.Add(authMW.Middleware())
	middlewares.Add(loggerMW.Middleware())
	integrationHandler := integrationAPI.NewHandler(deps.Integrations, log, middlewares.GetAllAndClear())

	middlewares.Add(authMW.Middleware())
	middlewares.Add(loggerMW.Middleware())
	syncHandler := syncAPI.NewHandler(deps.Sync, deps.Secrets, log, middlewares.GetAllAndClear())

	return &Handlers{
		Health:      healthHandler,
		Integration: integrationHandler,
		Sync:        syncHandler,
	}
}

func storageCheck(repo entity.Repository) healthAPI.Checker {
	if repo == nil {
		return nil
	}
	return func(ctx context.Context) (int, error) {
		return repo.GetDataCount(ctx, entity.TypeIntegration, entity.Conditions{})
	}
}
