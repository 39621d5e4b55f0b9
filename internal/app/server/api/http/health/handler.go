package health

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

// Checker опрашивает хранилище и возвращает число интеграций
type Checker func(ctx context.Context) (int, error)

type Handler struct {
	probe      Checker
	log        *slog.Logger
	middleware huma.Middlewares
	now        func() time.Time
}

func NewHandler(probe Checker, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		probe:      probe,
		log:        log.With("component", "health"),
		middleware: middleware,
		now:        time.Now,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.healthCheckOp(), h.healthCheck)
}

func (h *Handler) healthCheck(ctx context.Context, _ *Input) (*Output, error) {
	out := &Output{Body: Response{Status: "OK"}}
	if h.probe == nil {
		return out, nil
	}

	start := h.now()
	n, err := h.probe(ctx)
	if err != nil {
		h.log.Error("Storage probe failed", slog.String("error", err.Error()))
		return nil, huma.Error503ServiceUnavailable("storage is unavailable")
	}

	out.Body.Storage = "OK"
	out.Body.Integrations = n
	out.Body.LatencyMS = h.now().Sub(start).Milliseconds()
	return out, nil
}
