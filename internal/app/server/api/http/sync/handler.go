package sync

import (
	"context"
	"errors"

	domainsync "airsync/internal/domain/sync"
	"airsync/internal/infrastructure/secrets"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"golang.org/x/exp/slog"
)

type Handler struct {
	service    domainsync.Servicer
	secrets    secrets.Provider
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service domainsync.Servicer, provider secrets.Provider, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		secrets:    provider,
		log:        log.With(slog.String("component", "sync_handler")),
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	sse.Register(api, h.runOp(), map[string]any{
		"progress": ProgressEvent{},
		"done":     DoneEvent{},
		"error":    ErrorEvent{},
	}, h.run)
}

func (h *Handler) run(ctx context.Context, input *runInput, send sse.Sender) {
	creds, err := h.secrets.Resolve(ctx, input.ID)
	if err != nil && !errors.Is(err, secrets.ErrNotFound) {
		h.log.Error("Failed to resolve secrets", slog.String("integration_id", input.ID), slog.String("error", err.Error()))
		h.send(send, ErrorEvent{Message: "failed to resolve secrets"})
		return
	}

	opts := domainsync.Options{
		IntegrationID: input.ID,
		Secrets:       creds,
		FullSync:      input.Full,
	}
	final, err := h.service.Run(ctx, opts, func(snap domainsync.Snapshot) error {
		// клиент отключился, прогон отменяется через ошибку отправки
		return send.Data(ProgressEvent{Snapshot: snap})
	})
	if err != nil {
		h.log.Warn("Sync run failed", slog.String("integration_id", input.ID), slog.String("error", err.Error()))
		h.send(send, ErrorEvent{Message: err.Error(), Snapshot: &final})
		return
	}

	h.send(send, DoneEvent{Snapshot: final})
}

func (h *Handler) send(send sse.Sender, event any) {
	if err := send.Data(event); err != nil {
		h.log.Debug("Client is gone", slog.String("error", err.Error()))
	}
}
