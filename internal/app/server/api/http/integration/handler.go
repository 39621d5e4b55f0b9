package integration

import (
	"context"
	"errors"

	"airsync/internal/domain/integration"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

type Handler struct {
	service    integration.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service integration.Servicer, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log,
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.listOp(), h.list)
	huma.Register(api, h.findOp(), h.find)
	huma.Register(api, h.usageOp(), h.usage)
}

func (h *Handler) list(ctx context.Context, _ *struct{}) (*listOutput, error) {
	intgs, err := h.service.List(ctx)
	if err != nil {
		h.log.Error("Failed to list integrations", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("failed to list integrations")
	}

	out := &listOutput{Body: listResponse{Integrations: make([]integration.Summary, 0, len(intgs))}}
	for _, intg := range intgs {
		out.Body.Integrations = append(out.Body.Integrations, intg.Summarize())
	}
	return out, nil
}

func (h *Handler) find(ctx context.Context, input *findInput) (*findOutput, error) {
	intg, err := h.service.Get(ctx, input.ID)
	if err != nil {
		return nil, h.toHTTP(err)
	}
	return &findOutput{Body: intg.Summarize()}, nil
}

func (h *Handler) usage(ctx context.Context, input *usageInput) (*usageOutput, error) {
	calls, err := h.service.Usage(ctx, input.ID)
	if err != nil {
		return nil, h.toHTTP(err)
	}

	resp := usageResponse{ID: input.ID, APICalls: map[string]int{}}
	for month, n := range calls {
		if input.Month != "" && month != input.Month {
			continue
		}
		resp.APICalls[month] = n
		resp.Total += n
	}
	return &usageOutput{Body: resp}, nil
}

func (h *Handler) toHTTP(err error) error {
	if errors.Is(err, integration.ErrNotFound) {
		return huma.Error404NotFound(err.Error())
	}
	h.log.Error("Integration request failed", slog.String("error", err.Error()))
	return huma.Error500InternalServerError("failed to load integration")
}
