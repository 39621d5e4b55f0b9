package integration

import (
	"context"
	"errors"
	"fmt"

	"airsync/internal/domain/entity"

	"golang.org/x/exp/slog"
)

// Servicer интерфейс сервиса интеграций
type Servicer interface {
	Get(ctx context.Context, id string) (*Integration, error)
	List(ctx context.Context) ([]*Integration, error)
	Create(ctx context.Context, req CreateRequest) (*Integration, error)
	Save(ctx context.Context, intg *Integration) (*Integration, error)
	Usage(ctx context.Context, id string) (map[string]int, error)
}

// Service реализация сервиса интеграций поверх документного хранилища
type Service struct {
	repo entity.Repository
	log  *slog.Logger
}

// NewService создает новый сервис интеграций
func NewService(repo entity.Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With("component", "integration_service"),
	}
}

func (s *Service) Get(ctx context.Context, id string) (*Integration, error) {
	d, err := s.repo.GetDatum(ctx, entity.TypeIntegration, id)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}
	if d.Deleted {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return FromDatum(d)
}

func (s *Service) List(ctx context.Context) ([]*Integration, error) {
	data, err := s.repo.GetData(ctx, entity.TypeIntegration, entity.Conditions{}, entity.QueryOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}

	out := make([]*Integration, 0, len(data))
	for _, d := range data {
		intg, err := FromDatum(d)
		if err != nil {
			s.log.Warn("Skipping malformed integration", "id", d.ID, "error", err)
			continue
		}
		out = append(out, intg)
	}
	return out, nil
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*Integration, error) {
	if err := req.Config.Validate(); err != nil {
		return nil, err
	}
	if req.Name == "" {
		req.Name = req.Config.BaseID
	}

	intg := &Integration{
		ID:     req.ID,
		Name:   req.Name,
		Type:   TypeAirtable,
		Config: req.Config,
	}
	saved, err := s.Save(ctx, intg)
	if err != nil {
		return nil, err
	}

	s.log.Info("Integration created", "id", saved.ID, "base_id", saved.Config.BaseID)
	return saved, nil
}

func (s *Service) Save(ctx context.Context, intg *Integration) (*Integration, error) {
	d, err := intg.ToDatum()
	if err != nil {
		return nil, err
	}
	saved, err := s.repo.SaveDatum(ctx, d, entity.SaveOptions{SkipValidation: true})
	if err != nil {
		return nil, fmt.Errorf("failed to save integration: %w", err)
	}
	return FromDatum(saved)
}

func (s *Service) Usage(ctx context.Context, id string) (map[string]int, error) {
	intg, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(intg.Data.APICalls))
	for k, v := range intg.Data.APICalls {
		out[k] = v
	}
	return out, nil
}
