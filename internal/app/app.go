package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"airsync/internal/app/server/api"
	"airsync/internal/config"
	"airsync/internal/domain/integration"
	"airsync/internal/domain/sync"
	"airsync/internal/infrastructure/airtable"
	"airsync/internal/infrastructure/secrets"
	"airsync/internal/infrastructure/storage"

	"golang.org/x/exp/slog"
)

// ErrNoSecretsFile токен некуда сохранить
var ErrNoSecretsFile = errors.New("secrets file is not configured")

// App собранное приложение: хранилище, сервисы и источники секретов
type App struct {
	config       *config.Config
	log          *slog.Logger
	store        storage.Store
	secretsFile  *secrets.FileProvider
	Secrets      secrets.Provider
	Integrations *integration.Service
	Sync         *sync.Service
}

type Option func(*appOptions)

type appOptions struct {
	store    storage.Store
	gateways sync.GatewayFactory
}

// WithStore использует готовое хранилище вместо открытия по конфигурации
func WithStore(s storage.Store) Option {
	return func(o *appOptions) { o.store = s }
}

// WithGateways подменяет фабрику шлюзов
func WithGateways(f sync.GatewayFactory) Option {
	return func(o *appOptions) { o.gateways = f }
}

func New(ctx context.Context, cfg *config.Config, log *slog.Logger, opts ...Option) (*App, error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	store := o.store
	if store == nil {
		var err error
		store, err = storage.Open(ctx, cfg.Storage, log)
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
	}

	gateways := o.gateways
	if gateways == nil {
		gateways = sync.AirtableGateways(log,
			airtable.WithBaseURL(cfg.Airtable.BaseURL),
			airtable.WithLimits(airtable.Limits{
				MinInterval: cfg.Airtable.MinInterval,
				RetryDelay:  cfg.Airtable.RetryDelay,
				MaxRetries:  cfg.Airtable.MaxRetries,
			}),
		)
	}

	a := &App{
		config:       cfg,
		log:          log,
		store:        store,
		Integrations: integration.NewService(store, log),
		Sync: sync.NewService(store, gateways, log, &sync.Config{
			MaxPullRetries: cfg.Sync.MaxPullRetries,
		}),
	}

	// переменные окружения главнее файла
	chain := secrets.Chain{secrets.NewEnvProvider()}
	if cfg.Secrets.File != "" {
		a.secretsFile = secrets.NewFileProvider(cfg.Secrets.File, cfg.Secrets.Passphrase)
		chain = append(chain, a.secretsFile)
	}
	a.Secrets = chain

	return a, nil
}

// SaveToken сохраняет токен доступа интеграции в зашифрованный файл секретов
func (a *App) SaveToken(ctx context.Context, integrationID, token string) error {
	if a.secretsFile == nil {
		return ErrNoSecretsFile
	}
	return a.secretsFile.Put(ctx, integrationID, map[string]string{sync.SecretAccessToken: token})
}

// Handler HTTP API приложения
func (a *App) Handler() http.Handler {
	return api.New(api.Deps{
		Repo:         a.store,
		Integrations: a.Integrations,
		Sync:         a.Sync,
		Secrets:      a.Secrets,
		APIToken:     a.config.Server.APIToken,
	}, a.log)
}

// StartSync запускает прогон с секретами из настроенных источников.
// Вызывающий читает снимки из потока и обязан его закрыть.
func (a *App) StartSync(ctx context.Context, integrationID string, full bool) (*sync.Stream, error) {
	creds, err := a.Secrets.Resolve(ctx, integrationID)
	if err != nil && !errors.Is(err, secrets.ErrNotFound) {
		return nil, fmt.Errorf("failed to resolve secrets: %w", err)
	}
	return a.Sync.Start(ctx, sync.Options{
		IntegrationID: integrationID,
		Secrets:       creds,
		FullSync:      full,
	}), nil
}

// RunSync выполняет прогон до конца. Ошибка onProgress отменяет прогон.
func (a *App) RunSync(ctx context.Context, integrationID string, full bool, onProgress func(sync.Snapshot) error) (sync.Snapshot, error) {
	stream, err := a.StartSync(ctx, integrationID, full)
	if err != nil {
		return sync.Snapshot{}, err
	}
	defer stream.Close()

	for stream.Next() {
		if onProgress == nil {
			continue
		}
		if err := onProgress(stream.Snapshot()); err != nil {
			closeErr := stream.Close()
			return stream.Snapshot(), errors.Join(err, closeErr)
		}
	}
	return stream.Snapshot(), stream.Err()
}

func (a *App) Close() error {
	return a.store.Close()
}
