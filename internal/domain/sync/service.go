package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"airsync/internal/domain/entity"

	"golang.org/x/exp/slog"
)

// SecretAccessToken ключ токена доступа в секретах интеграции
const SecretAccessToken = "access_token"

// Options параметры одного прогона
type Options struct {
	IntegrationID string
	Secrets       map[string]string
	// FullSync игнорирует отметки прошлых прогонов и перепроверяет все связи с удаленными записями
	FullSync bool
}

// Config конфигурация сервиса синхронизации
type Config struct {
	// MaxPullRetries сколько раз повторять сохранение записи с ошибкой между прогонами
	MaxPullRetries int
	Now            func() time.Time
}

// Servicer интерфейс сервиса синхронизации
type Servicer interface {
	// Start возвращает итератор по снимкам прогона
	Start(ctx context.Context, opts Options) *Stream

	// Run выполняет прогон целиком, вызывая onProgress на каждом снимке
	Run(ctx context.Context, opts Options, onProgress func(Snapshot) error) (Snapshot, error)
}

// Service двусторонняя синхронизация локального хранилища с удаленной базой
type Service struct {
	repo     entity.Repository
	gateways GatewayFactory
	log      *slog.Logger
	config   *Config

	mu sync.Mutex
	// running интеграции с незавершенным прогоном
	running map[string]bool
}

// NewService создает новый сервис синхронизации
func NewService(repo entity.Repository, gateways GatewayFactory, log *slog.Logger, config *Config) *Service {
	if config == nil {
		config = &Config{}
	}
	if config.MaxPullRetries <= 0 {
		config.MaxPullRetries = 3
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &Service{
		repo:     repo,
		gateways: gateways,
		log:      log.With("component", "sync_service"),
		config:   config,
		running:  map[string]bool{},
	}
}

// acquire занимает интеграцию на время прогона
func (s *Service) acquire(id string) (release func(), ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[id] {
		return nil, false
	}
	s.running[id] = true
	return func() {
		s.mu.Lock()
		delete(s.running, id)
		s.mu.Unlock()
	}, true
}

func (s *Service) Start(ctx context.Context, opts Options) *Stream {
	return newStream(ctx, func(ctx context.Context, emit func(Snapshot) error) (Snapshot, error, error) {
		return s.execute(ctx, opts, emit)
	})
}

func (s *Service) Run(ctx context.Context, opts Options, onProgress func(Snapshot) error) (Snapshot, error) {
	snap, runErr, saveErr := s.execute(ctx, opts, onProgress)
	return snap, errors.Join(runErr, saveErr)
}

// execute выполняет прогон. saveErr ошибка сохранения состояния интеграции, которое
// выполняется после создания шлюза независимо от результата и отмены контекста.
func (s *Service) execute(ctx context.Context, opts Options, onProgress func(Snapshot) error) (snap Snapshot, runErr, saveErr error) {
	r := &run{
		repo:       s.repo,
		gateways:   s.gateways,
		log:        s.log.With("integration_id", opts.IntegrationID),
		config:     s.config,
		opts:       opts,
		onProgress: onProgress,
	}
	r.snap.Status = StatusInitializing

	release, ok := s.acquire(opts.IntegrationID)
	if !ok {
		return r.snap.Clone(), fmt.Errorf("%w: %s", ErrSyncInProgress, opts.IntegrationID), nil
	}
	defer release()

	if err := r.emit(ctx); err != nil {
		return r.snap.Clone(), err, nil
	}
	if err := r.prepare(ctx); err != nil {
		return r.snap.Clone(), err, nil
	}

	defer func() {
		saveErr = r.finish(context.WithoutCancel(ctx))
		snap = r.snap.Clone()
	}()

	if runErr = r.sync(ctx); runErr != nil {
		r.log.Error("Sync failed", "error", runErr)
	}
	return snap, runErr, nil
}
