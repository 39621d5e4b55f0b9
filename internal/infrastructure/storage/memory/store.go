package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"airsync/internal/domain/entity"
)

// Store хранилище документов в памяти. Используется в тестах и режиме STORAGE_DRIVER=memory.
type Store struct {
	mu          sync.RWMutex
	data        map[string]map[string]*entity.Datum
	order       map[string][]string
	validate    entity.Validator
	attachments map[string]*entity.AttachmentInfo
	now         func() time.Time
}

type Option func(*Store)

// WithValidator подменяет валидатор документов
func WithValidator(v entity.Validator) Option {
	return func(s *Store) { s.validate = v }
}

// WithClock подменяет источник времени
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		data:        map[string]map[string]*entity.Datum{},
		order:       map[string][]string{},
		validate:    entity.DefaultValidator,
		attachments: map[string]*entity.AttachmentInfo{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) GetDatum(_ context.Context, typ, id string) (*entity.Datum, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.data[typ][id]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", typ, id, entity.ErrNotFound)
	}
	return d.Clone(), nil
}

func (s *Store) GetData(_ context.Context, typ string, cond entity.Conditions, opts entity.QueryOptions) ([]*entity.Datum, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*entity.Datum
	for _, id := range s.order[typ] {
		d := s.data[typ][id]
		if cond.Match(d) {
			out = append(out, d.Clone())
		}
	}
	return opts.Apply(out), nil
}

func (s *Store) GetDataCount(ctx context.Context, typ string, cond entity.Conditions) (int, error) {
	data, err := s.GetData(ctx, typ, cond, entity.QueryOptions{})
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

func (s *Store) SaveDatum(_ context.Context, d *entity.Datum, opts entity.SaveOptions) (*entity.Datum, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing *entity.Datum
	if d.ID != "" {
		existing = s.data[d.Type][d.ID]
	}

	saved, err := entity.Prepare(existing, d, opts, s.now(), s.validate)
	if err != nil {
		return nil, err
	}
	s.put(saved)

	for _, rel := range entity.Related(existing, saved, opts) {
		prepared, err := entity.Prepare(nil, rel, entity.SaveOptions{}, s.now(), s.validate)
		if err != nil {
			return nil, fmt.Errorf("failed to record %s: %w", rel.Type, err)
		}
		s.put(prepared)
	}

	return saved.Clone(), nil
}

func (s *Store) put(d *entity.Datum) {
	if s.data[d.Type] == nil {
		s.data[d.Type] = map[string]*entity.Datum{}
	}
	if _, ok := s.data[d.Type][d.ID]; !ok {
		s.order[d.Type] = append(s.order[d.Type], d.ID)
	}
	s.data[d.Type][d.ID] = d
}

// PutAttachment регистрирует вложение документа
func (s *Store) PutAttachment(_ context.Context, typ, id, name string, info entity.AttachmentInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachments[attachmentKey(typ, id, name)] = &info
	return nil
}

func (s *Store) GetAttachmentInfo(_ context.Context, d *entity.Datum, name string) (*entity.AttachmentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.attachments[attachmentKey(d.Type, d.ID, name)]
	if !ok {
		return nil, nil
	}
	c := *info
	return &c, nil
}

func (s *Store) Close() error {
	return nil
}

func attachmentKey(typ, id, name string) string {
	return typ + "/" + id + "/" + name
}
