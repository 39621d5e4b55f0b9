package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"airsync/internal/domain/entity"
	"airsync/internal/infrastructure/migration"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"
)

// Store документное хранилище PostgreSQL, документ хранится в jsonb
type Store struct {
	pool     *pgxpool.Pool
	log      *slog.Logger
	validate entity.Validator
	now      func() time.Time
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

// New подключается к базе, применяет миграции и возвращает хранилище
func New(ctx context.Context, databaseURI, migrations string, log *slog.Logger, opts ...Option) (*Store, error) {
	mg := migration.NewMigration(migration.Source{Driver: migration.DriverPostgres, Dir: migrations}, databaseURI, nil)
	if err := mg.Up(); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	pool, err := pgxpool.New(ctx, databaseURI)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Store{
		pool:     pool,
		log:      log.With(slog.String("component", "postgres_store")),
		validate: entity.DefaultValidator,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// querier общий интерфейс пула и транзакции
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (s *Store) GetDatum(ctx context.Context, typ, id string) (*entity.Datum, error) {
	d, err := getDatum(ctx, s.pool, typ, id, false)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("%s %s: %w", typ, id, entity.ErrNotFound)
	}
	return d, nil
}

func getDatum(ctx context.Context, q querier, typ, id string, forUpdate bool) (*entity.Datum, error) {
	query := `SELECT doc FROM data WHERE type = $1 AND id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var doc []byte
	err := q.QueryRow(ctx, query, typ, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %s: %w", typ, id, err)
	}
	return decode(doc)
}

func (s *Store) GetData(ctx context.Context, typ string, cond entity.Conditions, opts entity.QueryOptions) ([]*entity.Datum, error) {
	query, args := selectQuery(typ, cond)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", typ, err)
	}
	docs, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", typ, err)
	}

	var out []*entity.Datum
	for _, doc := range docs {
		d, err := decode(doc)
		if err != nil {
			return nil, err
		}
		// колонки сужают выборку, окончательное решение за Match
		if cond.Match(d) {
			out = append(out, d)
		}
	}
	return opts.Apply(out), nil
}

func selectQuery(typ string, cond entity.Conditions) (string, []any) {
	var b strings.Builder
	args := []any{typ}
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	b.WriteString(`SELECT doc FROM data WHERE type = $1`)
	if !cond.WithDeleted {
		b.WriteString(` AND NOT deleted`)
	}
	if cond.IDs != nil {
		b.WriteString(` AND id = ANY(` + arg(cond.IDs) + `)`)
	}
	if !cond.UpdatedAfter.IsZero() {
		b.WriteString(` AND updated_at > ` + arg(cond.UpdatedAfter.UnixNano()))
	}
	if cond.Linked != "" {
		b.WriteString(` AND doc->'integrations' ? ` + arg(cond.Linked))
	}
	b.WriteString(` ORDER BY seq`)
	return b.String(), args
}

func (s *Store) GetDataCount(ctx context.Context, typ string, cond entity.Conditions) (int, error) {
	data, err := s.GetData(ctx, typ, cond, entity.QueryOptions{})
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

func (s *Store) SaveDatum(ctx context.Context, d *entity.Datum, opts entity.SaveOptions) (*entity.Datum, error) {
	var saved *entity.Datum
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var existing *entity.Datum
		if d.ID != "" {
			var err error
			if existing, err = getDatum(ctx, tx, d.Type, d.ID, true); err != nil {
				return err
			}
		}

		now := s.now()
		var err error
		saved, err = entity.Prepare(existing, d, opts, now, s.validate)
		if err != nil {
			return err
		}
		if err := upsert(ctx, tx, saved); err != nil {
			return err
		}

		for _, rel := range entity.Related(existing, saved, opts) {
			prepared, err := entity.Prepare(nil, rel, entity.SaveOptions{}, now, s.validate)
			if err != nil {
				return fmt.Errorf("failed to record %s: %w", rel.Type, err)
			}
			if err := upsert(ctx, tx, prepared); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func upsert(ctx context.Context, q querier, d *entity.Datum) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode %s %s: %w", d.Type, d.ID, err)
	}
	_, err = q.Exec(ctx, `
		INSERT INTO data (type, id, created_at, updated_at, deleted, doc)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (type, id) DO UPDATE SET
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at,
			deleted = EXCLUDED.deleted,
			doc = EXCLUDED.doc
	`, d.Type, d.ID, d.CreatedAt.UnixNano(), d.UpdatedAt.UnixNano(), d.Deleted, raw)
	if err != nil {
		return fmt.Errorf("failed to save %s %s: %w", d.Type, d.ID, err)
	}
	return nil
}

// PutAttachment регистрирует вложение документа
func (s *Store) PutAttachment(ctx context.Context, typ, id, name string, info entity.AttachmentInfo) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO attachments (type, id, name, content_type, size, digest)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (type, id, name) DO UPDATE SET
			content_type = EXCLUDED.content_type,
			size = EXCLUDED.size,
			digest = EXCLUDED.digest
	`, typ, id, name, info.ContentType, info.Size, info.Digest)
	if err != nil {
		return fmt.Errorf("failed to save attachment %s of %s %s: %w", name, typ, id, err)
	}
	return nil
}

func (s *Store) GetAttachmentInfo(ctx context.Context, d *entity.Datum, name string) (*entity.AttachmentInfo, error) {
	var info entity.AttachmentInfo
	err := s.pool.QueryRow(ctx, `
		SELECT content_type, size, digest FROM attachments
		WHERE type = $1 AND id = $2 AND name = $3
	`, d.Type, d.ID, name).Scan(&info.ContentType, &info.Size, &info.Digest)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment %s of %s %s: %w", name, d.Type, d.ID, err)
	}
	return &info, nil
}

func decode(doc []byte) (*entity.Datum, error) {
	var d entity.Datum
	if err := json.Unmarshal(doc, &d); err != nil {
		return nil, fmt.Errorf("failed to decode datum: %w", err)
	}
	if d.Fields == nil {
		d.Fields = map[string]any{}
	}
	return &d, nil
}
