package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"airsync/internal/domain/entity"
	"airsync/internal/infrastructure/migration"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/exp/slog"
)

// Store документное хранилище поверх одного файла sqlite.
// Документ лежит целиком в колонке doc, служебные колонки нужны для индексов.
type Store struct {
	db       *sql.DB
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

// New открывает базу, применяет миграции и возвращает хранилище
func New(ctx context.Context, path, migrations string, log *slog.Logger, opts ...Option) (*Store, error) {
	mg := migration.NewMigration(migration.Source{Driver: migration.DriverSQLite, Dir: migrations}, migration.SQLiteURL(path), nil)
	if err := mg.Up(); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}

	s := &Store{
		db:       db,
		log:      log.With(slog.String("component", "sqlite_store")),
		validate: entity.DefaultValidator,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// querier общий интерфейс *sql.DB и *sql.Tx
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) GetDatum(ctx context.Context, typ, id string) (*entity.Datum, error) {
	d, err := getDatum(ctx, s.db, typ, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("%s %s: %w", typ, id, entity.ErrNotFound)
	}
	return d, nil
}

func getDatum(ctx context.Context, q querier, typ, id string) (*entity.Datum, error) {
	var doc string
	err := q.QueryRowContext(ctx, `SELECT doc FROM data WHERE type = ? AND id = ?`, typ, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %s: %w", typ, id, err)
	}
	return decode(doc)
}

func (s *Store) GetData(ctx context.Context, typ string, cond entity.Conditions, opts entity.QueryOptions) ([]*entity.Datum, error) {
	query, args := selectQuery(typ, cond)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", typ, err)
	}
	defer rows.Close()

	var out []*entity.Datum
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", typ, err)
		}
		d, err := decode(doc)
		if err != nil {
			return nil, err
		}
		// колонки сужают выборку, окончательное решение за Match
		if cond.Match(d) {
			out = append(out, d)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", typ, err)
	}
	return opts.Apply(out), nil
}

func selectQuery(typ string, cond entity.Conditions) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT doc FROM data WHERE type = ?`)
	args := []any{typ}

	if !cond.WithDeleted {
		b.WriteString(` AND deleted = 0`)
	}
	if cond.IDs != nil {
		if len(cond.IDs) == 0 {
			b.WriteString(` AND 0`)
		} else {
			b.WriteString(` AND id IN (?` + strings.Repeat(`, ?`, len(cond.IDs)-1) + `)`)
			for _, id := range cond.IDs {
				args = append(args, id)
			}
		}
	}
	if !cond.UpdatedAfter.IsZero() {
		b.WriteString(` AND updated_at > ?`)
		args = append(args, cond.UpdatedAfter.UnixNano())
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

func (s *Store) SaveDatum(ctx context.Context, d *entity.Datum, opts entity.SaveOptions) (_ *entity.Datum, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.log.Error("Failed to rollback", slog.String("error", rbErr.Error()))
			}
		}
	}()

	var existing *entity.Datum
	if d.ID != "" {
		if existing, err = getDatum(ctx, tx, d.Type, d.ID); err != nil {
			return nil, err
		}
	}

	now := s.now()
	saved, err := entity.Prepare(existing, d, opts, now, s.validate)
	if err != nil {
		return nil, err
	}
	if err = upsert(ctx, tx, saved); err != nil {
		return nil, err
	}

	for _, rel := range entity.Related(existing, saved, opts) {
		prepared, perr := entity.Prepare(nil, rel, entity.SaveOptions{}, now, s.validate)
		if perr != nil {
			err = fmt.Errorf("failed to record %s: %w", rel.Type, perr)
			return nil, err
		}
		if err = upsert(ctx, tx, prepared); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit %s %s: %w", saved.Type, saved.ID, err)
	}
	return saved, nil
}

func upsert(ctx context.Context, q querier, d *entity.Datum) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode %s %s: %w", d.Type, d.ID, err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO data (type, id, created_at, updated_at, deleted, doc)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (type, id) DO UPDATE SET
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			deleted = excluded.deleted,
			doc = excluded.doc
	`, d.Type, d.ID, d.CreatedAt.UnixNano(), d.UpdatedAt.UnixNano(), d.Deleted, string(raw))
	if err != nil {
		return fmt.Errorf("failed to save %s %s: %w", d.Type, d.ID, err)
	}
	return nil
}

// PutAttachment регистрирует вложение документа
func (s *Store) PutAttachment(ctx context.Context, typ, id, name string, info entity.AttachmentInfo) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attachments (type, id, name, content_type, size, digest)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (type, id, name) DO UPDATE SET
			content_type = excluded.content_type,
			size = excluded.size,
			digest = excluded.digest
	`, typ, id, name, info.ContentType, info.Size, info.Digest)
	if err != nil {
		return fmt.Errorf("failed to save attachment %s of %s %s: %w", name, typ, id, err)
	}
	return nil
}

func (s *Store) GetAttachmentInfo(ctx context.Context, d *entity.Datum, name string) (*entity.AttachmentInfo, error) {
	var info entity.AttachmentInfo
	err := s.db.QueryRowContext(ctx, `
		SELECT content_type, size, digest FROM attachments
		WHERE type = ? AND id = ? AND name = ?
	`, d.Type, d.ID, name).Scan(&info.ContentType, &info.Size, &info.Digest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment %s of %s %s: %w", name, d.Type, d.ID, err)
	}
	return &info, nil
}

func decode(doc string) (*entity.Datum, error) {
	var d entity.Datum
	if err := json.Unmarshal([]byte(doc), &d); err != nil {
		return nil, fmt.Errorf("failed to decode datum: %w", err)
	}
	if d.Fields == nil {
		d.Fields = map[string]any{}
	}
	return &d, nil
}
