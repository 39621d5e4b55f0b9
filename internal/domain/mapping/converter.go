package mapping

import (
	"context"
	"fmt"
	"strings"
	"time"

	"airsync/internal/domain/entity"
	"airsync/internal/infrastructure/airtable"
)

// Refs разрешает локальный id в id удаленной записи.
// ok=false означает, что ссылку нужно опустить.
type Refs interface {
	Resolve(ctx context.Context, localID string) (remoteID string, ok bool, err error)
}

// Converter преобразует документы одного типа в записи удаленной таблицы и обратно
type Converter interface {
	Type() string
	Table() string
	// Fields поля, которые конвертер читает и пишет, отфильтрованные по схеме таблицы
	Fields() []string
	ToRecord(ctx context.Context, d *entity.Datum) (airtable.Record, error)
	FromRecord(ctx context.Context, r airtable.Record) (*entity.Datum, error)
}

// isoMillis формат дат, который ожидает и возвращает API
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

type base struct {
	repo          entity.Repository
	integrationID string
	fields        airtable.TableFields
}

func (b *base) project(all map[string]any) map[string]any {
	out := make(map[string]any, len(all))
	for k, v := range all {
		if b.fields.Has(k) {
			out[k] = v
		}
	}
	return out
}

func (b *base) filterNames(names []string) []string {
	var out []string
	for _, n := range names {
		if b.fields.Has(n) {
			out = append(out, n)
		}
	}
	return out
}

// findLinked ищет документ, уже связанный с удаленной записью
func (b *base) findLinked(ctx context.Context, typ, recordID string) (*entity.Datum, error) {
	data, err := b.repo.GetData(ctx, typ, entity.Conditions{
		Linked:   b.integrationID,
		LinkedID: recordID,
	}, entity.QueryOptions{Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("failed to find %s linked to %s: %w", typ, recordID, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return data[0], nil
}

// draft возвращает существующий связанный документ или новый черновик
func (b *base) draft(ctx context.Context, typ string, r airtable.Record) (*entity.Datum, error) {
	d, err := b.findLinked(ctx, typ, r.ID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		d = entity.New(typ)
	}
	if del, ok := r.Fields[airtable.FieldDelete].(bool); ok {
		d.Deleted = del
	}
	return d, nil
}

func (b *base) link(d *entity.Datum, r airtable.Record) {
	l, _ := d.LinkFor(b.integrationID)
	l.ID = r.ID
	if modifiedAt, ok := ModifiedAt(r); ok {
		l.ModifiedAt = modifiedAt
	}
	d.SetLink(b.integrationID, l)
}

// ModifiedAt возвращает значение поля Modified At записи
func ModifiedAt(r airtable.Record) (time.Time, bool) {
	s, ok := r.Fields[airtable.FieldModifiedAt].(string)
	if !ok || s == "" {
		return time.Time{}, false
	}
	return parseTime(s)
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func formatMillis(ms float64) string {
	return time.UnixMilli(int64(ms)).UTC().Format(isoMillis)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(isoMillis)
}

// readers читают поле записи, только если оно есть в таблице.
// Значение неверного типа сбрасывает атрибут документа.

func (b *base) readString(d *entity.Datum, r airtable.Record, field, attr string) {
	if !b.fields.Has(field) {
		return
	}
	if s, ok := r.Fields[field].(string); ok {
		d.Set(attr, s)
		return
	}
	d.Set(attr, nil)
}

func (b *base) readBool(d *entity.Datum, r airtable.Record, field, attr string) {
	if !b.fields.Has(field) {
		return
	}
	if v, ok := r.Fields[field].(bool); ok {
		d.Set(attr, v)
		return
	}
	d.Set(attr, nil)
}

func (b *base) readNumber(d *entity.Datum, r airtable.Record, field, attr string) {
	if !b.fields.Has(field) {
		return
	}
	if v, ok := r.Fields[field].(float64); ok {
		d.Set(attr, v)
		return
	}
	d.Set(attr, nil)
}

func (b *base) readDate(d *entity.Datum, r airtable.Record, field, attr string) {
	if !b.fields.Has(field) {
		return
	}
	if s, ok := r.Fields[field].(string); ok && s != "" {
		if t, ok := parseTime(s); ok {
			d.Set(attr, float64(t.UnixMilli()))
			return
		}
	}
	d.Set(attr, nil)
}

func firstLinkedID(v any) string {
	switch ids := v.(type) {
	case []any:
		if len(ids) > 0 {
			s, _ := ids[0].(string)
			return s
		}
	case []string:
		if len(ids) > 0 {
			return ids[0]
		}
	}
	return ""
}

func toTitleCase(s string) string {
	words := strings.Split(strings.ToLower(s), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
