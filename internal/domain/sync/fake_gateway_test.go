package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"airsync/internal/infrastructure/airtable"
)

var (
	isAfterFormula   = regexp.MustCompile(`^IS_AFTER\(\{Modified At\}, DATETIME_PARSE\("(.+)"\)\)$`)
	containerFormula = regexp.MustCompile(`^\{Container Record ID\} = "(.+)"$`)
)

// fakeGateway удаленная база в памяти с семантикой Airtable, достаточной для прогона:
// пустые значения не хранятся, Modified At выставляется при каждой записи.
type fakeGateway struct {
	now      func() time.Time
	pageSize int
	schema   *airtable.BaseSchema
	tables   map[string][]airtable.Record
	seq      int
	calls    int

	created []string
	updated []string
	deleted []string

	// failUpdates ошибка, которую возвращает UpdateRecords
	failUpdates error
}

func newFakeGateway(now func() time.Time) *fakeGateway {
	return &fakeGateway{
		now:    now,
		schema: testSchema(),
		tables: map[string][]airtable.Record{},
	}
}

func testSchema() *airtable.BaseSchema {
	field := func(name string) airtable.Field {
		return airtable.Field{Name: name, Type: "singleLineText"}
	}
	common := []airtable.Field{
		field(airtable.FieldID),
		{Name: airtable.FieldModifiedAt, Type: airtable.FieldTypeLastModifiedTime},
		{Name: airtable.FieldDelete, Type: "checkbox"},
		field(airtable.FieldSyncErrorMessage),
		field("Name"),
	}
	return &airtable.BaseSchema{Tables: []airtable.Table{
		{Name: airtable.TableCollections, Fields: common},
		{Name: airtable.TableItems, Fields: append(append([]airtable.Field{}, common...),
			field("Collection"),
			field("Container"),
			field(airtable.FieldContainerRecordID),
			field("Notes"),
		)},
	}}
}

func (g *fakeGateway) Calls() int {
	return g.calls
}

func (g *fakeGateway) GetBaseSchema(context.Context) (*airtable.BaseSchema, error) {
	g.calls++
	return g.schema, nil
}

func (g *fakeGateway) ListRecords(_ context.Context, table string, opts airtable.ListOptions) (*airtable.ListResult, error) {
	g.calls++
	match, err := compileFormula(opts.FilterByFormula)
	if err != nil {
		return nil, err
	}

	var matched []airtable.Record
	for _, rec := range g.tables[table] {
		if match(rec) {
			matched = append(matched, cloneRecord(rec))
		}
	}

	size := opts.PageSize
	if size <= 0 || size > 100 {
		size = 100
	}
	if g.pageSize > 0 && g.pageSize < size {
		size = g.pageSize
	}
	start := 0
	if opts.Offset != "" {
		start, _ = strconv.Atoi(opts.Offset)
	}
	start = min(start, len(matched))
	end := min(start+size, len(matched))

	res := &airtable.ListResult{Records: matched[start:end]}
	if end < len(matched) {
		res.Offset = strconv.Itoa(end)
	}
	return res, nil
}

func (g *fakeGateway) GetRecord(_ context.Context, table, id string) (*airtable.Record, error) {
	g.calls++
	i := g.find(table, id)
	if i < 0 {
		return nil, notFound()
	}
	rec := cloneRecord(g.tables[table][i])
	return &rec, nil
}

func (g *fakeGateway) CreateRecords(_ context.Context, table string, records []airtable.Record) ([]airtable.Record, error) {
	g.calls++
	out := make([]airtable.Record, 0, len(records))
	for _, rec := range records {
		stored := g.insert(table, rec.Fields)
		g.created = append(g.created, stored.ID)
		out = append(out, cloneRecord(stored))
	}
	return out, nil
}

func (g *fakeGateway) UpdateRecords(_ context.Context, table string, records []airtable.Record) ([]airtable.Record, error) {
	g.calls++
	if g.failUpdates != nil {
		return nil, g.failUpdates
	}
	seen := map[string]bool{}
	for _, rec := range records {
		if seen[rec.ID] {
			return nil, &airtable.APIError{Kind: airtable.KindUnknown, Type: "INVALID_RECORDS", Message: "duplicate record", StatusCode: http.StatusUnprocessableEntity}
		}
		seen[rec.ID] = true
		if g.find(table, rec.ID) < 0 {
			return nil, notFound()
		}
	}

	out := make([]airtable.Record, 0, len(records))
	for _, rec := range records {
		i := g.find(table, rec.ID)
		stored := g.tables[table][i]
		for k, v := range normalize(rec.Fields) {
			if isBlank(v) {
				delete(stored.Fields, k)
				continue
			}
			stored.Fields[k] = v
		}
		stored.Fields[airtable.FieldModifiedAt] = g.stamp()
		g.tables[table][i] = stored
		g.updated = append(g.updated, rec.ID)
		out = append(out, cloneRecord(stored))
	}
	return out, nil
}

func (g *fakeGateway) DeleteRecords(_ context.Context, table string, ids []string) ([]airtable.DeletedRecord, error) {
	g.calls++
	for _, id := range ids {
		if g.find(table, id) < 0 {
			return nil, notFound()
		}
	}
	out := make([]airtable.DeletedRecord, 0, len(ids))
	for _, id := range ids {
		i := g.find(table, id)
		g.tables[table] = append(g.tables[table][:i], g.tables[table][i+1:]...)
		g.deleted = append(g.deleted, id)
		out = append(out, airtable.DeletedRecord{ID: id, Deleted: true})
	}
	return out, nil
}

// seed добавляет запись, как если бы ее создал пользователь удаленной базы
func (g *fakeGateway) seed(table string, fields map[string]any) string {
	return g.insert(table, fields).ID
}

// edit меняет запись, как если бы ее изменил пользователь удаленной базы
func (g *fakeGateway) edit(table, id string, fields map[string]any) {
	i := g.find(table, id)
	for k, v := range normalize(fields) {
		g.tables[table][i].Fields[k] = v
	}
	g.tables[table][i].Fields[airtable.FieldModifiedAt] = g.stamp()
}

func (g *fakeGateway) record(table, id string) airtable.Record {
	i := g.find(table, id)
	if i < 0 {
		return airtable.Record{}
	}
	return cloneRecord(g.tables[table][i])
}

func (g *fakeGateway) writes() int {
	return len(g.created) + len(g.updated) + len(g.deleted)
}

func (g *fakeGateway) resetWrites() {
	g.created, g.updated, g.deleted = nil, nil, nil
}

func (g *fakeGateway) insert(table string, fields map[string]any) airtable.Record {
	g.seq++
	stored := airtable.Record{ID: fmt.Sprintf("rec%03d", g.seq), Fields: map[string]any{}}
	for k, v := range normalize(fields) {
		if !isBlank(v) {
			stored.Fields[k] = v
		}
	}
	stored.Fields[airtable.FieldModifiedAt] = g.stamp()
	g.tables[table] = append(g.tables[table], stored)
	return stored
}

func (g *fakeGateway) find(table, id string) int {
	for i, rec := range g.tables[table] {
		if rec.ID == id {
			return i
		}
	}
	return -1
}

func (g *fakeGateway) stamp() string {
	return g.now().UTC().Format(isoMillis)
}

func compileFormula(formula string) (func(airtable.Record) bool, error) {
	switch {
	case formula == "":
		return func(airtable.Record) bool { return true }, nil
	case formula == "{"+airtable.FieldSyncErrorMessage+"}":
		return func(rec airtable.Record) bool {
			s, _ := rec.Fields[airtable.FieldSyncErrorMessage].(string)
			return s != ""
		}, nil
	}
	if m := isAfterFormula.FindStringSubmatch(formula); m != nil {
		after, err := time.Parse(time.RFC3339Nano, m[1])
		if err != nil {
			return nil, err
		}
		return func(rec airtable.Record) bool {
			s, _ := rec.Fields[airtable.FieldModifiedAt].(string)
			t, err := time.Parse(time.RFC3339Nano, s)
			return err == nil && t.After(after)
		}, nil
	}
	if m := containerFormula.FindStringSubmatch(formula); m != nil {
		return func(rec airtable.Record) bool {
			ids, _ := rec.Fields["Container"].([]any)
			return len(ids) > 0 && ids[0] == m[1]
		}, nil
	}
	return nil, fmt.Errorf("unsupported formula %q", formula)
}

func notFound() error {
	return &airtable.APIError{Kind: airtable.KindNotFound, Type: "NOT_FOUND", Message: "Could not find record", StatusCode: http.StatusNotFound}
}

// normalize приводит значения к виду, в котором их возвращает JSON API
func normalize(fields map[string]any) map[string]any {
	raw, err := json.Marshal(fields)
	if err != nil {
		panic(err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(err)
	}
	return out
}

func isBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case []any:
		return len(x) == 0
	}
	return false
}

func cloneRecord(rec airtable.Record) airtable.Record {
	return airtable.Record{ID: rec.ID, Fields: normalize(rec.Fields), CreatedTime: rec.CreatedTime}
}
