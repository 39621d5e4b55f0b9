package airtable

import (
	"errors"
	"fmt"
)

var ErrSchema = errors.New("invalid base schema")

// SchemaError таблица базы не подходит для синхронизации
type SchemaError struct {
	BaseID string
	Table  string
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("cannot find a table named %q in the base %q", e.Table, e.BaseID)
	}
	return fmt.Sprintf("field %q in the %q table in the base %q %s", e.Field, e.Table, e.BaseID, e.Reason)
}

func (e *SchemaError) Unwrap() error {
	return ErrSchema
}

// TableFields поля таблицы по имени
type TableFields map[string]Field

// Has сообщает, есть ли поле в таблице
func (f TableFields) Has(name string) bool {
	_, ok := f[name]
	return ok
}

// Table возвращает таблицу по имени
func (s *BaseSchema) Table(name string) (Table, bool) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// ValidateTables проверяет, что у каждой таблицы есть поле ID (singleLineText)
// и поле Modified At (lastModifiedTime), и возвращает поля таблиц.
func ValidateTables(schema *BaseSchema, baseID string, names ...string) (map[string]TableFields, error) {
	if schema == nil {
		schema = &BaseSchema{}
	}

	out := make(map[string]TableFields, len(names))
	for _, name := range names {
		table, ok := schema.Table(name)
		if !ok {
			return nil, &SchemaError{BaseID: baseID, Table: name}
		}

		fields := make(TableFields, len(table.Fields))
		for _, f := range table.Fields {
			fields[f.Name] = f
		}

		if err := requireField(fields, baseID, name, FieldID, FieldTypeSingleLineText); err != nil {
			return nil, err
		}
		if err := requireField(fields, baseID, name, FieldModifiedAt, FieldTypeLastModifiedTime); err != nil {
			return nil, err
		}
		out[name] = fields
	}
	return out, nil
}

func requireField(fields TableFields, baseID, table, name, typ string) error {
	f, ok := fields[name]
	if !ok {
		return &SchemaError{BaseID: baseID, Table: table, Field: name, Reason: "is missing"}
	}
	if f.Type != typ {
		return &SchemaError{
			BaseID: baseID,
			Table:  table,
			Field:  name,
			Reason: fmt.Sprintf("should have type %q, got %q", typ, f.Type),
		}
	}
	return nil
}
