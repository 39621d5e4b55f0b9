package airtable

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTable(name string, extra ...Field) Table {
	return Table{
		Name: name,
		Fields: append([]Field{
			{Name: FieldID, Type: FieldTypeSingleLineText},
			{Name: FieldModifiedAt, Type: FieldTypeLastModifiedTime},
		}, extra...),
	}
}

func TestValidateTables(t *testing.T) {
	tests := []struct {
		name      string
		schema    *BaseSchema
		wantErr   string
		wantTable string
	}{
		{
			name: "valid schema",
			schema: &BaseSchema{Tables: []Table{
				validTable(TableCollections, Field{Name: "Name", Type: "singleLineText"}),
				validTable(TableItems),
			}},
		},
		{
			name:      "missing table",
			schema:    &BaseSchema{Tables: []Table{validTable(TableCollections)}},
			wantErr:   `cannot find a table named "Items"`,
			wantTable: TableItems,
		},
		{
			name: "missing ID field",
			schema: &BaseSchema{Tables: []Table{
				validTable(TableCollections),
				{Name: TableItems, Fields: []Field{{Name: FieldModifiedAt, Type: FieldTypeLastModifiedTime}}},
			}},
			wantErr:   `field "ID" in the "Items" table`,
			wantTable: TableItems,
		},
		{
			name: "wrong Modified At type",
			schema: &BaseSchema{Tables: []Table{
				{Name: TableCollections, Fields: []Field{
					{Name: FieldID, Type: FieldTypeSingleLineText},
					{Name: FieldModifiedAt, Type: "dateTime"},
				}},
				validTable(TableItems),
			}},
			wantErr:   `should have type "lastModifiedTime"`,
			wantTable: TableCollections,
		},
		{
			name:      "nil schema",
			schema:    nil,
			wantErr:   `cannot find a table named "Collections"`,
			wantTable: TableCollections,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, err := ValidateTables(tt.schema, "app1", TableCollections, TableItems)

			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.True(t, fields[TableCollections].Has("Name"))
				assert.True(t, fields[TableItems].Has(FieldID))
				assert.False(t, fields[TableItems].Has("Name"))
				return
			}

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSchema)
			assert.Contains(t, err.Error(), tt.wantErr)
			var schemaErr *SchemaError
			require.True(t, errors.As(err, &schemaErr))
			assert.Equal(t, tt.wantTable, schemaErr.Table)
		})
	}
}

func TestParseError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind Kind
		wantType string
	}{
		{"detailed", http.StatusUnprocessableEntity, `{"error":{"type":"INVALID_VALUE_FOR_COLUMN","message":"bad"}}`, KindUnknown, "INVALID_VALUE_FOR_COLUMN"},
		{"plain string", http.StatusNotFound, `{"error":"NOT_FOUND"}`, KindNotFound, "NOT_FOUND"},
		{"model not found", http.StatusForbidden, `{"error":{"type":"INVALID_PERMISSIONS_OR_MODEL_NOT_FOUND","message":"x"}}`, KindPermission, "INVALID_PERMISSIONS_OR_MODEL_NOT_FOUND"},
		{"rate limited", http.StatusTooManyRequests, `{"errors":[]}`, KindRateLimited, "UNKNOWN"},
		{"garbage", http.StatusInternalServerError, `<html>`, KindServer, "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parseError(tt.status, []byte(tt.body))

			assert.Equal(t, tt.wantKind, err.Kind)
			assert.Equal(t, tt.wantType, err.Type)
			assert.Equal(t, tt.status, err.StatusCode)
		})
	}
}
