package mapping

import (
	"context"

	"airsync/internal/domain/entity"
	"airsync/internal/infrastructure/airtable"
)

var collectionFields = []string{"Name", airtable.FieldID, "Ref. No."}

// CollectionConverter конвертер коллекций
type CollectionConverter struct {
	base
}

// NewCollectionConverter создает конвертер для таблицы Collections
func NewCollectionConverter(repo entity.Repository, integrationID string, fields airtable.TableFields) *CollectionConverter {
	return &CollectionConverter{base: base{repo: repo, integrationID: integrationID, fields: fields}}
}

func (c *CollectionConverter) Type() string  { return entity.TypeCollection }
func (c *CollectionConverter) Table() string { return airtable.TableCollections }

func (c *CollectionConverter) Fields() []string {
	return c.filterNames(collectionFields)
}

func (c *CollectionConverter) ToRecord(_ context.Context, d *entity.Datum) (airtable.Record, error) {
	fields := map[string]any{
		"Name":           d.String("name"),
		airtable.FieldID: d.ID,
		"Ref. No.":       d.String("collection_reference_number"),
	}
	return airtable.Record{Fields: c.project(fields)}, nil
}

func (c *CollectionConverter) FromRecord(ctx context.Context, r airtable.Record) (*entity.Datum, error) {
	d, err := c.draft(ctx, entity.TypeCollection, r)
	if err != nil {
		return nil, err
	}

	c.readString(d, r, "Name", "name")
	c.readString(d, r, "Ref. No.", "collection_reference_number")
	c.link(d, r)
	return d, nil
}
