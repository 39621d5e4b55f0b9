package mapping

import (
	"context"
	"errors"
	"testing"
	"time"

	"airsync/internal/domain/entity"
	"airsync/internal/infrastructure/airtable"
	"airsync/internal/infrastructure/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticRefs map[string]string

func (s staticRefs) Resolve(_ context.Context, id string) (string, bool, error) {
	rid, ok := s[id]
	return rid, ok, nil
}

type failingRefs struct{}

func (failingRefs) Resolve(context.Context, string) (string, bool, error) {
	return "", false, errors.New("collection c9 is invalid")
}

func tableFields(names ...string) airtable.TableFields {
	out := airtable.TableFields{}
	for _, n := range names {
		out[n] = airtable.Field{Name: n}
	}
	return out
}

func save(t *testing.T, repo entity.Repository, d *entity.Datum) *entity.Datum {
	t.Helper()
	saved, err := repo.SaveDatum(context.Background(), d, entity.SaveOptions{})
	require.NoError(t, err)
	return saved
}

func TestCollectionConverter_ToRecordProjectsSchemaFields(t *testing.T) {
	conv := NewCollectionConverter(memory.New(), "intg1", tableFields("Name", airtable.FieldID, airtable.FieldModifiedAt))
	d := entity.New(entity.TypeCollection)
	d.ID = "c1"
	d.Set("name", "Garage")
	d.Set("collection_reference_number", "7")

	rec, err := conv.ToRecord(context.Background(), d)

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"Name": "Garage", "ID": "c1"}, rec.Fields)
	assert.Equal(t, []string{"Name", "ID"}, conv.Fields())
}

func TestCollectionConverter_FromRecordKeepsOtherIntegrations(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	existing := entity.New(entity.TypeCollection)
	existing.Set("name", "Old")
	existing.SetLink("intg1", entity.Link{ID: "rec1"})
	existing.SetLink("other", entity.Link{ID: "zzz"})
	existing = save(t, repo, existing)

	conv := NewCollectionConverter(repo, "intg1", tableFields("Name", "Ref. No.", airtable.FieldID))
	d, err := conv.FromRecord(ctx, airtable.Record{ID: "rec1", Fields: map[string]any{
		"Name":                   "New",
		"Ref. No.":               42.0,
		airtable.FieldModifiedAt: "2024-01-02T03:04:05.000Z",
		airtable.FieldDelete:     true,
	}})

	require.NoError(t, err)
	assert.Equal(t, existing.ID, d.ID)
	assert.Equal(t, "New", d.String("name"))
	_, hasRef := d.Fields["collection_reference_number"]
	assert.False(t, hasRef, "wrong typed value must unset the attribute")
	assert.True(t, d.Deleted)
	assert.Equal(t, "zzz", d.Integrations["other"].ID)
	link := d.Integrations["intg1"]
	assert.Equal(t, "rec1", link.ID)
	assert.True(t, link.ModifiedAt.Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))
}

func TestCollectionConverter_FromRecordStartsDraft(t *testing.T) {
	conv := NewCollectionConverter(memory.New(), "intg1", tableFields("Name"))

	d, err := conv.FromRecord(context.Background(), airtable.Record{ID: "rec2", Fields: map[string]any{"Name": "Shelf"}})

	require.NoError(t, err)
	assert.Empty(t, d.ID)
	assert.False(t, d.Valid)
	assert.Equal(t, "Shelf", d.String("name"))
	assert.Equal(t, "rec2", d.Integrations["intg1"].ID)
}

func TestItemConverter_ToRecord(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	require.NoError(t, repo.PutAttachment(ctx, entity.TypeImage, "img1", "image-1440", entity.AttachmentInfo{ContentType: "image/png"}))
	require.NoError(t, repo.PutAttachment(ctx, entity.TypeImage, "img2", "image-1440", entity.AttachmentInfo{ContentType: "image/jpeg"}))
	for i, img := range []string{"img2", "img1", "img3"} {
		ii := entity.New(entity.TypeItemImage)
		ii.Set("item_id", "i1")
		ii.Set("image_id", img)
		ii.Set("order", float64(2-i))
		save(t, repo, ii)
	}

	conv := NewItemConverter(ItemOptions{
		Repo:                 repo,
		IntegrationID:        "intg1",
		Fields:               tableFields(itemFields...),
		Collections:          staticRefs{"c1": "recC1"},
		Containers:           staticRefs{},
		ImagesPublicEndpoint: "https://img.example.com/",
	})
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d := entity.New(entity.TypeItem)
	d.ID = "i1"
	d.CreatedAt = created
	d.UpdatedAt = created.Add(time.Hour)
	d.Set("name", "Drill")
	d.Set("collection_id", "c1")
	d.Set("container_id", "missing")
	d.Set("item_type", "item_with_parts")
	d.Set("purchase_price_x1000", float64(12500))
	d.Set("purchase_date", float64(created.UnixMilli()))
	d.Set("serial", float64(3))

	rec, err := conv.ToRecord(ctx, d)

	require.NoError(t, err)
	f := rec.Fields
	assert.Equal(t, "Drill", f["Name"])
	assert.Equal(t, "i1", f["ID"])
	assert.Equal(t, []string{"recC1"}, f["Collection"])
	assert.Equal(t, []string{}, f["Container"])
	assert.Equal(t, "Item with Parts", f["Type"])
	assert.Equal(t, 12.5, f["Purchase Price"])
	assert.Equal(t, "2024-01-01T00:00:00.000Z", f["Purchase Date"])
	assert.Equal(t, "2024-01-01T01:00:00.000Z", f["Updated At"])
	assert.Equal(t, float64(3), f["Serial"])
	assert.Equal(t, false, f["Remove All Images"])
	_, hasPPC := f["PPC"]
	assert.False(t, hasPPC)
	assert.Equal(t, []map[string]any{
		{"url": "https://img.example.com/img1.png", "filename": "img1.png"},
		{"url": "https://img.example.com/img2.jpg", "filename": "img2.jpg"},
	}, f["Images"])
}

func TestItemConverter_ToRecordFailsOnResolverError(t *testing.T) {
	conv := NewItemConverter(ItemOptions{
		Repo:          memory.New(),
		IntegrationID: "intg1",
		Fields:        tableFields("Collection"),
		Collections:   failingRefs{},
	})
	d := entity.New(entity.TypeItem)
	d.ID = "i1"
	d.Set("collection_id", "c9")

	_, err := conv.ToRecord(context.Background(), d)

	assert.ErrorContains(t, err, "collection c9 is invalid")
}

func TestItemConverter_FromRecord(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	col := entity.New(entity.TypeCollection)
	col.Set("name", "Tools")
	col.SetLink("intg1", entity.Link{ID: "recC1"})
	col = save(t, repo, col)

	box := entity.New(entity.TypeItem)
	box.Set("name", "Box")
	box.Set("collection_id", col.ID)
	box.SetLink("intg1", entity.Link{ID: "recBox"})
	box = save(t, repo, box)

	conv := NewItemConverter(ItemOptions{
		Repo:          repo,
		IntegrationID: "intg1",
		Fields:        tableFields(itemFields...),
	})

	tests := []struct {
		name   string
		fields map[string]any
		check  func(t *testing.T, d *entity.Datum)
	}{
		{
			name: "container inherits collection",
			fields: map[string]any{
				"Name":      "Hammer",
				"Container": []any{"recBox"},
				"Type":      "Consumable",
			},
			check: func(t *testing.T, d *entity.Datum) {
				assert.Equal(t, box.ID, d.String("container_id"))
				assert.Equal(t, col.ID, d.String("collection_id"))
				assert.Equal(t, "consumable", d.String("item_type"))
				q, ok := d.Number("consumable_stock_quantity")
				assert.True(t, ok)
				assert.Equal(t, float64(1), q)
			},
		},
		{
			name: "collection and numbers",
			fields: map[string]any{
				"Name":           "Saw",
				"Collection":     []any{"recC1"},
				"Type":           "Item",
				"Purchase Price": 9.99,
				"Purchase Date":  "2024-02-03",
			},
			check: func(t *testing.T, d *entity.Datum) {
				assert.Equal(t, col.ID, d.String("collection_id"))
				_, hasType := d.Fields["item_type"]
				assert.False(t, hasType)
				p, _ := d.Number("purchase_price_x1000")
				assert.Equal(t, float64(9990), p)
				date, _ := d.Number("purchase_date")
				assert.Equal(t, float64(time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC).UnixMilli()), date)
			},
		},
		{
			name: "unknown container is omitted",
			fields: map[string]any{
				"Name":      "Tape",
				"Container": []any{"recUnknown"},
			},
			check: func(t *testing.T, d *entity.Datum) {
				assert.Empty(t, d.String("container_id"))
				assert.Empty(t, d.String("collection_id"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := conv.FromRecord(ctx, airtable.Record{ID: "recNew", Fields: tt.fields})
			require.NoError(t, err)
			assert.Empty(t, d.ID)
			assert.Equal(t, "recNew", d.Integrations["intg1"].ID)
			tt.check(t, d)
		})
	}
}

func TestHasFieldChanges(t *testing.T) {
	tests := []struct {
		name    string
		current map[string]any
		next    map[string]any
		want    bool
	}{
		{
			name:    "identical",
			current: map[string]any{"Name": "A", "Collection": []any{"rec1"}},
			next:    map[string]any{"Name": "A", "Collection": []string{"rec1"}},
			want:    false,
		},
		{
			name:    "empty values are equal",
			current: map[string]any{},
			next:    map[string]any{"Notes": "", "Container": []string{}, "Will Not Restock": false, "Purchase Price": nil},
			want:    false,
		},
		{
			name:    "volatile fields ignored",
			current: map[string]any{"Modified At": "a", "#": 1.0},
			next:    map[string]any{"Modified At": "b", "#": 2.0, "Record ID": "x", "Container Record ID": "y"},
			want:    false,
		},
		{
			name:    "changed value",
			current: map[string]any{"Name": "A"},
			next:    map[string]any{"Name": "B"},
			want:    true,
		},
		{
			name:    "new non-empty value",
			current: map[string]any{},
			next:    map[string]any{"ID": "i1"},
			want:    true,
		},
		{
			name: "images compared by filename",
			current: map[string]any{"Images": []any{
				map[string]any{"id": "att1", "url": "https://cdn/x", "filename": "img1.jpg"},
			}},
			next: map[string]any{"Images": []map[string]any{{"url": "https://mine/img1.jpg", "filename": "img1.jpg"}}},
			want: false,
		},
		{
			name:    "image added",
			current: map[string]any{"Images": []any{map[string]any{"filename": "img1.jpg"}}},
			next:    map[string]any{"Images": []map[string]any{{"filename": "img1.jpg"}, {"filename": "img2.jpg"}}},
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasFieldChanges(tt.current, tt.next))
		})
	}
}
