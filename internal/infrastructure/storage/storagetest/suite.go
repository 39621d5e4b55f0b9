// Package storagetest общий набор тестов для реализаций документного хранилища.
package storagetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"airsync/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Store проверяемое хранилище
type Store interface {
	entity.Repository
	PutAttachment(ctx context.Context, typ, id, name string, info entity.AttachmentInfo) error
}

// Factory создает пустое хранилище с заданными часами
type Factory func(t *testing.T, now func() time.Time) Store

// Clock ручные часы, которые двигаются только через Advance
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Run прогоняет набор на хранилище из фабрики
func Run(t *testing.T, newStore Factory) {
	t.Run("get missing", func(t *testing.T) { testGetMissing(t, newStore) })
	t.Run("save new", func(t *testing.T) { testSaveNew(t, newStore) })
	t.Run("validation", func(t *testing.T) { testValidation(t, newStore) })
	t.Run("update timestamps", func(t *testing.T) { testUpdateTimestamps(t, newStore) })
	t.Run("conditions", func(t *testing.T) { testConditions(t, newStore) })
	t.Run("query options", func(t *testing.T) { testQueryOptions(t, newStore) })
	t.Run("tombstones", func(t *testing.T) { testTombstones(t, newStore) })
	t.Run("history", func(t *testing.T) { testHistory(t, newStore) })
	t.Run("attachments", func(t *testing.T) { testAttachments(t, newStore) })
}

func save(t *testing.T, s Store, d *entity.Datum) *entity.Datum {
	t.Helper()
	saved, err := s.SaveDatum(context.Background(), d, entity.SaveOptions{})
	require.NoError(t, err)
	return saved
}

func collection(id, name string) *entity.Datum {
	d := entity.New(entity.TypeCollection)
	d.ID = id
	d.Set("name", name)
	return d
}

func testGetMissing(t *testing.T, newStore Factory) {
	s := newStore(t, NewClock().Now)

	_, err := s.GetDatum(context.Background(), entity.TypeCollection, "nope")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func testSaveNew(t *testing.T, newStore Factory) {
	ctx := context.Background()
	clock := NewClock()
	s := newStore(t, clock.Now)

	d := entity.New(entity.TypeItem)
	d.Set("name", "Drill")
	d.Set("collection_id", "c1")
	d.Set("purchase_price_x1000", 12500)
	d.SetLink("intg1", entity.Link{ID: "rec1", ModifiedAt: clock.Now()})

	saved := save(t, s, d)
	require.NotEmpty(t, saved.ID)
	assert.True(t, saved.Valid)
	assert.WithinDuration(t, clock.Now(), saved.CreatedAt, 0)
	assert.WithinDuration(t, clock.Now(), saved.UpdatedAt, 0)

	got, err := s.GetDatum(ctx, entity.TypeItem, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Drill", got.String("name"))
	// числа всегда возвращаются как float64
	assert.Equal(t, float64(12500), got.Fields["purchase_price_x1000"])
	l, ok := got.LinkFor("intg1")
	require.True(t, ok)
	assert.Equal(t, "rec1", l.ID)
	assert.WithinDuration(t, clock.Now(), l.ModifiedAt, 0)
}

func testValidation(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, NewClock().Now)

	d := entity.New(entity.TypeItem)
	d.Set("name", "Drill")

	_, err := s.SaveDatum(ctx, d, entity.SaveOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrInvalid)
	assert.Equal(t, "item is invalid: collection_id is required", err.Error())

	n, err := s.GetDataCount(ctx, entity.TypeItem, entity.Conditions{})
	require.NoError(t, err)
	assert.Zero(t, n)

	saved, err := s.SaveDatum(ctx, d, entity.SaveOptions{SkipValidation: true})
	require.NoError(t, err)
	assert.False(t, saved.Valid)

	got, err := s.GetDatum(ctx, entity.TypeItem, saved.ID)
	require.NoError(t, err)
	assert.False(t, got.Valid)
}

func testUpdateTimestamps(t *testing.T, newStore Factory) {
	ctx := context.Background()
	clock := NewClock()
	s := newStore(t, clock.Now)

	first := save(t, s, collection("c1", "Tools"))
	created := first.CreatedAt

	touched := clock.Advance(time.Minute)
	first.Set("name", "Power tools")
	second := save(t, s, first)
	assert.WithinDuration(t, created, second.CreatedAt, 0)
	assert.WithinDuration(t, touched, second.UpdatedAt, 0)

	clock.Advance(time.Minute)
	second.Set("name", "Hand tools")
	third, err := s.SaveDatum(ctx, second, entity.SaveOptions{NoTouch: true})
	require.NoError(t, err)
	assert.WithinDuration(t, touched, third.UpdatedAt, 0)

	got, err := s.GetDatum(ctx, entity.TypeCollection, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Hand tools", got.String("name"))
	assert.WithinDuration(t, touched, got.UpdatedAt, 0)
}

func testConditions(t *testing.T, newStore Factory) {
	ctx := context.Background()
	clock := NewClock()
	s := newStore(t, clock.Now)

	c1 := collection("c1", "Tools")
	c1.Set("kind", "garage")
	c1.SetLink("intg1", entity.Link{ID: "rec1"})
	save(t, s, c1)

	mark := clock.Advance(time.Minute)
	c2 := collection("c2", "Books")
	c2.Set("kind", "home")
	c2.SetLink("intg2", entity.Link{ID: "rec2"})
	save(t, s, c2)

	clock.Advance(time.Minute)
	c3 := collection("c3", "Toys")
	c3.Set("kind", "home")
	c3.SetLink("intg1", entity.Link{ID: "rec3"})
	c3.Deleted = true
	save(t, s, c3)

	tests := []struct {
		name string
		cond entity.Conditions
		want []string
	}{
		{name: "all live", cond: entity.Conditions{}, want: []string{"c1", "c2"}},
		{name: "with deleted", cond: entity.Conditions{WithDeleted: true}, want: []string{"c1", "c2", "c3"}},
		{name: "ids", cond: entity.Conditions{IDs: []string{"c2", "c3", "c9"}}, want: []string{"c2"}},
		{name: "empty ids", cond: entity.Conditions{IDs: []string{}}, want: nil},
		{name: "equals", cond: entity.Conditions{Equals: map[string]any{"kind": "home"}, WithDeleted: true}, want: []string{"c2", "c3"}},
		{name: "in", cond: entity.Conditions{In: map[string][]string{"name": {"Tools", "Toys"}}}, want: []string{"c1"}},
		{name: "linked", cond: entity.Conditions{Linked: "intg1", WithDeleted: true}, want: []string{"c1", "c3"}},
		{name: "linked id", cond: entity.Conditions{Linked: "intg1", LinkedID: "rec3", WithDeleted: true}, want: []string{"c3"}},
		{name: "updated after", cond: entity.Conditions{UpdatedAfter: mark, WithDeleted: true}, want: []string{"c3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := s.GetData(ctx, entity.TypeCollection, tt.cond, entity.QueryOptions{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(data))

			n, err := s.GetDataCount(ctx, entity.TypeCollection, tt.cond)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), n)
		})
	}
}

func testQueryOptions(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, NewClock().Now)

	for i, name := range []string{"b", "c", "a"} {
		d := collection("c"+name, name)
		d.Set("order", float64(10-i))
		save(t, s, d)
	}

	tests := []struct {
		name string
		opts entity.QueryOptions
		want []string
	}{
		{name: "insertion order", opts: entity.QueryOptions{}, want: []string{"cb", "cc", "ca"}},
		{name: "sort by name", opts: entity.QueryOptions{SortBy: "name"}, want: []string{"ca", "cb", "cc"}},
		{name: "sort by number desc", opts: entity.QueryOptions{SortBy: "order", Desc: true}, want: []string{"cb", "cc", "ca"}},
		{name: "limit", opts: entity.QueryOptions{SortBy: "name", Limit: 2}, want: []string{"ca", "cb"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := s.GetData(ctx, entity.TypeCollection, entity.Conditions{}, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(data))
		})
	}
}

func testTombstones(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, NewClock().Now)

	linked := collection("c1", "Tools")
	linked.SetLink("intg1", entity.Link{ID: "rec1"})
	linked.SetLink("intg2", entity.Link{})
	linked = save(t, s, linked)

	silent := collection("c2", "Books")
	silent.SetLink("intg1", entity.Link{ID: "rec2"})
	silent = save(t, s, silent)

	linked.Deleted = true
	save(t, s, linked)
	// повторное удаление не плодит надгробия
	save(t, s, linked)

	silent.Deleted = true
	_, err := s.SaveDatum(ctx, silent, entity.SaveOptions{SkipCallbacks: true})
	require.NoError(t, err)

	data, err := s.GetData(ctx, entity.TypeDeletedData, entity.TombstoneConditions("intg1", entity.TypeCollection), entity.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, data, 1)
	tomb, ok := entity.ParseTombstone(data[0])
	require.True(t, ok)
	assert.Equal(t, "rec1", tomb.RemoteID)
	assert.Equal(t, entity.TypeCollection, tomb.Type)

	n, err := s.GetDataCount(ctx, entity.TypeDeletedData, entity.TombstoneConditions("intg2", entity.TypeCollection))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testHistory(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, NewClock().Now)
	h := entity.SaveOptions{CreateHistory: &entity.History{CreatedBy: "integration-intg1", EventName: "sync", Batch: "b1"}}

	d, err := s.SaveDatum(ctx, collection("c1", "Tools"), h)
	require.NoError(t, err)
	// без изменений полей запись истории не создается
	_, err = s.SaveDatum(ctx, d, h)
	require.NoError(t, err)
	d.Set("name", "Books")
	_, err = s.SaveDatum(ctx, d, h)
	require.NoError(t, err)
	// сохранение без CreateHistory в историю не попадает
	d.Set("name", "Music")
	save(t, s, d)

	data, err := s.GetData(ctx, entity.TypeHistory, entity.HistoryConditions(entity.TypeCollection, "c1"), entity.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, data, 2)
	for _, rec := range data {
		assert.Equal(t, "integration-intg1", rec.String("created_by"))
		assert.Equal(t, "sync", rec.String("event_name"))
		assert.Equal(t, "b1", rec.String("batch"))
	}
	names := []any{}
	for _, rec := range data {
		fields, _ := rec.Fields["data"].(map[string]any)
		names = append(names, fields["name"])
	}
	assert.ElementsMatch(t, []any{"Tools", "Books"}, names)
}

func testAttachments(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, NewClock().Now)
	img := &entity.Datum{Type: entity.TypeImage, ID: "img1"}

	info, err := s.GetAttachmentInfo(ctx, img, "image-1440")
	require.NoError(t, err)
	assert.Nil(t, info)

	require.NoError(t, s.PutAttachment(ctx, entity.TypeImage, "img1", "image-1440", entity.AttachmentInfo{ContentType: "image/png", Size: 10}))
	require.NoError(t, s.PutAttachment(ctx, entity.TypeImage, "img1", "image-1440", entity.AttachmentInfo{ContentType: "image/jpeg", Size: 20, Digest: "md5-abc"}))

	info, err = s.GetAttachmentInfo(ctx, img, "image-1440")
	require.NoError(t, err)
	assert.Equal(t, &entity.AttachmentInfo{ContentType: "image/jpeg", Size: 20, Digest: "md5-abc"}, info)

	info, err = s.GetAttachmentInfo(ctx, img, "thumbnail")
	require.NoError(t, err)
	assert.Nil(t, info)
}

func ids(data []*entity.Datum) []string {
	var out []string
	for _, d := range data {
		out = append(out, d.ID)
	}
	return out
}
