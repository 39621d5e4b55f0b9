package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

// Типы сущностей локального хранилища
const (
	TypeCollection      = "collection"
	TypeItem            = "item"
	TypeItemImage       = "item_image"
	TypeImage           = "image"
	TypeIntegration     = "integration"
	TypeDeletedData     = "integration_deleted_data"
	TypeHistory         = "history"
	tombstoneFieldIntg  = "integration_id"
	tombstoneFieldType  = "type"
	tombstoneFieldData  = "data"
	tombstoneDataIDName = "id"
)

// Link данные сущности в пространстве имен конкретной интеграции
type Link struct {
	ID         string    `json:"id,omitempty"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Datum документ локального хранилища
type Datum struct {
	Type         string          `json:"__type"`
	ID           string          `json:"__id,omitempty"`
	CreatedAt    time.Time       `json:"__created_at"`
	UpdatedAt    time.Time       `json:"__updated_at"`
	Deleted      bool            `json:"__deleted,omitempty"`
	Valid        bool            `json:"__valid"`
	Integrations map[string]Link `json:"integrations,omitempty"`
	Fields       map[string]any  `json:"fields,omitempty"`
}

// New создает черновик сущности указанного типа
func New(typ string) *Datum {
	return &Datum{
		Type:   typ,
		Fields: map[string]any{},
	}
}

// Clone возвращает глубокую копию документа.
// Копирование идет через JSON, поэтому числа в Fields всегда float64.
func (d *Datum) Clone() *Datum {
	if d == nil {
		return nil
	}
	raw, err := json.Marshal(d)
	if err != nil {
		panic(fmt.Sprintf("entity: clone %s/%s: %v", d.Type, d.ID, err))
	}
	var c Datum
	if err := json.Unmarshal(raw, &c); err != nil {
		panic(fmt.Sprintf("entity: clone %s/%s: %v", d.Type, d.ID, err))
	}
	if c.Fields == nil {
		c.Fields = map[string]any{}
	}
	return &c
}

// LinkFor возвращает ссылку на удаленную запись для интеграции
func (d *Datum) LinkFor(integrationID string) (Link, bool) {
	if d.Integrations == nil {
		return Link{}, false
	}
	l, ok := d.Integrations[integrationID]
	return l, ok
}

// SetLink записывает ссылку в пространство имен одной интеграции, не трогая остальные
func (d *Datum) SetLink(integrationID string, l Link) {
	if d.Integrations == nil {
		d.Integrations = map[string]Link{}
	}
	d.Integrations[integrationID] = l
}

// RemoveLink удаляет пространство имен интеграции целиком
func (d *Datum) RemoveLink(integrationID string) {
	delete(d.Integrations, integrationID)
}

// LastModified возвращает более позднее из CreatedAt и UpdatedAt
func (d *Datum) LastModified() time.Time {
	if d.UpdatedAt.After(d.CreatedAt) {
		return d.UpdatedAt
	}
	return d.CreatedAt
}

func (d *Datum) String(field string) string {
	s, _ := d.Fields[field].(string)
	return s
}

func (d *Datum) Bool(field string) (bool, bool) {
	b, ok := d.Fields[field].(bool)
	return b, ok
}

// Number возвращает числовое поле независимо от того, как оно было декодировано
func (d *Datum) Number(field string) (float64, bool) {
	switch v := d.Fields[field].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// Set записывает поле; nil удаляет его
func (d *Datum) Set(field string, value any) {
	if d.Fields == nil {
		d.Fields = map[string]any{}
	}
	if value == nil {
		delete(d.Fields, field)
		return
	}
	d.Fields[field] = value
}

// AttachmentInfo описание вложения, привязанного к документу
type AttachmentInfo struct {
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Digest      string `json:"digest,omitempty"`
}

// History параметры записи в историю изменений
type History struct {
	CreatedBy string
	EventName string
	Batch     string
}

// SaveOptions параметры сохранения
type SaveOptions struct {
	NoTouch        bool
	SkipValidation bool
	SkipCallbacks  bool
	CreateHistory  *History
}

// QueryOptions параметры выборки. Limit <= 0 не ограничивает выборку.
type QueryOptions struct {
	Limit  int
	SortBy string
	Desc   bool
}
