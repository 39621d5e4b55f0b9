package integration

import (
	"encoding/json"
	"fmt"
	"time"

	"airsync/internal/domain/entity"
)

const TypeAirtable = "airtable"

// ScopeType способ задания области синхронизации
type ScopeType string

const (
	ScopeCollections ScopeType = "collections"
	ScopeContainers  ScopeType = "containers"
)

// Config настройки интеграции
type Config struct {
	BaseID                     string    `json:"airtable_base_id" yaml:"airtable_base_id"`
	ScopeType                  ScopeType `json:"scope_type" yaml:"scope_type"`
	CollectionIDsToSync        []string  `json:"collection_ids_to_sync,omitempty" yaml:"collection_ids_to_sync"`
	ContainerIDsToSync         []string  `json:"container_ids_to_sync,omitempty" yaml:"container_ids_to_sync"`
	ImagesPublicEndpoint       string    `json:"images_public_endpoint,omitempty" yaml:"images_public_endpoint"`
	DisableUploadingItemImages bool      `json:"disable_uploading_item_images,omitempty" yaml:"disable_uploading_item_images"`
}

// Data изменяемое состояние интеграции
type Data struct {
	LastPush          *time.Time     `json:"last_push,omitempty"`
	LastPull          *time.Time     `json:"last_pull,omitempty"`
	LastSyncedAt      *time.Time     `json:"last_synced_at,omitempty"`
	APICalls          map[string]int `json:"api_calls,omitempty"`
	PullErrorAttempts map[string]int `json:"pull_error_attempts,omitempty"`
}

// Integration подключение локального хранилища к одной удаленной базе
type Integration struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"integration_type"`
	Config    Config    `json:"config"`
	Data      Data      `json:"data"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	datum *entity.Datum
}

// Validate проверяет конфигурацию интеграции
func (c Config) Validate() error {
	if c.BaseID == "" {
		return fmt.Errorf("%w: airtable_base_id is required", ErrInvalidConfig)
	}
	switch c.ScopeType {
	case ScopeCollections:
		if len(c.CollectionIDsToSync) == 0 {
			return fmt.Errorf("%w: collection_ids_to_sync is required for scope_type %q", ErrInvalidConfig, c.ScopeType)
		}
	case ScopeContainers:
		if len(c.ContainerIDsToSync) == 0 {
			return fmt.Errorf("%w: container_ids_to_sync is required for scope_type %q", ErrInvalidConfig, c.ScopeType)
		}
	default:
		return fmt.Errorf("%w: unknown scope_type %q", ErrInvalidConfig, c.ScopeType)
	}
	return nil
}

// ShouldSyncItemImages сообщает, нужно ли выгружать изображения предметов
func (c Config) ShouldSyncItemImages() bool {
	return !c.DisableUploadingItemImages && c.ImagesPublicEndpoint != ""
}

// MonthKey ключ счетчика вызовов API
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// AddAPICalls увеличивает счетчик вызовов API за месяц
func (d *Data) AddAPICalls(at time.Time, n int) {
	if n == 0 {
		return
	}
	if d.APICalls == nil {
		d.APICalls = map[string]int{}
	}
	d.APICalls[MonthKey(at)] += n
}

// FromDatum декодирует интеграцию из документа хранилища
func FromDatum(d *entity.Datum) (*Integration, error) {
	if d == nil || d.Type != entity.TypeIntegration {
		return nil, fmt.Errorf("%w: not an integration", ErrInvalidConfig)
	}

	raw, err := json.Marshal(d.Fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode integration fields: %w", err)
	}
	var intg Integration
	if err := json.Unmarshal(raw, &intg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	intg.ID = d.ID
	intg.CreatedAt = d.CreatedAt
	intg.UpdatedAt = d.UpdatedAt
	intg.datum = d
	return &intg, nil
}

// ToDatum кодирует интеграцию обратно в документ, сохраняя служебные поля исходного документа
func (i *Integration) ToDatum() (*entity.Datum, error) {
	var d *entity.Datum
	if i.datum != nil {
		d = i.datum.Clone()
	} else {
		d = entity.New(entity.TypeIntegration)
		d.ID = i.ID
	}

	raw, err := json.Marshal(struct {
		Name   string `json:"name"`
		Type   string `json:"integration_type"`
		Config Config `json:"config"`
		Data   Data   `json:"data"`
	}{i.Name, i.Type, i.Config, i.Data})
	if err != nil {
		return nil, fmt.Errorf("failed to encode integration: %w", err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to encode integration: %w", err)
	}
	d.Fields = fields
	return d, nil
}
