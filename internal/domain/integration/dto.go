package integration

// CreateRequest запрос на создание интеграции.
// Этот же формат используется в YAML файлах для `integration add --file`.
type CreateRequest struct {
	ID     string `json:"id,omitempty" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Config Config `json:"config" yaml:"config"`
}

// Summary краткое представление интеграции для CLI и API
type Summary struct {
	ID           string         `json:"id" yaml:"id"`
	Name         string         `json:"name" yaml:"name"`
	BaseID       string         `json:"airtable_base_id" yaml:"airtable_base_id"`
	ScopeType    ScopeType      `json:"scope_type" yaml:"scope_type"`
	LastSyncedAt string         `json:"last_synced_at,omitempty" yaml:"last_synced_at,omitempty"`
	APICalls     map[string]int `json:"api_calls,omitempty" yaml:"api_calls,omitempty"`
}

// Summarize строит краткое представление интеграции
func (i *Integration) Summarize() Summary {
	s := Summary{
		ID:        i.ID,
		Name:      i.Name,
		BaseID:    i.Config.BaseID,
		ScopeType: i.Config.ScopeType,
		APICalls:  i.Data.APICalls,
	}
	if i.Data.LastSyncedAt != nil {
		s.LastSyncedAt = i.Data.LastSyncedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return s
}
