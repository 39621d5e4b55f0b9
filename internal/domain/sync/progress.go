package sync

import (
	"slices"
	"time"
)

// Status стадия прогона синхронизации
type Status string

const (
	StatusInitializing       Status = "initializing"
	StatusSyncingCollections Status = "syncing_collections"
	StatusSyncingItems       Status = "syncing_items"
	StatusDone               Status = "done"
)

// RecordRef описание затронутой записи
type RecordRef struct {
	Type         string `json:"type"`
	ID           string `json:"id,omitempty"`
	RemoteID     string `json:"remote_id,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Snapshot состояние прогона на момент отправки.
// Каждый отправленный снимок независим от последующих изменений.
type Snapshot struct {
	Status      Status `json:"status"`
	ToPush      int    `json:"to_push"`
	ToPull      int    `json:"to_pull"`
	Pushed      int    `json:"pushed"`
	Pulled      int    `json:"pulled"`
	PullErrored int    `json:"pull_errored"`
	APICalls    int    `json:"api_calls"`

	RecordsCreatedOnRemote   []RecordRef `json:"records_created_on_remote,omitempty"`
	RecordsUpdatedOnRemote   []RecordRef `json:"records_updated_on_remote,omitempty"`
	RecordsRemovedFromRemote []RecordRef `json:"records_removed_from_remote,omitempty"`
	DataCreatedFromRemote    []RecordRef `json:"data_created_from_remote,omitempty"`
	DataUpdatedFromRemote    []RecordRef `json:"data_updated_from_remote,omitempty"`
	DataUpdateErrors         []RecordRef `json:"data_update_errors,omitempty"`
	DataDeletedFromRemote    []RecordRef `json:"data_deleted_from_remote,omitempty"`
	PushErrors               []RecordRef `json:"push_errors,omitempty"`

	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}

// Clone возвращает глубокую копию снимка
func (s Snapshot) Clone() Snapshot {
	c := s
	c.RecordsCreatedOnRemote = slices.Clone(s.RecordsCreatedOnRemote)
	c.RecordsUpdatedOnRemote = slices.Clone(s.RecordsUpdatedOnRemote)
	c.RecordsRemovedFromRemote = slices.Clone(s.RecordsRemovedFromRemote)
	c.DataCreatedFromRemote = slices.Clone(s.DataCreatedFromRemote)
	c.DataUpdatedFromRemote = slices.Clone(s.DataUpdatedFromRemote)
	c.DataUpdateErrors = slices.Clone(s.DataUpdateErrors)
	c.DataDeletedFromRemote = slices.Clone(s.DataDeletedFromRemote)
	c.PushErrors = slices.Clone(s.PushErrors)
	if s.LastSyncedAt != nil {
		t := *s.LastSyncedAt
		c.LastSyncedAt = &t
	}
	return c
}

// RemoteChanges количество записей, созданных, измененных или удаленных на удаленной стороне
func (s Snapshot) RemoteChanges() int {
	return len(s.RecordsCreatedOnRemote) + len(s.RecordsUpdatedOnRemote) + len(s.RecordsRemovedFromRemote)
}

// LocalChanges количество документов, созданных, измененных или удаленных локально
func (s Snapshot) LocalChanges() int {
	return len(s.DataCreatedFromRemote) + len(s.DataUpdatedFromRemote) + len(s.DataDeletedFromRemote)
}

// recordPullError добавляет ошибку сохранения, заменяя предыдущую ошибку той же записи
func (s *Snapshot) recordPullError(ref RecordRef) {
	for i, e := range s.DataUpdateErrors {
		if e.RemoteID == ref.RemoteID {
			s.DataUpdateErrors[i] = ref
			return
		}
	}
	s.DataUpdateErrors = append(s.DataUpdateErrors, ref)
	s.PullErrored++
}
