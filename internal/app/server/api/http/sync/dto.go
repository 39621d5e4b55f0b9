package sync

import domainsync "airsync/internal/domain/sync"

type runInput struct {
	ID   string `path:"id" doc:"Integration id"`
	Full bool   `query:"full" doc:"Ignore run markers and re-validate every remote link"`
}

// ProgressEvent промежуточный снимок прогона
type ProgressEvent struct {
	domainsync.Snapshot
}

// DoneEvent итоговый снимок успешного прогона
type DoneEvent struct {
	domainsync.Snapshot
}

// ErrorEvent прогон завершился ошибкой
type ErrorEvent struct {
	Message  string               `json:"message"`
	Snapshot *domainsync.Snapshot `json:"snapshot,omitempty"`
}
