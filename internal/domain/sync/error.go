package sync

import "errors"

var (
	ErrIntegrationNotFound = errors.New("integration not found")
	ErrMissingAccessToken  = errors.New("missing access token")
	ErrSyncInProgress      = errors.New("sync is already running")
)
