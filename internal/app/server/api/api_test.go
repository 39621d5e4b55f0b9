package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"airsync/internal/domain/integration"
	"airsync/internal/domain/sync"
	"airsync/internal/infrastructure/airtable"
	"airsync/internal/infrastructure/secrets"
	"airsync/internal/infrastructure/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

const apiToken = "api-secret"

// newTestServer поднимает API поверх хранилища в памяти и Airtable без таблиц
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"tables":[]}`)
	}))
	t.Cleanup(remote.Close)

	repo := memory.New()
	intgs := integration.NewService(repo, log)
	_, err := intgs.Create(context.Background(), integration.CreateRequest{
		ID:   "intg1",
		Name: "Workshop",
		Config: integration.Config{
			BaseID:              "app1",
			ScopeType:           integration.ScopeCollections,
			CollectionIDsToSync: []string{"c1"},
		},
	})
	require.NoError(t, err)

	gateways := sync.AirtableGateways(log,
		airtable.WithBaseURL(remote.URL),
		airtable.WithLimits(airtable.Limits{MinInterval: time.Millisecond, RetryDelay: time.Millisecond}),
	)
	env := &secrets.EnvProvider{LookupEnv: func(key string) (string, bool) {
		return "tok", key == "AIRSYNC_ACCESS_TOKEN"
	}}

	srv := httptest.NewServer(New(Deps{
		Repo:         repo,
		Integrations: intgs,
		Sync:         sync.NewService(repo, gateways, log, nil),
		Secrets:      env,
		APIToken:     apiToken,
	}, log))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path string, authorized bool) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, nil)
	require.NoError(t, err)
	if authorized {
		req.Header.Set("Authorization", "Bearer "+apiToken)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAPI_Auth(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name       string
		method     string
		path       string
		authorized bool
		wantStatus int
	}{
		{name: "health is public", method: http.MethodGet, path: "/api/v1/health", wantStatus: http.StatusOK},
		{name: "list requires token", method: http.MethodGet, path: "/api/v1/integrations", wantStatus: http.StatusUnauthorized},
		{name: "list with token", method: http.MethodGet, path: "/api/v1/integrations", authorized: true, wantStatus: http.StatusOK},
		{name: "sync requires token", method: http.MethodPost, path: "/api/v1/integrations/intg1/sync", wantStatus: http.StatusUnauthorized},
		{name: "unknown integration", method: http.MethodGet, path: "/api/v1/integrations/nope", authorized: true, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, srv, tt.method, tt.path, tt.authorized)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestAPI_SyncFailureIsCountedInUsage(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, http.MethodPost, "/api/v1/integrations/intg1/sync", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	body := string(raw)
	assert.True(t, strings.HasPrefix(body, "event: progress"), body)
	assert.Contains(t, body, "event: error")
	assert.Contains(t, body, "Collections")
	assert.NotContains(t, body, "event: done")

	usage := do(t, srv, http.MethodGet, "/api/v1/integrations/intg1/usage", true)
	require.Equal(t, http.StatusOK, usage.StatusCode)
	var out struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.NewDecoder(usage.Body).Decode(&out))
	// единственный вызов API: чтение схемы
	assert.Equal(t, 1, out.Total)
}
