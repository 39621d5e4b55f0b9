package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func TestHandler_healthCheck(t *testing.T) {
	tests := []struct {
		name       string
		probe      Checker
		wantStatus int
		want       Response
	}{
		{
			name:       "storage reachable",
			probe:      func(context.Context) (int, error) { return 2, nil },
			wantStatus: http.StatusOK,
			want:       Response{Status: "OK", Storage: "OK", Integrations: 2, LatencyMS: 5},
		},
		{
			name:       "no probe configured",
			wantStatus: http.StatusOK,
			want:       Response{Status: "OK"},
		},
		{
			name:       "storage is down",
			probe:      func(context.Context) (int, error) { return 0, errors.New("database is locked") },
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, api := humatest.New(t)
			h := NewHandler(tt.probe, slog.New(slog.NewTextHandler(io.Discard, nil)), huma.Middlewares{})
			clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
			h.now = func() time.Time {
				clock = clock.Add(5 * time.Millisecond)
				return clock
			}
			h.SetupRoutes(api)

			resp := api.Get("/api/v1/health")

			require.Equal(t, tt.wantStatus, resp.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}
			var body Response
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
			assert.Equal(t, tt.want, body)
		})
	}
}
