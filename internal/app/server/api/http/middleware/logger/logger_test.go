package logger

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/slog"
)

type pingOutput struct {
	Body struct {
		OK bool `json:"ok"`
	}
}

func TestLogger_Middleware(t *testing.T) {
	tests := []struct {
		name      string
		fail      error
		wantLevel string
	}{
		{name: "success", wantLevel: "level=INFO"},
		{name: "client error", fail: huma.Error404NotFound("nope"), wantLevel: "level=WARN"},
		{name: "server error", fail: huma.Error500InternalServerError("boom"), wantLevel: "level=ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			mw := New(slog.New(slog.NewTextHandler(&buf, nil)))

			_, api := humatest.New(t)
			huma.Register(api, huma.Operation{
				OperationID: "ping",
				Method:      http.MethodGet,
				Path:        "/ping",
				Middlewares: huma.Middlewares{mw.Middleware()},
			}, func(context.Context, *struct{}) (*pingOutput, error) {
				if tt.fail != nil {
					return nil, tt.fail
				}
				return &pingOutput{}, nil
			})

			api.Get("/ping")

			out := buf.String()
			assert.Contains(t, out, tt.wantLevel)
			assert.Contains(t, out, "operation=ping")
			assert.Contains(t, out, "path=/ping")
		})
	}
}
