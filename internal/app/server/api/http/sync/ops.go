package sync

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) runOp() huma.Operation {
	return huma.Operation{
		OperationID: "integrations-sync",
		Method:      http.MethodPost,
		Path:        "/api/v1/integrations/{id}/sync",
		Summary:     "Запустить синхронизацию",
		Description: "Выполняет прогон и отдает события progress, затем done или error.",
		Tags:        []string{"sync"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}
