package integration

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) listOp() huma.Operation {
	return huma.Operation{
		OperationID: "integrations-list",
		Method:      http.MethodGet,
		Path:        "/api/v1/integrations",
		Summary:     "Список интеграций",
		Tags:        []string{"integrations"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) findOp() huma.Operation {
	return huma.Operation{
		OperationID: "integrations-find",
		Method:      http.MethodGet,
		Path:        "/api/v1/integrations/{id}",
		Summary:     "Получить интеграцию",
		Tags:        []string{"integrations"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) usageOp() huma.Operation {
	return huma.Operation{
		OperationID: "integrations-usage",
		Method:      http.MethodGet,
		Path:        "/api/v1/integrations/{id}/usage",
		Summary:     "Вызовы API по месяцам",
		Description: "Счетчик запросов к удаленной базе, который накапливается прогонами синхронизации.",
		Tags:        []string{"integrations"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}
