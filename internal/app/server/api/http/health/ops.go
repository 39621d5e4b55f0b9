package health

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) healthCheckOp() huma.Operation {
	return huma.Operation{
		OperationID: "get-health",
		Method:      http.MethodGet,
		Path:        "/api/v1/health",
		Summary:     "Service and storage status",
		Description: "Probes the document store by counting integrations. Responds 503 when the store is unreachable.",
		Tags:        []string{"health"},
		Middlewares: h.middleware,
	}
}
