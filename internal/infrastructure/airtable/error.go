package airtable

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind класс ошибки удаленного API
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindPermission
	KindRateLimited
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindPermission:
		return "permission"
	case KindRateLimited:
		return "rate_limited"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

const (
	typeNotFound        = "NOT_FOUND"
	typeModelNotFound   = "INVALID_PERMISSIONS_OR_MODEL_NOT_FOUND"
	typeRateLimited     = "RATE_LIMIT_REACHED"
	typeUnknown         = "UNKNOWN"
	unknownErrorMessage = "Unknown Error"
)

// APIError ошибка, возвращенная удаленным API
type APIError struct {
	Kind       Kind
	Type       string
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s - %s", e.Type, e.Message)
}

// IsNotFound сообщает, означает ли ошибка отсутствие записи.
// Ошибки прав доступа API возвращает для несуществующих моделей, поэтому они тоже считаются отсутствием.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Kind == KindNotFound || apiErr.Kind == KindPermission
}

// KindOf возвращает класс ошибки или KindUnknown
func KindOf(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// parseError разбирает тело ошибки. Поддерживаются оба формата:
// {"error": {"type": "...", "message": "..."}} и {"error": "NOT_FOUND"}.
func parseError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status, Type: typeUnknown}

	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Error) == 0 {
		e.Message = fmt.Sprintf("%s: %s", unknownErrorMessage, string(body))
	} else {
		var detailed struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		}
		var plain string
		switch {
		case json.Unmarshal(envelope.Error, &detailed) == nil && detailed.Type != "":
			e.Type = detailed.Type
			e.Message = detailed.Message
		case json.Unmarshal(envelope.Error, &plain) == nil && plain != "":
			e.Type = plain
			e.Message = plain
		default:
			e.Message = fmt.Sprintf("%s: %s", unknownErrorMessage, string(envelope.Error))
		}
	}

	e.Kind = classify(status, e.Type)
	return e
}

func classify(status int, typ string) Kind {
	switch typ {
	case typeNotFound:
		return KindNotFound
	case typeModelNotFound:
		return KindPermission
	case typeRateLimited:
		return KindRateLimited
	}
	switch {
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusForbidden:
		return KindPermission
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= http.StatusInternalServerError:
		return KindServer
	}
	return KindUnknown
}
