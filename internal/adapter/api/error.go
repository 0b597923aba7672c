package api

import (
	"net/http"

	"github.com/eslsoft/lexloop/internal/entity"
)

// ErrorEnvelope is the JSON body of every non-2xx response.
type ErrorEnvelope struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// statusForKind maps the error taxonomy onto HTTP status codes.
func statusForKind(kind entity.ErrorKind) int {
	switch kind {
	case entity.KindInvalidInput:
		return http.StatusBadRequest
	case entity.KindNotFound:
		return http.StatusNotFound
	case entity.KindConflict:
		return http.StatusConflict
	case entity.KindRateLimited:
		return http.StatusTooManyRequests
	case entity.KindTransient:
		return http.StatusServiceUnavailable
	case entity.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
