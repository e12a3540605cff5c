package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"go-chat-vault/internal/model"
	"go-chat-vault/pkg/apierror"
)

const (
	defaultRequestTimeout = 30 * time.Second
	codeRequestTimeout    = "REQUEST_TIMEOUT"
)

// Timeout bounds JSON API handlers. It buffers the response, so it must not
// wrap websocket or attachment streaming routes.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	body := timeoutBody()

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, body)
	}
}

func timeoutBody() string {
	const msg = "request timed out"
	raw, _ := json.Marshal(model.APIResponse{
		Message: msg,
		Error: &model.APIError{
			Code:    codeRequestTimeout,
			Message: msg,
			Status:  apierror.Classify(http.StatusServiceUnavailable),
		},
	})
	return string(raw)
}
