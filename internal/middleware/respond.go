package middleware

import (
	"encoding/json"
	"net/http"

	"go-chat-vault/internal/model"
	"go-chat-vault/pkg/apierror"
)

func writeError(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Message: message,
		Error: &model.APIError{
			Code:    code,
			Message: message,
			Status:  apierror.Classify(status),
		},
	})
}
