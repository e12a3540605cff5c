package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"go-chat-vault/internal/model"
	"go-chat-vault/pkg/apierror"
)

const maxJSONBody = 4 << 20

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// writeError renders err as a success=false envelope. Unclassified errors are
// logged and reported as INTERNAL_ERROR without leaking details.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    apierror.CodeInternal,
		Message: "Unexpected server error",
	}

	var apiErr *apierror.APIError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
	case errors.Is(err, model.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
		body.Code = apierror.CodeUnavailable
		body.Message = "Service temporarily unavailable"
	case errors.Is(err, model.ErrDuplicateEmail):
		status = http.StatusConflict
		body.Code = apierror.CodeDuplicateEmail
		body.Message = "Email is already registered"
	case errors.Is(err, model.ErrInvalidCredentials):
		status = http.StatusUnauthorized
		body.Code = apierror.CodeInvalidCredentials
		body.Message = "Invalid email or password"
	case errors.Is(err, model.ErrUnauthorized), errors.Is(err, model.ErrUserNotFound):
		status = http.StatusUnauthorized
		body.Code = apierror.CodeUnauthorized
		body.Message = "Authentication required"
	case errors.Is(err, model.ErrResetTokenNotFound):
		status = http.StatusBadRequest
		body.Code = apierror.CodeInvalidOrExpiredToken
		body.Message = "Reset token is invalid or has expired"
	case errors.Is(err, model.ErrChatNotFound):
		status = http.StatusNotFound
		body.Code = apierror.CodeNotFound
		body.Message = "Chat not found"
	case errors.Is(err, model.ErrFileNotFound):
		status = http.StatusNotFound
		body.Code = apierror.CodeNotFound
		body.Message = "File not found"
	case errors.Is(err, model.ErrInvalidInput):
		status = http.StatusBadRequest
		body.Code = apierror.CodeValidation
		body.Message = "Invalid input"
	default:
		slog.Error("unhandled error in writeError", "error", err)
	}
	body.Status = apierror.Classify(status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Message: body.Message,
		Error:   body,
	})
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	defer r.Body.Close()

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := decoder.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apierror.New(apierror.CodePayloadTooLarge, "request body too large", "", http.StatusRequestEntityTooLarge)
		}
		if errors.Is(err, io.EOF) {
			return apierror.Validation("request body is required", "")
		}
		return apierror.Validation("invalid JSON body", err.Error())
	}
	return nil
}
