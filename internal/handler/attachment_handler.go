package handler

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"go-chat-vault/internal/middleware"
	"go-chat-vault/internal/model"
	"go-chat-vault/internal/service"
	"go-chat-vault/pkg/apierror"
)

// multipart framing allowance on top of the per-file limit
const multipartOverhead = 1 << 20

type AttachmentHandler struct {
	service       *service.AttachmentService
	maxUploadSize int64
}

func NewAttachmentHandler(service *service.AttachmentService, maxUploadSize int64) *AttachmentHandler {
	return &AttachmentHandler{service: service, maxUploadSize: maxUploadSize}
}

// Upload accepts multipart "files" parts. Each part succeeds or fails on its
// own; the response lists both.
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthorized("authentication required"))
		return
	}

	if h.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartOverhead)
	}

	reader, err := r.MultipartReader()
	if err != nil {
		writeError(w, apierror.Validation("invalid multipart body", ""))
		return
	}

	result := model.UploadResponse{Uploaded: []model.FileRef{}, Failed: []model.UploadFailure{}}

	for {
		part, nextErr := reader.NextPart()
		if nextErr == io.EOF {
			break
		}
		if nextErr != nil {
			if isPayloadTooLarge(nextErr) {
				writeError(w, payloadTooLarge())
				return
			}
			writeError(w, apierror.Validation("invalid multipart stream", nextErr.Error()))
			return
		}

		if part.FormName() != "files" || strings.TrimSpace(part.FileName()) == "" {
			_ = part.Close()
			continue
		}

		ref, uploadErr := h.service.Upload(r.Context(), principal, part.FileName(), part, -1)
		_ = part.Close()
		if uploadErr != nil {
			if isPayloadTooLarge(uploadErr) {
				writeError(w, payloadTooLarge())
				return
			}
			var apiErr *apierror.APIError
			if errors.As(uploadErr, &apiErr) && apiErr.HTTPStatus == http.StatusServiceUnavailable {
				writeError(w, uploadErr)
				return
			}
			slog.Warn("attachment rejected", "name", part.FileName(), "error", uploadErr)
			result.Failed = append(result.Failed, model.UploadFailure{Name: part.FileName(), Reason: failureReason(uploadErr)})
			continue
		}

		result.Uploaded = append(result.Uploaded, ref)
	}

	status := http.StatusCreated
	if len(result.Uploaded) == 0 && len(result.Failed) == 0 {
		writeError(w, apierror.Validation("no files in request", "files"))
		return
	}
	if len(result.Uploaded) == 0 {
		status = http.StatusBadRequest
	}

	writeSuccess(w, status, "", result)
}

func (h *AttachmentHandler) Download(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthorized("authentication required"))
		return
	}

	storedName := chi.URLParam(r, "fileID")
	body, contentType, err := h.service.Open(r.Context(), principal, storedName)
	if err != nil {
		writeError(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": storedName}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, body); err != nil {
		slog.Warn("attachment download interrupted", "file", storedName, "error", err)
	}
}

func isPayloadTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return true
	}
	return apierror.HasCode(err, apierror.CodePayloadTooLarge) ||
		strings.Contains(strings.ToLower(err.Error()), "request body too large")
}

func payloadTooLarge() error {
	return apierror.New(apierror.CodePayloadTooLarge, "request body exceeds MAX_UPLOAD_SIZE", "MAX_UPLOAD_SIZE", http.StatusRequestEntityTooLarge)
}

func failureReason(err error) string {
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return "upload failed"
}
