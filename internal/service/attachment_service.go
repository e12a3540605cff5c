package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/google/uuid"

	"go-chat-vault/internal/event"
	"go-chat-vault/internal/model"
	"go-chat-vault/internal/storage"
	"go-chat-vault/internal/util"
	"go-chat-vault/pkg/apierror"
)

// AttachmentService stores attachment bytes per owner. Only the returned
// FileRef metadata is ever written into chat threads.
type AttachmentService struct {
	blobs   storage.BlobStore
	bus     event.Bus
	maxSize int64
	now     func() time.Time
}

func NewAttachmentService(blobs storage.BlobStore, bus event.Bus, maxSize int64) *AttachmentService {
	return &AttachmentService{blobs: blobs, bus: bus, maxSize: maxSize, now: time.Now}
}

func (s *AttachmentService) MaxSize() int64 {
	return s.maxSize
}

// Upload stores one attachment. size is the declared length, or -1 when unknown.
func (s *AttachmentService) Upload(ctx context.Context, principal model.Principal, name string, r io.Reader, size int64) (model.FileRef, error) {
	if err := requirePersistentPrincipal(principal); err != nil {
		return model.FileRef{}, err
	}

	cleanName, err := util.SanitizeFilename(name)
	if err != nil {
		return model.FileRef{}, err
	}
	if s.maxSize > 0 && size > s.maxSize {
		return model.FileRef{}, tooLarge(cleanName, s.maxSize)
	}

	sniffed, body, err := util.SniffMIME(r)
	if err != nil {
		return model.FileRef{}, fmt.Errorf("read upload: %w", err)
	}
	if s.maxSize > 0 {
		body = io.LimitReader(body, s.maxSize+1)
	}

	id := uuid.NewString()
	storedName := id + util.SafeExtension(cleanName)
	contentType := util.PreferredMIME(sniffed, cleanName)
	key := blobKey(principal.ID, storedName)

	written, err := s.blobs.Put(ctx, key, body, size, contentType)
	if err != nil {
		return model.FileRef{}, fmt.Errorf("store attachment: %w", err)
	}
	if s.maxSize > 0 && written > s.maxSize {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			slog.Warn("failed to remove oversized attachment", "key", key, "error", delErr)
		}
		return model.FileRef{}, tooLarge(cleanName, s.maxSize)
	}

	ref := model.FileRef{
		ID:           id,
		OriginalName: cleanName,
		StoredName:   storedName,
		MIMEType:     contentType,
		Size:         written,
		UploadedAt:   s.now().UTC(),
	}

	slog.Info("attachment stored", "owner_id", principal.ID, "file_id", id, "size", written)
	if s.bus != nil {
		s.bus.Publish(event.New(event.TypeFileUploaded, principal.ID, ref))
	}

	return ref, nil
}

// Open streams an attachment owned by principal. storedName is the value
// previously returned in FileRef.StoredName.
func (s *AttachmentService) Open(ctx context.Context, principal model.Principal, storedName string) (io.ReadCloser, string, error) {
	if err := requirePersistentPrincipal(principal); err != nil {
		return nil, "", err
	}
	if !util.StoredNamePattern.MatchString(storedName) {
		return nil, "", apierror.NotFound("File not found", storedName)
	}

	reader, err := s.blobs.Open(ctx, blobKey(principal.ID, storedName))
	if errors.Is(err, model.ErrFileNotFound) {
		return nil, "", apierror.NotFound("File not found", storedName)
	}
	if err != nil {
		return nil, "", fmt.Errorf("open attachment: %w", err)
	}

	return reader, util.MIMEFromName(storedName), nil
}

func requirePersistentPrincipal(principal model.Principal) error {
	if principal.ID == "" {
		return apierror.Unauthorized("authentication required")
	}
	if principal.Demo {
		return apierror.Unavailable("attachments are not stored for demo sessions")
	}
	return nil
}

func blobKey(ownerID string, storedName string) string {
	return path.Join(ownerID, storedName)
}

func tooLarge(name string, limit int64) error {
	return apierror.New(apierror.CodePayloadTooLarge,
		fmt.Sprintf("file exceeds the %d byte limit", limit), name, http.StatusRequestEntityTooLarge)
}
