package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"log/slog"
	"net/http"
	"strings"
	"time"

	"inkwell/internal/blobstore"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	MaxThumbnailBytes = 2_000_000
	MaxAvatarBytes    = 500_000

	DefaultBlobOpTimeout = 5 * time.Second
)

// Upload is one file received from a client. Its content type is always
// sniffed from Data; the client-declared type is not trusted.
type Upload struct {
	Data []byte
}

// MediaPolicy carries the per-entity limits and client-facing messages for a
// blob-bearing field.
type MediaPolicy struct {
	Resource        string
	Label           string
	MaxBytes        int
	MissingMessage  string
	TooLargeMessage string
}

var (
	PostThumbnailPolicy = MediaPolicy{
		Resource:        "Post",
		Label:           "thumbnail",
		MaxBytes:        MaxThumbnailBytes,
		MissingMessage:  "Fill in all fields and choose thumbnail.",
		TooLargeMessage: "Thumbnail too big. File should be less than 2mb.",
	}
	AvatarPolicy = MediaPolicy{
		Resource:        "User",
		Label:           "avatar",
		MaxBytes:        MaxAvatarBytes,
		MissingMessage:  "Please choose an image.",
		TooLargeMessage: "Profile picture too big. Should be less than 500kb.",
	}
)

var allowedImageMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// MediaCoordinator keeps a blob and the record that references it consistent
// across create, replace and delete. The record side of each operation is
// supplied by the caller as a closure.
type MediaCoordinator struct {
	store      blobstore.Store
	publicBase string
	opTimeout  time.Duration
	newKey     func() (string, error)
	logger     *slog.Logger
}

func NewMediaCoordinator(store blobstore.Store, publicBase string, opTimeout time.Duration, logger *slog.Logger) *MediaCoordinator {
	if opTimeout <= 0 {
		opTimeout = DefaultBlobOpTimeout
	}
	if logger == nil {
		logger = middleware.Logger
	}
	return &MediaCoordinator{
		store:      store,
		publicBase: publicBase,
		opTimeout:  opTimeout,
		newKey:     blobstore.NewKey,
		logger:     logger,
	}
}

// PublicBase returns the URL prefix every stored blob URL starts with.
func (m *MediaCoordinator) PublicBase() string {
	return m.publicBase
}

// Validate checks upload against policy without touching any store and
// returns the sniffed content type.
func (m *MediaCoordinator) Validate(upload *Upload, policy MediaPolicy) (string, error) {
	if upload == nil || len(upload.Data) == 0 {
		return "", models.NewValidationError(policy.MissingMessage)
	}
	if len(upload.Data) > policy.MaxBytes {
		return "", models.NewValidationError(policy.TooLargeMessage)
	}

	detected := http.DetectContentType(upload.Data)
	if !allowedImageMIME[detected] {
		return "", models.NewValidationError("Invalid image type. Use JPEG, PNG, GIF or WebP.")
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(upload.Data)); err != nil {
		return "", models.NewValidationError("Invalid image file.")
	}
	return detected, nil
}

// CreateWithBlob uploads a new blob and then calls persist with its
// reference. When persist fails the blob stays in the store unreferenced.
func (m *MediaCoordinator) CreateWithBlob(
	ctx context.Context,
	upload *Upload,
	policy MediaPolicy,
	persist func(ctx context.Context, ref models.BlobRef) error,
) (models.BlobRef, error) {
	span, ctx := observability.StartSpan(ctx, "media.create", attribute.String("media.field", policy.Label))
	defer span.End()

	contentType, err := m.Validate(upload, policy)
	if err != nil {
		return models.BlobRef{}, err
	}

	ref, err := m.upload(ctx, upload.Data, contentType, policy)
	if err != nil {
		span.SetError(err)
		return models.BlobRef{}, err
	}
	span.AddAttributes(attribute.String("blob.key", ref.Key))

	if err := persist(ctx, ref); err != nil {
		span.SetError(err)
		observability.MediaInconsistencies.WithLabelValues("orphan").Inc()
		m.logger.WarnContext(ctx, "blob orphaned after failed record create",
			slog.String("field", policy.Label),
			slog.String("blob_key", ref.Key),
			slog.String("error", err.Error()),
		)
		return models.BlobRef{}, persistError(err, policy)
	}
	return ref, nil
}

// ReplaceBlob swaps the blob referenced by holder for upload. A nil upload
// only runs persist. The old blob is deleted before the new one is written;
// if that delete fails nothing is changed.
func (m *MediaCoordinator) ReplaceBlob(
	ctx context.Context,
	holder models.BlobHolder,
	upload *Upload,
	policy MediaPolicy,
	persist func(ctx context.Context, ref *models.BlobRef) error,
) error {
	span, ctx := observability.StartSpan(ctx, "media.replace", attribute.String("media.field", policy.Label))
	defer span.End()

	if upload == nil {
		if err := persist(ctx, nil); err != nil {
			span.SetError(err)
			return persistError(err, policy)
		}
		return nil
	}

	contentType, err := m.Validate(upload, policy)
	if err != nil {
		return err
	}

	oldURL := holder.BlobURL()
	oldKey, hasOld := blobstore.KeyFromURL(m.publicBase, oldURL)
	if hasOld {
		if err := m.remove(ctx, oldKey); err != nil {
			span.SetError(err)
			return models.NewStorageError(fmt.Sprintf("Could not remove the old %s.", policy.Label), err)
		}
	}

	ref, err := m.upload(ctx, upload.Data, contentType, policy)
	if err != nil {
		span.SetError(err)
		if hasOld {
			m.staleReference(ctx, policy, oldKey, err)
		}
		return err
	}
	span.AddAttributes(attribute.String("blob.key", ref.Key))

	holder.SetBlobURL(ref.URL)
	if err := persist(ctx, &ref); err != nil {
		span.SetError(err)
		holder.SetBlobURL(oldURL)
		observability.MediaInconsistencies.WithLabelValues("orphan").Inc()
		m.logger.WarnContext(ctx, "blob orphaned after failed record update",
			slog.String("field", policy.Label),
			slog.String("blob_key", ref.Key),
			slog.String("error", err.Error()),
		)
		if hasOld {
			m.staleReference(ctx, policy, oldKey, err)
		}
		return persistError(err, policy)
	}
	return nil
}

// DeleteWithBlob removes holder's blob and then the record via remove. Only
// the owner may delete. A failed blob delete leaves the record in place.
func (m *MediaCoordinator) DeleteWithBlob(
	ctx context.Context,
	holder models.BlobHolder,
	requesterID uint,
	policy MediaPolicy,
	remove func(ctx context.Context) error,
) error {
	span, ctx := observability.StartSpan(ctx, "media.delete", attribute.String("media.field", policy.Label))
	defer span.End()

	if requesterID == 0 || requesterID != holder.OwnerID() {
		return models.NewForbiddenError(fmt.Sprintf("%s couldn't be deleted.", policy.Resource))
	}

	key, hasBlob := blobstore.KeyFromURL(m.publicBase, holder.BlobURL())
	if hasBlob {
		if err := m.remove(ctx, key); err != nil {
			span.SetError(err)
			return models.NewStorageError(fmt.Sprintf("Could not remove the %s.", policy.Label), err)
		}
	}

	if err := remove(ctx); err != nil {
		span.SetError(err)
		if hasBlob {
			m.staleReference(ctx, policy, key, err)
		}
		return persistError(err, policy)
	}
	return nil
}

func (m *MediaCoordinator) upload(ctx context.Context, data []byte, contentType string, policy MediaPolicy) (models.BlobRef, error) {
	key, err := m.newKey()
	if err != nil {
		return models.BlobRef{}, models.NewInternalError(err)
	}

	callCtx, cancel := context.WithTimeout(ctx, m.opTimeout)
	defer cancel()
	if err := m.store.Put(callCtx, key, data, contentType, true); err != nil {
		return models.BlobRef{}, models.NewStorageError(fmt.Sprintf("Could not upload the %s.", policy.Label), err)
	}
	return models.BlobRef{Key: key, URL: blobstore.PublicURL(m.publicBase, key)}, nil
}

// remove deletes key; an already missing object counts as removed.
func (m *MediaCoordinator) remove(ctx context.Context, key string) error {
	callCtx, cancel := context.WithTimeout(ctx, m.opTimeout)
	defer cancel()
	if err := m.store.Delete(callCtx, key); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		return err
	}
	return nil
}

func (m *MediaCoordinator) staleReference(ctx context.Context, policy MediaPolicy, key string, cause error) {
	observability.MediaInconsistencies.WithLabelValues("stale").Inc()
	m.logger.WarnContext(ctx, "record may reference a deleted blob",
		slog.String("field", policy.Label),
		slog.String("blob_key", key),
		slog.String("error", cause.Error()),
	)
}

func persistError(err error, policy MediaPolicy) error {
	if _, ok := models.AsAppError(err); ok {
		return err
	}
	return models.NewPersistenceError(fmt.Sprintf("Could not save the %s.", strings.ToLower(policy.Resource)), err)
}
