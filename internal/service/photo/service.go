package photo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/plantphoto/internal/analyzer"
	"github.com/aliskhannn/plantphoto/internal/model"
	"github.com/aliskhannn/plantphoto/internal/processor"
	photorepo "github.com/aliskhannn/plantphoto/internal/repository/photo"
	"github.com/aliskhannn/plantphoto/internal/storage/file"
)

// DefaultMaxBytes is the upload limit used when none is configured.
const DefaultMaxBytes = 10 << 20

var (
	ErrEmptyImage    = errors.New("image is empty")
	ErrImageTooLarge = errors.New("image too large")
	ErrNotReady      = errors.New("photo has not been processed yet")
	ErrUnknownKind   = errors.New("unknown image kind")
)

// Image kinds served by OpenImage.
const (
	KindOriginal   = "original"
	KindNormalized = "image"
	KindPreview    = "preview"
)

// repository defines the persistence operations for photo records.
type repository interface {
	Create(ctx context.Context, p model.Photo) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (model.Photo, error)
	FindByHash(ctx context.Context, hash string) (model.Photo, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status, errText string) error
	SaveResult(ctx context.Context, p model.Photo) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// fileStorage defines the interface for storing photo files (e.g., MinIO).
type fileStorage interface {
	Save(ctx context.Context, subdir, filename string, src io.Reader, size int64, contentType string) (string, error)
	Load(ctx context.Context, objectName string) (io.ReadCloser, error)
	Delete(ctx context.Context, objectName string) error
}

// producer defines the interface for enqueueing tasks into a message broker (e.g., Kafka).
type producer interface {
	Produce(ctx context.Context, task model.PhotoTask) error
}

// derivedWriter stores the artifacts produced for an analyzed photo.
type derivedWriter interface {
	Process(ctx context.Context, id uuid.UUID, report *analyzer.Report) (processor.Derived, error)
}

// Service provides business logic for photo admission.
// It stores uploaded photos, publishes analysis tasks and records verdicts.
type Service struct {
	repo        repository
	fileStorage fileStorage
	producer    producer
	processor   derivedWriter
	analyzer    *analyzer.Analyzer
	maxBytes    int64
}

// NewService creates a new Service. maxBytes <= 0 selects DefaultMaxBytes.
func NewService(
	repo repository,
	fs fileStorage,
	p producer,
	proc derivedWriter,
	a *analyzer.Analyzer,
	maxBytes int64,
) *Service {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	return &Service{
		repo:        repo,
		fileStorage: fs,
		producer:    p,
		processor:   proc,
		analyzer:    a,
		maxBytes:    maxBytes,
	}
}

// MaxBytes returns the largest accepted upload size.
func (s *Service) MaxBytes() int64 {
	return s.maxBytes
}

// CheckSize verifies that an upload is neither empty nor above the limit.
func (s *Service) CheckSize(size int64) error {
	if size <= 0 {
		return ErrEmptyImage
	}
	if size > s.maxBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrImageTooLarge, size, s.maxBytes)
	}

	return nil
}

// SubmitPhoto stores an uploaded photo, creates a pending record and enqueues
// it for analysis. A photo whose content was already submitted is not stored
// again: the existing record is returned with duplicate set, unless that
// record failed.
func (s *Service) SubmitPhoto(ctx context.Context, filename, chatID string, data []byte) (photo model.Photo, duplicate bool, err error) {
	if err := s.CheckSize(int64(len(data))); err != nil {
		return model.Photo{}, false, fmt.Errorf("submit: %w", err)
	}

	hash := analyzer.ContentHash(data)

	// A failed record is not reused: the failure may have been temporary
	// (e.g. the broker was down), so the photo is submitted afresh.
	existing, err := s.repo.FindByHash(ctx, hash)
	switch {
	case err == nil && existing.Status == model.StatusFailed:
		zlog.Logger.Info().
			Str("id", existing.ID.String()).
			Str("hash", hash).
			Msg("resubmitting previously failed photo")
	case err == nil:
		zlog.Logger.Info().
			Str("id", existing.ID.String()).
			Str("hash", hash).
			Msg("duplicate photo submitted")
		return existing, true, nil
	case !errors.Is(err, photorepo.ErrPhotoNotFound):
		return model.Photo{}, false, fmt.Errorf("submit: failed to look up hash: %w", err)
	}

	id := uuid.New()

	// Save the original file to storage.
	dst, err := s.fileStorage.Save(
		ctx, file.DirOriginal, id.String()+strings.ToLower(path.Ext(filename)),
		bytes.NewReader(data), int64(len(data)), http.DetectContentType(data),
	)
	if err != nil {
		return model.Photo{}, false, fmt.Errorf("submit: failed to save file: %w", err)
	}

	photo = model.Photo{
		ID:           id,
		ChatID:       chatID,
		Filename:     filename,
		OriginalPath: dst,
		Hash:         hash,
		Size:         int64(len(data)),
		Status:       model.StatusPending,
		Reasons:      []string{},
		Issues:       []string{},
	}

	if _, err := s.repo.Create(ctx, photo); err != nil {
		if delErr := s.fileStorage.Delete(ctx, dst); delErr != nil {
			zlog.Logger.Err(delErr).Str("path", dst).Msg("failed to remove orphaned original")
		}
		return model.Photo{}, false, fmt.Errorf("submit: failed to create record: %w", err)
	}

	// Enqueue the task for asynchronous processing.
	task := model.PhotoTask{ID: id, Filename: filename, Path: dst}
	if err := s.producer.Produce(ctx, task); err != nil {
		if upErr := s.repo.UpdateStatus(ctx, id, model.StatusFailed, err.Error()); upErr != nil {
			zlog.Logger.Err(upErr).Str("id", id.String()).Msg("failed to mark photo as failed")
		}
		return model.Photo{}, false, fmt.Errorf("submit: failed to enqueue task: %w", err)
	}

	zlog.Logger.Info().
		Str("id", id.String()).
		Str("path", dst).
		Int("size", len(data)).
		Msg("photo submitted")

	return photo, false, nil
}

// CheckPhoto analyzes a photo synchronously without storing anything.
func (s *Service) CheckPhoto(data []byte) (*analyzer.Report, error) {
	if err := s.CheckSize(int64(len(data))); err != nil {
		return nil, fmt.Errorf("check: %w", err)
	}

	report, err := s.analyzer.Analyze(data)
	if err != nil {
		return nil, fmt.Errorf("check: %w", err)
	}

	return report, nil
}

// ProcessPhoto analyzes a stored photo and records the verdict.
//
// Tasks for deleted or already finished photos are skipped. A photo that
// cannot be decoded, or whose original is gone, is marked failed and the task
// is considered handled.
// Storage and database errors are returned so that the task is retried.
func (s *Service) ProcessPhoto(ctx context.Context, task model.PhotoTask) error {
	photo, err := s.repo.Get(ctx, task.ID)
	if err != nil {
		if errors.Is(err, photorepo.ErrPhotoNotFound) {
			zlog.Logger.Warn().Str("id", task.ID.String()).Msg("photo no longer exists, skipping task")
			return nil
		}
		return fmt.Errorf("process: failed to get photo: %w", err)
	}

	if photo.Terminal() {
		zlog.Logger.Info().
			Str("id", photo.ID.String()).
			Str("status", photo.Status).
			Msg("photo already processed, skipping task")
		return nil
	}

	if err := s.repo.UpdateStatus(ctx, photo.ID, model.StatusProcessing, ""); err != nil {
		return fmt.Errorf("process: failed to mark processing: %w", err)
	}

	// Load the original photo from storage.
	data, err := s.load(ctx, task.Path)
	if err != nil {
		// Retrying cannot bring back a missing original.
		if errors.Is(err, file.ErrObjectNotFound) {
			zlog.Logger.Warn().
				Err(err).
				Str("id", photo.ID.String()).
				Msg("original photo is missing")
			return s.markFailed(ctx, photo.ID, err)
		}
		return fmt.Errorf("process: %w", err)
	}

	report, err := s.analyzer.Analyze(data)
	if err != nil {
		if !analyzer.IsDecodeError(err) {
			return fmt.Errorf("process: failed to analyze photo: %w", err)
		}

		zlog.Logger.Warn().
			Err(err).
			Str("id", photo.ID.String()).
			Msg("photo could not be decoded")

		return s.markFailed(ctx, photo.ID, err)
	}

	derived, err := s.processor.Process(ctx, photo.ID, report)
	if err != nil {
		return fmt.Errorf("process: %w", err)
	}

	photo.NormalizedPath = derived.NormalizedPath
	photo.PreviewPath = derived.PreviewPath
	photo.Reasons = report.Verdict.Reasons
	photo.Issues = report.Verdict.Issues
	photo.Features = &report.Features
	photo.Metadata = &report.Meta
	photo.Status = model.StatusRejected
	if report.Verdict.Accepted {
		photo.Status = model.StatusAccepted
	}

	if err := s.repo.SaveResult(ctx, photo); err != nil {
		return fmt.Errorf("process: failed to save result: %w", err)
	}

	zlog.Logger.Info().
		Str("id", photo.ID.String()).
		Str("status", photo.Status).
		Float64("green_ratio", report.Features.GreenRatio).
		Float64("brightness", report.Features.Brightness).
		Strs("reasons", report.Verdict.Reasons).
		Msg("photo analyzed")

	return nil
}

// GetPhoto returns the photo record with the given ID.
func (s *Service) GetPhoto(ctx context.Context, id uuid.UUID) (model.Photo, error) {
	photo, err := s.repo.Get(ctx, id)
	if err != nil {
		return model.Photo{}, fmt.Errorf("get: %w", err)
	}

	return photo, nil
}

// OpenImage returns a reader for one of the stored files of a photo.
func (s *Service) OpenImage(ctx context.Context, id uuid.UUID, kind string) (io.ReadCloser, error) {
	photo, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	var objectName string
	switch kind {
	case KindOriginal:
		objectName = photo.OriginalPath
	case KindNormalized:
		objectName = photo.NormalizedPath
	case KindPreview:
		objectName = photo.PreviewPath
	default:
		return nil, fmt.Errorf("open: %w: %s", ErrUnknownKind, kind)
	}

	if objectName == "" {
		return nil, fmt.Errorf("open: %w", ErrNotReady)
	}

	rc, err := s.fileStorage.Load(ctx, objectName)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	return rc, nil
}

// DeletePhoto removes a photo record and its stored files.
func (s *Service) DeletePhoto(ctx context.Context, id uuid.UUID) error {
	photo, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	for _, objectName := range []string{photo.OriginalPath, photo.NormalizedPath, photo.PreviewPath} {
		if err := s.fileStorage.Delete(ctx, objectName); err != nil {
			zlog.Logger.Err(err).Str("path", objectName).Msg("failed to delete stored file")
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	return nil
}

// markFailed records a permanent processing failure. The task counts as
// handled once the status is stored.
func (s *Service) markFailed(ctx context.Context, id uuid.UUID, cause error) error {
	if err := s.repo.UpdateStatus(ctx, id, model.StatusFailed, cause.Error()); err != nil {
		return fmt.Errorf("process: failed to mark failed: %w", err)
	}
	return nil
}

func (s *Service) load(ctx context.Context, objectName string) ([]byte, error) {
	rc, err := s.fileStorage.Load(ctx, objectName)
	if err != nil {
		return nil, fmt.Errorf("failed to load original photo: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read original photo: %w", err)
	}

	return data, nil
}
