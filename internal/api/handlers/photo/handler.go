package photo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/plantphoto/internal/analyzer"
	"github.com/aliskhannn/plantphoto/internal/api/respond"
	"github.com/aliskhannn/plantphoto/internal/model"
	photorepo "github.com/aliskhannn/plantphoto/internal/repository/photo"
	photosvc "github.com/aliskhannn/plantphoto/internal/service/photo"
	"github.com/aliskhannn/plantphoto/internal/storage/file"
)

// multipartOverhead is allowed on top of the photo size for form boundaries and fields.
const multipartOverhead = 1 << 20

// service defines the interface for photo-related operations.
type service interface {
	SubmitPhoto(ctx context.Context, filename, chatID string, data []byte) (model.Photo, bool, error)
	CheckPhoto(data []byte) (*analyzer.Report, error)
	GetPhoto(ctx context.Context, id uuid.UUID) (model.Photo, error)
	OpenImage(ctx context.Context, id uuid.UUID, kind string) (io.ReadCloser, error)
	DeletePhoto(ctx context.Context, id uuid.UUID) error
	MaxBytes() int64
}

// Handler provides HTTP handlers for photo endpoints.
type Handler struct {
	service service
}

// NewHandler creates a new Handler with the given service.
func NewHandler(s service) *Handler {
	return &Handler{service: s}
}

// SubmitResponse is returned when a photo is queued for analysis.
type SubmitResponse struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

// Upload stores a photo and queues it for analysis.
// A photo that was already submitted returns its existing record.
func (h *Handler) Upload(c *ginext.Context) {
	data, filename, ok := h.readPhoto(c)
	if !ok {
		return
	}

	photo, duplicate, err := h.service.SubmitPhoto(c.Request.Context(), filename, c.PostForm("chat_id"), data)
	if err != nil {
		zlog.Logger.Err(err).Str("filename", filename).Msg("failed to submit photo")
		respond.Fail(c, statusFor(err), publicError(err))
		return
	}

	if duplicate {
		respond.OK(c, photo)
		return
	}

	respond.Accepted(c, SubmitResponse{ID: photo.ID, Status: photo.Status})
}

// Check analyzes a photo synchronously and returns the full report.
// Nothing is stored.
func (h *Handler) Check(c *ginext.Context) {
	data, filename, ok := h.readPhoto(c)
	if !ok {
		return
	}

	report, err := h.service.CheckPhoto(data)
	if err != nil {
		zlog.Logger.Warn().Err(err).Str("filename", filename).Msg("photo check failed")
		respond.Fail(c, statusFor(err), publicError(err))
		return
	}

	respond.OK(c, report)
}

// Get returns the record of a photo.
func (h *Handler) Get(c *ginext.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	photo, err := h.service.GetPhoto(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "failed to get photo")
		return
	}

	respond.OK(c, photo)
}

// Image serves the normalized JPEG of a photo.
func (h *Handler) Image(c *ginext.Context) {
	h.serve(c, photosvc.KindNormalized)
}

// Preview serves the verdict preview of a photo.
func (h *Handler) Preview(c *ginext.Context) {
	h.serve(c, photosvc.KindPreview)
}

// Delete removes a photo by ID.
func (h *Handler) Delete(c *ginext.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.service.DeletePhoto(c.Request.Context(), id); err != nil {
		h.fail(c, err, "failed to delete photo")
		return
	}

	c.Status(http.StatusNoContent)
}

// Health reports that the server is up.
func (h *Handler) Health(c *ginext.Context) {
	respond.OK(c, ginext.H{"status": "ok"})
}

func (h *Handler) serve(c *ginext.Context, kind string) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	reader, err := h.service.OpenImage(c.Request.Context(), id, kind)
	if err != nil {
		h.fail(c, err, "failed to open photo")
		return
	}
	defer reader.Close()

	respond.JPEG(c, http.StatusOK, reader)
}

func (h *Handler) fail(c *ginext.Context, err error, msg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		zlog.Logger.Err(err).Msg(msg)
	}
	respond.Fail(c, status, publicError(err))
}

// readPhoto reads the "photo" form file and enforces the upload limit.
func (h *Handler) readPhoto(c *ginext.Context) ([]byte, string, bool) {
	limit := h.service.MaxBytes()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)

	file, header, err := c.Request.FormFile("photo")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Fail(c, http.StatusRequestEntityTooLarge, photosvc.ErrImageTooLarge)
			return nil, "", false
		}

		zlog.Logger.Warn().Err(err).Msg("failed to retrieve the photo")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("photo field is required"))
		return nil, "", false
	}
	defer file.Close()

	if header.Size > limit {
		respond.Fail(c, http.StatusRequestEntityTooLarge, photosvc.ErrImageTooLarge)
		return nil, "", false
	}

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		zlog.Logger.Err(err).Msg("failed to read the photo")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("failed to read the photo"))
		return nil, "", false
	}

	return data, header.Filename, true
}

func parseID(c *ginext.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid id"))
		return uuid.Nil, false
	}

	return id, true
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, photosvc.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, photosvc.ErrEmptyImage), errors.Is(err, photosvc.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, analyzer.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, analyzer.ErrImageTooSmall), errors.Is(err, analyzer.ErrTooManyPixels),
		errors.Is(err, analyzer.ErrDecode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, photorepo.ErrPhotoNotFound), errors.Is(err, file.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, photosvc.ErrNotReady):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// publicError hides internal error details from clients.
func publicError(err error) error {
	if statusFor(err) == http.StatusInternalServerError {
		return errors.New("internal error")
	}
	return err
}
