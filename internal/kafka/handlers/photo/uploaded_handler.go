package photo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/plantphoto/internal/model"
)

// service defines the interface for processing uploaded photos.
type service interface {
	ProcessPhoto(ctx context.Context, task model.PhotoTask) error
}

// UploadedHandler handles Kafka messages for newly uploaded photos.
type UploadedHandler struct {
	service service
}

// NewUploadedHandler creates a new handler with the given service.
func NewUploadedHandler(s service) *UploadedHandler {
	return &UploadedHandler{service: s}
}

// Handle decodes a photo task from a Kafka message and runs the analysis.
// Malformed messages are dropped: redelivering them cannot succeed.
func (h *UploadedHandler) Handle(ctx context.Context, msg kafka.Message) error {
	var task model.PhotoTask
	if err := json.Unmarshal(msg.Value, &task); err != nil || task.ID == uuid.Nil {
		zlog.Logger.Warn().
			Err(err).
			Str("message", string(msg.Value)).
			Msg("dropping malformed photo task")
		return nil
	}

	if err := h.service.ProcessPhoto(ctx, task); err != nil {
		return fmt.Errorf("process task: %w", err)
	}

	zlog.Logger.Printf("photo processed: %s", task.ID)

	return nil
}
