package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/aliskhannn/plantphoto/internal/analyzer"
)

// Photo statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusAccepted   = "accepted"
	StatusRejected   = "rejected"
	StatusFailed     = "failed"
)

// Photo is an uploaded plant photo and the outcome of its admission check.
type Photo struct {
	ID             uuid.UUID `json:"id"`
	ChatID         string    `json:"chat_id,omitempty"`
	Filename       string    `json:"filename"`
	OriginalPath   string    `json:"original_path"`
	NormalizedPath string    `json:"normalized_path,omitempty"`
	PreviewPath    string    `json:"preview_path,omitempty"`
	Hash           string    `json:"hash"`
	Size           int64     `json:"size"`
	Status         string    `json:"status"` // pending / processing / accepted / rejected / failed
	Reasons        []string  `json:"reasons"`
	Issues         []string  `json:"issues"`

	Features *analyzer.FeatureVector `json:"features,omitempty"`
	Metadata *analyzer.Metadata      `json:"metadata,omitempty"`

	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Terminal reports whether the photo needs no further processing.
func (p Photo) Terminal() bool {
	return p.Status == StatusAccepted || p.Status == StatusRejected || p.Status == StatusFailed
}

// PhotoTask is the queue message asking a worker to analyze a stored photo.
type PhotoTask struct {
	ID       uuid.UUID `json:"id"`
	Filename string    `json:"filename"`
	Path     string    `json:"file_path"`
}
