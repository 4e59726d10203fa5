package photo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/aliskhannn/plantphoto/internal/model"
)

var ErrPhotoNotFound = errors.New("photo not found")

// Repository provides CRUD operations for photos in the database.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new Repository with the given DB connection.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

const photoColumns = `
	id, chat_id, filename, original_path, normalized_path, preview_path,
	hash, size, status, reasons, issues, features, metadata, error,
	created_at, updated_at`

// Create inserts a new photo record and returns its UUID.
func (r *Repository) Create(ctx context.Context, p model.Photo) (uuid.UUID, error) {
	query := `
		INSERT INTO photos (id, chat_id, filename, original_path, hash, size, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	_, err := r.db.Master.ExecContext(
		ctx, query, p.ID, p.ChatID, p.Filename, p.OriginalPath, p.Hash, p.Size, p.Status,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create: failed to save photo: %w", err)
	}

	return p.ID, nil
}

// Get retrieves a photo record by ID.
// Reads go to the master: status drives processing and replicas may lag.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (model.Photo, error) {
	query := `SELECT ` + photoColumns + ` FROM photos WHERE id = $1`

	p, err := scanPhoto(r.db.Master.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Photo{}, ErrPhotoNotFound
		}

		return model.Photo{}, fmt.Errorf("get: failed to get photo: %w", err)
	}

	return p, nil
}

// FindByHash returns the most recent photo with the given content hash.
func (r *Repository) FindByHash(ctx context.Context, hash string) (model.Photo, error) {
	query := `SELECT ` + photoColumns + `
		FROM photos
		WHERE hash = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	p, err := scanPhoto(r.db.Master.QueryRowContext(ctx, query, hash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Photo{}, ErrPhotoNotFound
		}

		return model.Photo{}, fmt.Errorf("find: failed to find photo by hash: %w", err)
	}

	return p, nil
}

// UpdateStatus sets the status and error text of an existing photo.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status, errText string) error {
	query := `
		UPDATE photos
		SET status = $1, error = $2, updated_at = now()
		WHERE id = $3
	`

	res, err := r.db.Master.ExecContext(ctx, query, status, errText, id)
	if err != nil {
		return fmt.Errorf("update: failed to update photo status: %w", err)
	}

	if err := expectRow(res); err != nil {
		return fmt.Errorf("update: %w", err)
	}

	return nil
}

// SaveResult stores the analysis outcome of a photo: derived object paths,
// verdict and feature vector.
func (r *Repository) SaveResult(ctx context.Context, p model.Photo) error {
	query := `
		UPDATE photos
		SET normalized_path = $1, preview_path = $2, status = $3,
		    reasons = $4, issues = $5, features = $6, metadata = $7,
		    error = '', updated_at = now()
		WHERE id = $8
	`

	reasons, err := json.Marshal(nonNil(p.Reasons))
	if err != nil {
		return fmt.Errorf("save result: failed to marshal reasons: %w", err)
	}
	issues, err := json.Marshal(nonNil(p.Issues))
	if err != nil {
		return fmt.Errorf("save result: failed to marshal issues: %w", err)
	}
	features, err := json.Marshal(p.Features)
	if err != nil {
		return fmt.Errorf("save result: failed to marshal features: %w", err)
	}
	meta, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("save result: failed to marshal metadata: %w", err)
	}

	res, err := r.db.Master.ExecContext(
		ctx, query, p.NormalizedPath, p.PreviewPath, p.Status, reasons, issues, features, meta, p.ID,
	)
	if err != nil {
		return fmt.Errorf("save result: failed to update photo: %w", err)
	}

	if err := expectRow(res); err != nil {
		return fmt.Errorf("save result: %w", err)
	}

	return nil
}

// Delete deletes a photo record by ID.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `
		DELETE FROM photos WHERE id = $1
	`

	res, err := r.db.Master.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete: failed to delete photo: %w", err)
	}

	if err := expectRow(res); err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	return nil
}

// expectRow returns ErrPhotoNotFound when a statement touched no rows.
func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get number of rows affected: %w", err)
	}

	if n == 0 {
		return ErrPhotoNotFound
	}

	return nil
}

// rowScanner is satisfied by *sql.Row.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPhoto(row rowScanner) (model.Photo, error) {
	var (
		p                        model.Photo
		reasons, issues          []byte
		featuresRaw, metadataRaw []byte
	)

	err := row.Scan(
		&p.ID, &p.ChatID, &p.Filename, &p.OriginalPath, &p.NormalizedPath, &p.PreviewPath,
		&p.Hash, &p.Size, &p.Status, &reasons, &issues, &featuresRaw, &metadataRaw, &p.Error,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return model.Photo{}, err
	}

	if err := decodePhotoJSON(&p, reasons, issues, featuresRaw, metadataRaw); err != nil {
		return model.Photo{}, err
	}

	return p, nil
}

func decodePhotoJSON(p *model.Photo, reasons, issues, features, metadata []byte) error {
	p.Reasons, p.Issues = []string{}, []string{}

	if len(reasons) > 0 {
		if err := json.Unmarshal(reasons, &p.Reasons); err != nil {
			return fmt.Errorf("failed to unmarshal reasons: %w", err)
		}
	}
	if len(issues) > 0 {
		if err := json.Unmarshal(issues, &p.Issues); err != nil {
			return fmt.Errorf("failed to unmarshal issues: %w", err)
		}
	}
	// JSON null is stored for photos that were never analyzed.
	if len(features) > 0 && string(features) != "null" {
		if err := json.Unmarshal(features, &p.Features); err != nil {
			return fmt.Errorf("failed to unmarshal features: %w", err)
		}
	}
	if len(metadata) > 0 && string(metadata) != "null" {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
