package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/RCXD/Bros-back/domain/models"
)

// ImageRepository is the metadata half of stored images. Lookups of a
// missing record return models.ErrImageNotFound. Removing a row never
// touches the file.
type ImageRepository interface {
	Create(ctx context.Context, image *models.ImageRecord) error
	GetByExternalID(ctx context.Context, externalID uuid.UUID) (*models.ImageRecord, error)
	ExistsByExternalID(ctx context.Context, externalID uuid.UUID) (bool, error)
	// FindExisting returns which of ids have a row.
	FindExisting(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error)

	// GetProfileByOwner returns the newest profile image of ownerID.
	GetProfileByOwner(ctx context.Context, ownerID uuid.UUID) (*models.ImageRecord, error)
	ListProfilesByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.ImageRecord, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, offset, limit int) ([]*models.ImageRecord, error)
	CountByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error)
	ListByEntity(ctx context.Context, entityID uuid.UUID) ([]*models.ImageRecord, error)

	// UpdateFileInfo records the result of an in-place recompression.
	UpdateFileInfo(ctx context.Context, externalID uuid.UUID, sizeBytes int64, width, height int) error
	Delete(ctx context.Context, externalID uuid.UUID) error
	Count(ctx context.Context) (int64, error)
}
