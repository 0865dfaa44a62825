package services

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/RCXD/Bros-back/domain/models"
)

// UploadMode chooses where compression happens.
type UploadMode string

const (
	// UploadModeSync compresses before anything is written.
	UploadModeSync UploadMode = "sync"
	// UploadModeAsync writes the raw bytes and compresses them in the background.
	UploadModeAsync UploadMode = "async"
)

// UploadImageInput is one upload. Zero values of Mode, Budget and Backup
// fall back to configuration.
type UploadImageInput struct {
	OwnerID     uuid.UUID
	Category    models.ImageCategory
	EntityID    *uuid.UUID
	Filename    string
	ContentType string
	Body        io.Reader

	Mode   UploadMode
	Budget models.BudgetPolicy
	// Backup applies to profile uploads only.
	Backup *bool
}

type UploadResult struct {
	Record    *models.ImageRecord
	URL       string
	Mode      UploadMode
	Quality   int
	BudgetMet bool
}

// ImageContent is an open stored image. Callers close Body.
type ImageContent struct {
	Record      *models.ImageRecord
	Body        io.ReadCloser
	ContentType string
}

type ProfileImage struct {
	Record    *models.ImageRecord // nil when IsDefault
	URL       string
	IsDefault bool
}

type ImageService interface {
	// UploadImage runs the full pipeline. Profile uploads supersede the
	// owner's previous profile image.
	UploadImage(ctx context.Context, in *UploadImageInput) (*UploadResult, error)

	GetImage(ctx context.Context, externalID uuid.UUID) (*models.ImageRecord, error)
	OpenImage(ctx context.Context, externalID uuid.UUID) (*ImageContent, error)
	ListOwnerImages(ctx context.Context, ownerID uuid.UUID, offset, limit int) ([]*models.ImageRecord, int64, error)
	ListEntityImages(ctx context.Context, entityID uuid.UUID) ([]*models.ImageRecord, error)
	GetProfileImage(ctx context.Context, ownerID uuid.UUID) (*ProfileImage, error)

	// DeleteImage is a no-op for records that no longer exist.
	DeleteImage(ctx context.Context, externalID, requesterID uuid.UUID) error
	// DeleteEntityImages removes every image attached to entityID and returns how many went.
	DeleteEntityImages(ctx context.Context, entityID, requesterID uuid.UUID) (int, error)

	ImageURL(image *models.ImageRecord) string
}
