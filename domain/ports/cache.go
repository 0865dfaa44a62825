package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/RCXD/Bros-back/domain/models"
)

// ImageCachePort is an optional read-through cache for image records.
// Implementations swallow their own errors; a failing cache behaves as a miss.
type ImageCachePort interface {
	GetImage(ctx context.Context, externalID uuid.UUID) (*models.ImageRecord, bool)
	SetImage(ctx context.Context, record *models.ImageRecord)
	InvalidateImage(ctx context.Context, externalID uuid.UUID)
}
