package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/RCXD/Bros-back/domain/models"
	"github.com/RCXD/Bros-back/domain/repositories"
)

type ImageRepositoryImpl struct {
	db *gorm.DB
}

func NewImageRepository(db *gorm.DB) repositories.ImageRepository {
	return &ImageRepositoryImpl{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ErrImageNotFound
	}
	return err
}

func (r *ImageRepositoryImpl) Create(ctx context.Context, image *models.ImageRecord) error {
	return r.db.WithContext(ctx).Create(image).Error
}

func (r *ImageRepositoryImpl) GetByExternalID(ctx context.Context, externalID uuid.UUID) (*models.ImageRecord, error) {
	var image models.ImageRecord
	err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&image).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &image, nil
}

func (r *ImageRepositoryImpl) ExistsByExternalID(ctx context.Context, externalID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ImageRecord{}).Where("external_id = ?", externalID).Count(&count).Error
	return count > 0, err
}

func (r *ImageRepositoryImpl) FindExisting(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	existing := make(map[uuid.UUID]bool, len(ids))
	if len(ids) == 0 {
		return existing, nil
	}

	const batch = 500
	for start := 0; start < len(ids); start += batch {
		end := start + batch
		if end > len(ids) {
			end = len(ids)
		}

		var found []uuid.UUID
		err := r.db.WithContext(ctx).Model(&models.ImageRecord{}).
			Where("external_id IN ?", ids[start:end]).
			Pluck("external_id", &found).Error
		if err != nil {
			return nil, err
		}
		for _, id := range found {
			existing[id] = true
		}
	}
	return existing, nil
}

func (r *ImageRepositoryImpl) profileScope(ctx context.Context, ownerID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).
		Where("owner_id = ? AND category = ? AND entity_id IS NULL", ownerID, models.CategoryProfile).
		Order("created_at DESC, id DESC")
}

func (r *ImageRepositoryImpl) GetProfileByOwner(ctx context.Context, ownerID uuid.UUID) (*models.ImageRecord, error) {
	var image models.ImageRecord
	if err := r.profileScope(ctx, ownerID).First(&image).Error; err != nil {
		return nil, notFound(err)
	}
	return &image, nil
}

func (r *ImageRepositoryImpl) ListProfilesByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.ImageRecord, error) {
	var images []*models.ImageRecord
	err := r.profileScope(ctx, ownerID).Find(&images).Error
	return images, err
}

func (r *ImageRepositoryImpl) ListByOwner(ctx context.Context, ownerID uuid.UUID, offset, limit int) ([]*models.ImageRecord, error) {
	var images []*models.ImageRecord
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC, id DESC").
		Offset(offset).Limit(limit).
		Find(&images).Error
	return images, err
}

func (r *ImageRepositoryImpl) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ImageRecord{}).Where("owner_id = ?", ownerID).Count(&count).Error
	return count, err
}

func (r *ImageRepositoryImpl) ListByEntity(ctx context.Context, entityID uuid.UUID) ([]*models.ImageRecord, error) {
	var images []*models.ImageRecord
	err := r.db.WithContext(ctx).
		Where("entity_id = ?", entityID).
		Order("created_at ASC, id ASC").
		Find(&images).Error
	return images, err
}

func (r *ImageRepositoryImpl) UpdateFileInfo(ctx context.Context, externalID uuid.UUID, sizeBytes int64, width, height int) error {
	res := r.db.WithContext(ctx).Model(&models.ImageRecord{}).
		Where("external_id = ?", externalID).
		Updates(map[string]any{"size_bytes": sizeBytes, "width": width, "height": height})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrImageNotFound
	}
	return nil
}

// Delete is a no-op for a missing row.
func (r *ImageRepositoryImpl) Delete(ctx context.Context, externalID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("external_id = ?", externalID).Delete(&models.ImageRecord{}).Error
}

func (r *ImageRepositoryImpl) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ImageRecord{}).Count(&count).Error
	return count, err
}
