package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/RCXD/Bros-back/domain/models"
	"github.com/RCXD/Bros-back/domain/ports"
	"github.com/RCXD/Bros-back/pkg/logger"
)

const imageKeyPrefix = "image:record:"

type ImageCache struct {
	client *Client
	ttl    time.Duration
}

func NewImageCache(client *Client, ttl time.Duration) ports.ImageCachePort {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ImageCache{client: client, ttl: ttl}
}

func imageKey(externalID uuid.UUID) string {
	return imageKeyPrefix + externalID.String()
}

func (c *ImageCache) GetImage(ctx context.Context, externalID uuid.UUID) (*models.ImageRecord, bool) {
	var rec models.ImageRecord
	if err := c.client.GetJSON(ctx, imageKey(externalID), &rec); err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			logger.WarnContext(ctx, "Image cache read failed", "external_id", externalID, "error", err)
		}
		return nil, false
	}
	return &rec, true
}

func (c *ImageCache) SetImage(ctx context.Context, record *models.ImageRecord) {
	if err := c.client.SetJSON(ctx, imageKey(record.ExternalID), record, c.ttl); err != nil {
		logger.WarnContext(ctx, "Image cache write failed", "external_id", record.ExternalID, "error", err)
	}
}

func (c *ImageCache) InvalidateImage(ctx context.Context, externalID uuid.UUID) {
	if err := c.client.Del(ctx, imageKey(externalID)); err != nil {
		logger.WarnContext(ctx, "Image cache invalidate failed", "external_id", externalID, "error", err)
	}
}
