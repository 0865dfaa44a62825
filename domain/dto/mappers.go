package dto

import (
	"github.com/RCXD/Bros-back/domain/models"
)

// ImageToImageResponse needs the public URL because records only store the relative path.
func ImageToImageResponse(image *models.ImageRecord, url string) *ImageResponse {
	if image == nil {
		return nil
	}
	return &ImageResponse{
		ExternalID:   image.ExternalID,
		OwnerID:      image.OwnerID,
		EntityID:     image.EntityID,
		Category:     image.Category.String(),
		Path:         image.Path,
		URL:          url,
		OriginalName: image.OriginalName,
		Ext:          image.Ext,
		Size:         image.SizeBytes,
		Width:        image.Width,
		Height:       image.Height,
		CreatedAt:    image.CreatedAt,
	}
}

func ImagesToImageResponses(images []*models.ImageRecord, urlFor func(*models.ImageRecord) string) []ImageResponse {
	out := make([]ImageResponse, 0, len(images))
	for _, img := range images {
		out = append(out, *ImageToImageResponse(img, urlFor(img)))
	}
	return out
}
