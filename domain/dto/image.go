package dto

import (
	"time"

	"github.com/google/uuid"
)

// UploadImageRequest is the multipart form that accompanies the "file" part.
type UploadImageRequest struct {
	Category string `form:"category" validate:"required,oneof=profile post reply emoticon default"`
	EntityID string `form:"entity_id" validate:"omitempty,uuid"`
	Mode     string `form:"mode" validate:"omitempty,oneof=sync async"`
	Budget   string `form:"budget" validate:"omitempty,oneof=best_effort strict"`
}

type UploadProfileImageRequest struct {
	Backup string `form:"backup" validate:"omitempty,oneof=true false"`
	Budget string `form:"budget" validate:"omitempty,oneof=best_effort strict"`
}

type ListImagesRequest struct {
	Limit  int `query:"limit" validate:"omitempty,min=1,max=100"`
	Offset int `query:"offset" validate:"omitempty,min=0"`
}

type ImageResponse struct {
	ExternalID   uuid.UUID  `json:"externalId"`
	OwnerID      uuid.UUID  `json:"ownerId"`
	EntityID     *uuid.UUID `json:"entityId,omitempty"`
	Category     string     `json:"category"`
	Path         string     `json:"path"`
	URL          string     `json:"url"`
	OriginalName string     `json:"originalName"`
	Ext          string     `json:"ext"`
	Size         int64      `json:"size"`
	Width        int        `json:"width"`
	Height       int        `json:"height"`
	CreatedAt    time.Time  `json:"createdAt"`
}

type UploadImageResponse struct {
	ImageResponse
	Mode      string `json:"mode"` // sync or async
	Quality   int    `json:"quality,omitempty"`
	BudgetMet bool   `json:"budgetMet"`
}

type ImageListResponse struct {
	Images []ImageResponse `json:"images"`
	Meta   PaginationMeta  `json:"meta"`
}

type ProfileImageResponse struct {
	OwnerID   uuid.UUID      `json:"ownerId"`
	URL       string         `json:"url"`
	IsDefault bool           `json:"isDefault"`
	Image     *ImageResponse `json:"image,omitempty"`
}

type DeleteImagesResponse struct {
	Deleted int `json:"deleted"`
}
