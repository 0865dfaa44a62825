package models

import (
	"path"
	"time"

	"github.com/google/uuid"
)

// ImageRecord is the durable half of a stored image. Path always ends in
// "{ExternalID}.{Ext}".
type ImageRecord struct {
	ID           uint          `gorm:"primaryKey;autoIncrement"`
	ExternalID   uuid.UUID     `gorm:"type:uuid;uniqueIndex;not null"`
	OwnerID      uuid.UUID     `gorm:"type:uuid;index;not null"`
	EntityID     *uuid.UUID    `gorm:"type:uuid;index"`
	Category     ImageCategory `gorm:"type:varchar(20);index;not null"`
	Path         string        `gorm:"type:varchar(255);uniqueIndex;not null"`
	OriginalName string        `gorm:"type:varchar(255)"`
	Ext          string        `gorm:"type:varchar(10);not null"`
	SizeBytes    int64
	Width        int
	Height       int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (ImageRecord) TableName() string {
	return "images"
}

// IsProfile reports whether the record is a profile asset (no associated entity).
func (r *ImageRecord) IsProfile() bool {
	return r.EntityID == nil && r.Category == CategoryProfile
}

// FileName is the basename every stored path must end with.
func (r *ImageRecord) FileName() string {
	return r.ExternalID.String() + "." + r.Ext
}

// PathConsistent checks the addressing contract between the row and its file.
func (r *ImageRecord) PathConsistent() bool {
	return path.Base(r.Path) == r.FileName()
}
