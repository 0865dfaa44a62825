package serviceimpl

import (
	"context"
	"errors"
	"time"

	"github.com/RCXD/Bros-back/domain/models"
	"github.com/RCXD/Bros-back/domain/ports"
	"github.com/RCXD/Bros-back/pkg/logger"
	"github.com/RCXD/Bros-back/pkg/utils"
)

// ProfileBackup remembers where a superseded profile file went so a failed
// replacement can put it back.
type ProfileBackup struct {
	OriginalPath string
	BackupPath   string
}

// ImageDeletionManager removes stored files and archives superseded
// profile images. It never touches metadata rows.
type ImageDeletionManager struct {
	storage            ports.StoragePort
	defaultProfilePath string
	now                func() time.Time
}

func NewImageDeletionManager(storage ports.StoragePort, defaultProfilePath string) *ImageDeletionManager {
	return &ImageDeletionManager{
		storage:            storage,
		defaultProfilePath: defaultProfilePath,
		now:                time.Now,
	}
}

// Delete removes the record's file. A file that is already gone is logged
// and reported as success so the caller can drop the row.
func (m *ImageDeletionManager) Delete(ctx context.Context, image *models.ImageRecord) error {
	if m.isDefault(image.Path) {
		return nil
	}

	exists, err := m.storage.FileExists(image.Path)
	if err == nil && !exists {
		logger.WarnContext(ctx, "Image file already missing", "external_id", image.ExternalID, "path", image.Path)
		return nil
	}

	if err := m.storage.DeleteFile(image.Path); err != nil {
		logger.ErrorContext(ctx, "Failed to delete image file", "external_id", image.ExternalID, "path", image.Path, "error", err)
		return err
	}

	logger.InfoContext(ctx, "Image file deleted", "external_id", image.ExternalID, "path", image.Path)
	return nil
}

// BackupBeforeOverwrite moves the current profile file into the backup
// folder. It returns nil without error when there is nothing to move.
func (m *ImageDeletionManager) BackupBeforeOverwrite(ctx context.Context, image *models.ImageRecord) (*ProfileBackup, error) {
	if image == nil || m.isDefault(image.Path) {
		return nil, nil
	}

	backupPath := utils.GenerateBackupPath(image.Ext, m.now())
	if err := m.storage.MoveFile(image.Path, backupPath); err != nil {
		if errors.Is(err, ports.ErrFileNotFound) {
			logger.WarnContext(ctx, "Profile image missing, nothing to back up", "external_id", image.ExternalID, "path", image.Path)
			return nil, nil
		}
		logger.ErrorContext(ctx, "Failed to back up profile image", "external_id", image.ExternalID, "path", image.Path, "error", err)
		return nil, err
	}

	logger.InfoContext(ctx, "Profile image backed up", "external_id", image.ExternalID, "from", image.Path, "to", backupPath)
	return &ProfileBackup{OriginalPath: image.Path, BackupPath: backupPath}, nil
}

// Restore moves a backup back to where it came from.
func (m *ImageDeletionManager) Restore(ctx context.Context, backup *ProfileBackup) error {
	if backup == nil {
		return nil
	}
	if err := m.storage.MoveFile(backup.BackupPath, backup.OriginalPath); err != nil {
		logger.ErrorContext(ctx, "Failed to restore profile image backup", "backup", backup.BackupPath, "path", backup.OriginalPath, "error", err)
		return err
	}
	logger.InfoContext(ctx, "Profile image restored from backup", "path", backup.OriginalPath)
	return nil
}

func (m *ImageDeletionManager) isDefault(p string) bool {
	return m.defaultProfilePath != "" && p == m.defaultProfilePath
}
