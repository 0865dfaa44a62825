package serviceimpl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/RCXD/Bros-back/domain/ports"
	"github.com/RCXD/Bros-back/domain/repositories"
	"github.com/RCXD/Bros-back/domain/services"
	"github.com/RCXD/Bros-back/pkg/logger"
	"github.com/RCXD/Bros-back/pkg/scheduler"
	"github.com/RCXD/Bros-back/pkg/utils"
)

const cleanupJobID = "storage_cleanup"

// StorageCleanupConfig controls the maintenance run.
type StorageCleanupConfig struct {
	BasePath        string        // local storage root, used for the disk check; empty skips it
	CleanupCron     string        // default "0 3 * * *" (3 AM daily)
	TempFileMaxAge  time.Duration // age after which leftover .tmp files are removed
	BackupRetention time.Duration // 0 keeps profile backups forever
	OrphanGrace     time.Duration // files younger than this are never orphans
	RemoveOrphans   bool          // false only reports them
	MinFreeSpaceGB  float64
}

// StorageCleanupService handles storage cleanup operations
type StorageCleanupService struct {
	config    StorageCleanupConfig
	imageRepo repositories.ImageRepository
	storage   ports.StoragePort
	scheduler scheduler.EventScheduler
	now       func() time.Time
}

var _ services.StorageService = (*StorageCleanupService)(nil)

func NewStorageCleanupService(
	config StorageCleanupConfig,
	imageRepo repositories.ImageRepository,
	storage ports.StoragePort,
	eventScheduler scheduler.EventScheduler,
) *StorageCleanupService {
	service := &StorageCleanupService{
		config:    config,
		imageRepo: imageRepo,
		storage:   storage,
		scheduler: eventScheduler,
		now:       time.Now,
	}

	if service.config.CleanupCron == "" {
		service.config.CleanupCron = "0 3 * * *"
	}
	if service.config.TempFileMaxAge == 0 {
		service.config.TempFileMaxAge = 24 * time.Hour
	}
	if service.config.OrphanGrace == 0 {
		service.config.OrphanGrace = 24 * time.Hour
	}
	if service.config.MinFreeSpaceGB == 0 {
		service.config.MinFreeSpaceGB = 5
	}

	return service
}

func (s *StorageCleanupService) RegisterCleanupJob() error {
	if s.scheduler == nil {
		return fmt.Errorf("no scheduler configured")
	}
	return s.scheduler.AddJob(cleanupJobID, s.config.CleanupCron, func() {
		s.RunCleanup(context.Background())
	})
}

func (s *StorageCleanupService) RunCleanup(ctx context.Context) *services.CleanupReport {
	started := s.now()
	report := &services.CleanupReport{}
	logger.InfoContext(ctx, "Starting storage cleanup")

	files, err := s.storage.ListFiles("")
	if err != nil {
		logger.WarnContext(ctx, "Error listing stored files", "error", err)
		return report
	}

	// 1. leftovers of interrupted replaces
	s.cleanupTempFiles(ctx, files, report)

	// 2. profile backups past retention
	s.cleanupBackups(ctx, files, report)

	// 3. image files without a record
	s.cleanupOrphans(ctx, files, report)

	// 4. disk space
	report.LowDiskSpace = s.checkDiskSpace(ctx)

	report.DurationMillis = s.now().Sub(started).Milliseconds()
	logger.InfoContext(ctx, "Storage cleanup completed",
		"temp_files_removed", report.TempFilesRemoved,
		"backups_removed", report.BackupsRemoved,
		"orphans_found", report.OrphansFound,
		"orphans_removed", report.OrphansRemoved,
		"space_freed_mb", report.BytesFreed/1024/1024,
	)
	return report
}

func (s *StorageCleanupService) cleanupTempFiles(ctx context.Context, files []ports.FileInfo, report *services.CleanupReport) {
	cutoff := s.now().Add(-s.config.TempFileMaxAge)
	for _, f := range files {
		if !strings.HasSuffix(f.Path, ports.TempFileSuffix) || !f.ModTime.Before(cutoff) {
			continue
		}
		if err := s.storage.DeleteFile(f.Path); err != nil {
			logger.WarnContext(ctx, "Failed to delete temp file", "path", f.Path, "error", err)
			continue
		}
		report.TempFilesRemoved++
		report.BytesFreed += f.Size
		logger.DebugContext(ctx, "Deleted temp file", "path", f.Path)
	}
}

func (s *StorageCleanupService) cleanupBackups(ctx context.Context, files []ports.FileInfo, report *services.CleanupReport) {
	if s.config.BackupRetention <= 0 {
		return
	}
	cutoff := s.now().Add(-s.config.BackupRetention)
	for _, f := range files {
		if !utils.IsBackupPath(f.Path) || !f.ModTime.Before(cutoff) {
			continue
		}
		if err := s.storage.DeleteFile(f.Path); err != nil {
			logger.WarnContext(ctx, "Failed to delete expired backup", "path", f.Path, "error", err)
			continue
		}
		report.BackupsRemoved++
		report.BytesFreed += f.Size
		logger.InfoContext(ctx, "Deleted expired profile backup", "path", f.Path)
	}
}

// cleanupOrphans finds addressed image files whose external id has no row.
// Files younger than the grace period may belong to an upload whose commit
// is still in flight.
func (s *StorageCleanupService) cleanupOrphans(ctx context.Context, files []ports.FileInfo, report *services.CleanupReport) {
	cutoff := s.now().Add(-s.config.OrphanGrace)

	candidates := make(map[uuid.UUID]ports.FileInfo)
	ids := make([]uuid.UUID, 0)
	for _, f := range files {
		if !isImagePath(f.Path) || !f.ModTime.Before(cutoff) {
			continue
		}
		id, err := utils.ExternalIDFromPath(f.Path)
		if err != nil {
			continue
		}
		candidates[id] = f
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return
	}

	existing, err := s.imageRepo.FindExisting(ctx, ids)
	if err != nil {
		logger.WarnContext(ctx, "Error checking image records", "error", err)
		return
	}

	for _, id := range ids {
		if existing[id] {
			continue
		}
		f := candidates[id]
		report.OrphansFound++
		report.OrphanPaths = append(report.OrphanPaths, f.Path)

		if !s.config.RemoveOrphans {
			logger.WarnContext(ctx, "Orphaned image file", "path", f.Path, "size_kb", f.Size/1024)
			continue
		}
		if err := s.storage.DeleteFile(f.Path); err != nil {
			logger.WarnContext(ctx, "Failed to delete orphaned file", "path", f.Path, "error", err)
			continue
		}
		report.OrphansRemoved++
		report.BytesFreed += f.Size
		logger.InfoContext(ctx, "Deleted orphaned image file", "path", f.Path)
	}
}

// isImagePath matches "{category}_images/{date}/{file}", which excludes backups and temp files.
func isImagePath(p string) bool {
	if utils.IsBackupPath(p) || strings.HasSuffix(p, ports.TempFileSuffix) {
		return false
	}
	parts := strings.Split(p, "/")
	return len(parts) == 3 && strings.HasSuffix(parts[0], "_images")
}

// checkDiskSpace logs a warning and returns true when free space is low.
func (s *StorageCleanupService) checkDiskSpace(ctx context.Context) bool {
	if s.config.BasePath == "" {
		return false
	}
	info, err := utils.GetDiskInfo(s.config.BasePath)
	if err != nil {
		logger.WarnContext(ctx, "Failed to get disk info", "error", err)
		return false
	}

	freeGB := float64(info.Free) / 1024 / 1024 / 1024
	if freeGB < s.config.MinFreeSpaceGB {
		logger.WarnContext(ctx, "Low disk space warning",
			"free_gb", freeGB,
			"min_required_gb", s.config.MinFreeSpaceGB,
			"used_percent", info.UsedPercent,
		)
		return true
	}
	logger.InfoContext(ctx, "Disk space check", "free_gb", freeGB, "used_percent", info.UsedPercent)
	return false
}

func (s *StorageCleanupService) GetStorageStats(ctx context.Context) (*services.StorageStats, error) {
	files, err := s.storage.ListFiles("")
	if err != nil {
		return nil, err
	}

	stats := &services.StorageStats{
		Provider:   s.storage.GetProviderName(),
		ByCategory: make(map[string]int64),
	}
	for _, f := range files {
		switch {
		case utils.IsBackupPath(f.Path):
			stats.BackupSize += f.Size
			stats.BackupFiles++
		case isImagePath(f.Path):
			stats.ImagesSize += f.Size
			stats.ImageFiles++
			category := strings.TrimSuffix(strings.SplitN(f.Path, "/", 2)[0], "_images")
			stats.ByCategory[category] += f.Size
		}
	}

	if stats.ImageRecords, err = s.imageRepo.Count(ctx); err != nil {
		return nil, err
	}

	if s.config.BasePath != "" {
		if info, err := utils.GetDiskInfo(s.config.BasePath); err == nil {
			stats.DiskTotal = info.Total
			stats.DiskFree = info.Free
			stats.DiskUsed = info.Used
			stats.DiskUsedPercent = info.UsedPercent
		} else {
			logger.WarnContext(ctx, "Failed to get disk info", "path", s.config.BasePath, "error", err)
		}
	}

	return stats, nil
}

// FormatStorageStats formats storage stats for display
func FormatStorageStats(s *services.StorageStats) *services.StorageStatsFormatted {
	return &services.StorageStatsFormatted{
		DiskTotal:       utils.FormatBytes(s.DiskTotal),
		DiskFree:        utils.FormatBytes(s.DiskFree),
		DiskUsed:        utils.FormatBytes(s.DiskUsed),
		DiskUsedPercent: strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", s.DiskUsedPercent), "0"), ".") + "%",
		ImagesSize:      utils.FormatBytes(uint64(s.ImagesSize)),
		BackupSize:      utils.FormatBytes(uint64(s.BackupSize)),
	}
}
