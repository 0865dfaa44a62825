package services

import (
	"context"
)

// StorageService runs housekeeping over stored images. Uploads never depend on it.
type StorageService interface {
	// RunCleanup runs every cleanup task once.
	RunCleanup(ctx context.Context) *CleanupReport

	GetStorageStats(ctx context.Context) (*StorageStats, error)

	// RegisterCleanupJob adds the cleanup run to the scheduler.
	RegisterCleanupJob() error
}

type CleanupReport struct {
	TempFilesRemoved int      `json:"tempFilesRemoved"`
	BackupsRemoved   int      `json:"backupsRemoved"`
	OrphansFound     int      `json:"orphansFound"`
	OrphansRemoved   int      `json:"orphansRemoved"`
	BytesFreed       int64    `json:"bytesFreed"`
	OrphanPaths      []string `json:"orphanPaths,omitempty"`
	LowDiskSpace     bool     `json:"lowDiskSpace"`
	DurationMillis   int64    `json:"durationMs"`
}

type StorageStats struct {
	Provider        string           `json:"provider"`
	DiskTotal       uint64           `json:"diskTotal,omitempty"`
	DiskFree        uint64           `json:"diskFree,omitempty"`
	DiskUsed        uint64           `json:"diskUsed,omitempty"`
	DiskUsedPercent float64          `json:"diskUsedPercent,omitempty"`
	ImagesSize      int64            `json:"imagesSize"`
	ImageFiles      int              `json:"imageFiles"`
	BackupSize      int64            `json:"backupSize"`
	BackupFiles     int              `json:"backupFiles"`
	ImageRecords    int64            `json:"imageRecords"`
	ByCategory      map[string]int64 `json:"byCategory"` // bytes per category folder
}

// StorageStatsFormatted is StorageStats with human readable sizes.
type StorageStatsFormatted struct {
	DiskTotal       string `json:"diskTotal"`
	DiskFree        string `json:"diskFree"`
	DiskUsed        string `json:"diskUsed"`
	DiskUsedPercent string `json:"diskUsedPercent"`
	ImagesSize      string `json:"imagesSize"`
	BackupSize      string `json:"backupSize"`
}
