//go:build !windows

package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// GetDiskInfo reports usage of the filesystem holding path. A missing path
// falls back to its parent directory.
func GetDiskInfo(path string) (*DiskInfo, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path = filepath.Dir(path)
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return nil, fmt.Errorf("statfs failed: %w", err)
	}

	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	used := total - stat.Bfree*uint64(stat.Bsize)

	info := &DiskInfo{Total: total, Free: free, Used: used}
	if total > 0 {
		info.UsedPercent = float64(used) / float64(total) * 100
	}
	return info, nil
}
