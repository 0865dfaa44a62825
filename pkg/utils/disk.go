package utils

import (
	"fmt"
	"io/fs"
	"path/filepath"
)

type DiskInfo struct {
	Total       uint64
	Free        uint64
	Used        uint64
	UsedPercent float64
}

// FormatBytes renders a byte count as a human readable string, e.g. "1.50 MB".
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// GetDirectorySize sums regular file sizes under root, and counts them.
func GetDirectorySize(root string) (int64, int, error) {
	var total int64
	var count int
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return nil
			}
			total += info.Size()
			count++
		}
		return nil
	})
	return total, count, err
}
