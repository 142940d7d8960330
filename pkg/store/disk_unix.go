//go:build !windows

package store

import (
	"fmt"
	"syscall"
)

// DiskSpace reports usage of the filesystem holding dir.
func DiskSpace(dir string) (*DiskSpaceInfo, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(dir, &stat); err != nil {
		return nil, fmt.Errorf("store: failed to get disk stats: %w", err)
	}

	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bfree * uint64(stat.Bsize)

	return &DiskSpaceInfo{
		Total:     total,
		Free:      free,
		Available: stat.Bavail * uint64(stat.Bsize),
		UsedPct:   usedPercent(total, free),
	}, nil
}
