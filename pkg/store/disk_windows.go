//go:build windows

package store

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// DiskSpace reports usage of the volume holding dir.
func DiskSpace(dir string) (*DiskSpaceInfo, error) {
	pathPtr, err := windows.UTF16PtrFromString(dir)
	if err != nil {
		return nil, fmt.Errorf("store: failed to convert path: %w", err)
	}

	var available, total, free uint64
	if err := windows.GetDiskFreeSpaceEx(pathPtr, &available, &total, &free); err != nil {
		return nil, fmt.Errorf("store: failed to get disk stats: %w", err)
	}

	return &DiskSpaceInfo{
		Total:     total,
		Free:      free,
		Available: available,
		UsedPct:   usedPercent(total, free),
	}, nil
}
