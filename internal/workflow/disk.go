package workflow

import (
	"path/filepath"
	"strings"

	"github.com/sigreer/phoenixforge/internal/core"
	"github.com/sigreer/phoenixforge/internal/ferr"
)

// resolveWritableDiskByID looks up diskID in the graph and rejects it
// as a destructive target unless it is removable and not the system
// disk, matching the hard preflight refusal independent of the safety
// gate.
func resolveWritableDiskByID(graph core.DeviceGraph, diskID string) (core.Disk, error) {
	disk, ok := graph.DiskByID(diskID)
	if !ok {
		return core.Disk{}, ferr.Newf(ferr.Precondition, "disk %s not found in device graph", diskID)
	}
	return disk, checkWritableDisk(disk)
}

// resolveWritableDiskByMount finds the disk owning mountPoint and
// applies the same removable/non-system refusal.
func resolveWritableDiskByMount(graph core.DeviceGraph, mountPoint string) (core.Disk, error) {
	target := normalizeMountPoint(mountPoint)
	for _, disk := range graph.Disks {
		for _, part := range disk.Partitions {
			for _, mp := range part.MountPoints {
				if normalizeMountPoint(mp) == target {
					return disk, checkWritableDisk(disk)
				}
			}
		}
	}
	return core.Disk{}, ferr.Newf(ferr.Precondition, "no disk owns mount point %s", mountPoint)
}

func checkWritableDisk(disk core.Disk) error {
	if disk.IsSystemDisk {
		return ferr.Newf(ferr.Precondition, "disk %s is the system disk and cannot be a destructive target", disk.ID)
	}
	if !disk.Removable {
		return ferr.Newf(ferr.Precondition, "disk %s is not removable", disk.ID)
	}
	return nil
}

func normalizeMountPoint(mp string) string {
	mp = strings.TrimSpace(mp)
	if len(mp) == 2 && mp[1] == ':' {
		return strings.ToUpper(mp) + `\`
	}
	if len(mp) == 3 && mp[1] == ':' && (mp[2] == '\\' || mp[2] == '/') {
		return strings.ToUpper(mp[:2]) + `\`
	}
	return filepath.Clean(mp)
}
