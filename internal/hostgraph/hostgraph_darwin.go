//go:build darwin

package hostgraph

import (
	"os/exec"
	"strings"

	"howett.net/plist"

	"github.com/sigreer/phoenixforge/internal/core"
	"github.com/sigreer/phoenixforge/internal/ferr"
)

// systemPartitions mirrors "diskutil list -plist" output.
type systemPartitions struct {
	AllDisksAndPartitions []diskPart `plist:"AllDisksAndPartitions"`
}

type diskPart struct {
	Content          string      `plist:"Content"`
	DeviceIdentifier string      `plist:"DeviceIdentifier"`
	Size             uint64      `plist:"Size"`
	Partitions       []partition `plist:"Partitions"`
	APFSVolumes      []apfsVol   `plist:"APFSVolumes"`
}

type partition struct {
	DeviceIdentifier string `plist:"DeviceIdentifier"`
	VolumeName       string `plist:"VolumeName"`
	Size             uint64 `plist:"Size"`
	Content          string `plist:"Content"`
}

type apfsVol struct {
	DeviceIdentifier string `plist:"DeviceIdentifier"`
	VolumeName       string `plist:"VolumeName"`
	MountPoint       string `plist:"MountPoint"`
	Size             uint64 `plist:"Size"`
}

// diskInfo mirrors the subset of "diskutil info -plist <disk>" the
// host provider needs.
type diskInfo struct {
	MediaName        string `plist:"MediaName"`
	RemovableMedia   bool   `plist:"RemovableMedia"`
	Internal         bool   `plist:"Internal"`
	MountPoint       string `plist:"MountPoint"`
	FilesystemType   string `plist:"FilesystemType"`
	VolumeName       string `plist:"VolumeName"`
	TotalSize        uint64 `plist:"TotalSize"`
	ParentWholeDisk  string `plist:"ParentWholeDisk"`
	WholeDisk        bool   `plist:"WholeDisk"`
}

func buildDeviceGraph() (core.DeviceGraph, error) {
	host := core.HostInfo{
		OS:        "macos",
		OSVersion: readSysctl("kern.osproductversion"),
		Machine:   readSysctl("hw.model"),
	}
	disks, err := enumerateDisks()
	if err != nil {
		return core.DeviceGraph{}, err
	}
	return core.NewDeviceGraph(host, disks), nil
}

func enumerateDisks() ([]core.Disk, error) {
	var sp systemPartitions
	if err := runDiskutilPlist([]string{"list", "-plist"}, &sp); err != nil {
		return nil, err
	}

	var disks []core.Disk
	for _, d := range sp.AllDisksAndPartitions {
		whole, err := wholeDiskInfo(d.DeviceIdentifier)
		if err != nil {
			return nil, err
		}

		var partitions []core.Partition
		for _, p := range d.Partitions {
			partitions = append(partitions, partitionFromInfo(p.DeviceIdentifier, p.VolumeName, p.Size))
		}
		for _, v := range d.APFSVolumes {
			var mountPoints []string
			if v.MountPoint != "" {
				mountPoints = []string{v.MountPoint}
			}
			partitions = append(partitions, core.Partition{
				ID:          v.DeviceIdentifier,
				Label:       v.VolumeName,
				SizeBytes:   v.Size,
				MountPoints: mountPoints,
			})
		}

		isSystemDisk := false
		for _, p := range partitions {
			for _, mp := range p.MountPoints {
				if mp == "/" {
					isSystemDisk = true
				}
			}
		}

		friendlyName := whole.MediaName
		if friendlyName == "" {
			friendlyName = d.DeviceIdentifier
		}
		sizeBytes := d.Size
		if sizeBytes == 0 {
			sizeBytes = whole.TotalSize
		}

		disks = append(disks, core.Disk{
			ID:           d.DeviceIdentifier,
			FriendlyName: friendlyName,
			SizeBytes:    sizeBytes,
			Removable:    whole.RemovableMedia || strings.HasPrefix(whole.MountPoint, "/Volumes/"),
			IsSystemDisk: isSystemDisk,
			Partitions:   partitions,
		})
	}
	return disks, nil
}

func partitionFromInfo(id, label string, size uint64) core.Partition {
	info, err := wholeDiskInfo(id)
	var mountPoints []string
	var fsType string
	if err == nil {
		if info.MountPoint != "" {
			mountPoints = []string{info.MountPoint}
		}
		fsType = info.FilesystemType
	}
	return core.Partition{
		ID:          id,
		Label:       label,
		FS:          fsType,
		SizeBytes:   size,
		MountPoints: mountPoints,
	}
}

func wholeDiskInfo(deviceIdentifier string) (diskInfo, error) {
	var info diskInfo
	if err := runDiskutilPlist([]string{"info", "-plist", deviceIdentifier}, &info); err != nil {
		return diskInfo{}, err
	}
	return info, nil
}

func runDiskutilPlist(args []string, out interface{}) error {
	cmd := exec.Command("diskutil", args...)
	data, err := cmd.Output()
	if err != nil {
		return ferr.Wrap(ferr.IO, "run diskutil "+strings.Join(args, " "), err)
	}
	if _, err := plist.Unmarshal(data, out); err != nil {
		return ferr.Wrap(ferr.IO, "parse diskutil plist output", err)
	}
	return nil
}

func readSysctl(name string) string {
	out, err := exec.Command("sysctl", "-n", name).Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}
