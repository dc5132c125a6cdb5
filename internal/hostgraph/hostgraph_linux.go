//go:build linux

package hostgraph

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sigreer/phoenixforge/internal/core"
	"github.com/sigreer/phoenixforge/internal/ferr"
)

func buildDeviceGraph() (core.DeviceGraph, error) {
	host := core.HostInfo{
		OS:        "linux",
		OSVersion: readOSRelease(),
		Machine:   readMachine(),
	}
	disks, err := enumerateDisks()
	if err != nil {
		return core.DeviceGraph{}, err
	}
	return core.NewDeviceGraph(host, disks), nil
}

func enumerateDisks() ([]core.Disk, error) {
	mounts := readMounts()
	labels := readLabels()

	entries, err := os.ReadDir("/sys/block")
	if err != nil {
		return nil, ferr.Wrap(ferr.IO, "read /sys/block", err)
	}

	var disks []core.Disk
	for _, entry := range entries {
		diskName := entry.Name()
		diskPath := filepath.Join("/sys/block", diskName)
		if isVirtualDisk(diskName, diskPath) {
			continue
		}

		sizeBytes := readU64(filepath.Join(diskPath, "size")) * 512
		removable := readU64(filepath.Join(diskPath, "removable")) == 1
		model := readString(filepath.Join(diskPath, "device/model"))
		if model == "" {
			model = diskName
		}

		partitions, err := enumeratePartitions(diskPath, mounts, labels)
		if err != nil {
			return nil, err
		}
		isSystemDisk := false
		for _, p := range partitions {
			for _, mp := range p.MountPoints {
				if mp == "/" {
					isSystemDisk = true
				}
			}
		}

		disks = append(disks, core.Disk{
			ID:           diskName,
			FriendlyName: model,
			SizeBytes:    sizeBytes,
			Removable:    removable,
			IsSystemDisk: isSystemDisk,
			Partitions:   partitions,
		})
	}
	return disks, nil
}

func enumeratePartitions(diskPath string, mounts map[string][]mountInfo, labels map[string]string) ([]core.Partition, error) {
	entries, err := os.ReadDir(diskPath)
	if err != nil {
		return nil, ferr.Wrap(ferr.IO, "read disk entries", err)
	}

	var partitions []core.Partition
	for _, entry := range entries {
		partPath := filepath.Join(diskPath, entry.Name())
		if _, err := os.Stat(filepath.Join(partPath, "partition")); err != nil {
			continue
		}
		partName := entry.Name()
		sizeBytes := readU64(filepath.Join(partPath, "size")) * 512
		mountInfos := mounts[partName]

		var mountPoints []string
		var fsType string
		for i, m := range mountInfos {
			mountPoints = append(mountPoints, m.mountPoint)
			if i == 0 {
				fsType = m.fsType
			}
		}
		label := labels[partName]

		partitions = append(partitions, core.Partition{
			ID:          partName,
			Label:       label,
			FS:          fsType,
			SizeBytes:   sizeBytes,
			MountPoints: mountPoints,
		})
	}
	return partitions, nil
}

type mountInfo struct {
	mountPoint string
	fsType     string
}

func readMounts() map[string][]mountInfo {
	mounts := make(map[string][]mountInfo)
	data, err := os.ReadFile("/proc/self/mounts")
	if err != nil {
		return mounts
	}
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		device := fields[0]
		mountPoint := unescapeMount(fields[1])
		fsType := fields[2]
		if !strings.HasPrefix(device, "/dev/") {
			continue
		}
		name := filepath.Base(device)
		if name == "" {
			continue
		}
		mounts[name] = append(mounts[name], mountInfo{mountPoint: mountPoint, fsType: fsType})
	}
	return mounts
}

func readLabels() map[string]string {
	labels := make(map[string]string)
	entries, err := os.ReadDir("/dev/disk/by-label")
	if err != nil {
		return labels
	}
	for _, entry := range entries {
		linkPath := filepath.Join("/dev/disk/by-label", entry.Name())
		target, err := os.Readlink(linkPath)
		if err != nil {
			continue
		}
		labels[filepath.Base(target)] = entry.Name()
	}
	return labels
}

func readOSRelease() string {
	data, err := os.ReadFile("/etc/os-release")
	if err != nil {
		return "unknown"
	}
	var name, version string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "NAME=") && name == "" {
			name = trimOSValue(line)
		} else if strings.HasPrefix(line, "VERSION=") && version == "" {
			version = trimOSValue(line)
		}
	}
	switch {
	case name != "" && version != "":
		return name + " " + version
	case name != "":
		return name
	default:
		return "unknown"
	}
}

func trimOSValue(line string) string {
	parts := strings.SplitN(line, "=", 2)
	if len(parts) != 2 {
		return ""
	}
	return strings.Trim(strings.TrimSpace(parts[1]), `"`)
}

func readMachine() string {
	vendor := readString("/sys/devices/virtual/dmi/id/sys_vendor")
	product := readString("/sys/devices/virtual/dmi/id/product_name")
	switch {
	case vendor != "" && product != "":
		return vendor + " " + product
	case vendor != "":
		return vendor
	case product != "":
		return product
	}
	hostname := readString("/proc/sys/kernel/hostname")
	if hostname == "" {
		return "unknown"
	}
	return hostname
}

func readString(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func readU64(path string) uint64 {
	s := readString(path)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func unescapeMount(value string) string {
	var out strings.Builder
	runes := []rune(value)
	for i := 0; i < len(runes); i++ {
		if runes[i] == '\\' && i+3 < len(runes) {
			octal := string(runes[i+1 : i+4])
			if isOctal(octal) {
				var b int
				for _, c := range octal {
					b = b*8 + int(c-'0')
				}
				out.WriteByte(byte(b))
				i += 3
				continue
			}
		}
		out.WriteRune(runes[i])
	}
	return out.String()
}

func isOctal(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '7' {
			return false
		}
	}
	return true
}

func isVirtualDisk(name, path string) bool {
	if strings.HasPrefix(name, "loop") || strings.HasPrefix(name, "ram") || strings.HasPrefix(name, "zram") {
		return true
	}
	target, err := filepath.EvalSymlinks(filepath.Join(path, "device"))
	if err == nil && strings.Contains(target, "/virtual/") {
		return true
	}
	return false
}
