//go:build windows

package hostgraph

import (
	"encoding/json"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sigreer/phoenixforge/internal/core"
	"github.com/sigreer/phoenixforge/internal/ferr"
)

// psDisk mirrors the fields of Get-Disk this provider needs.
type psDisk struct {
	Number       int    `json:"Number"`
	FriendlyName string `json:"FriendlyName"`
	Size         uint64 `json:"Size"`
	BusType      string `json:"BusType"`
	IsBoot       bool   `json:"IsBoot"`
	IsSystem     bool   `json:"IsSystem"`
}

// psPartition mirrors the fields of Get-Partition this provider needs.
type psPartition struct {
	DiskNumber       int    `json:"DiskNumber"`
	PartitionNumber  int    `json:"PartitionNumber"`
	Size             uint64 `json:"Size"`
	DriveLetter      string `json:"DriveLetter"`
}

// psVolume mirrors the fields of Get-Volume this provider needs.
type psVolume struct {
	DriveLetter string `json:"DriveLetter"`
	FileSystem  string `json:"FileSystem"`
	FileSystemLabel string `json:"FileSystemLabel"`
}

func buildDeviceGraph() (core.DeviceGraph, error) {
	host := core.HostInfo{
		OS:        "windows",
		OSVersion: psScalar("(Get-CimInstance Win32_OperatingSystem).Version"),
		Machine:   psScalar("(Get-CimInstance Win32_ComputerSystem).Model"),
	}
	disks, err := enumerateDisks()
	if err != nil {
		return core.DeviceGraph{}, err
	}
	return core.NewDeviceGraph(host, disks), nil
}

func enumerateDisks() ([]core.Disk, error) {
	var psDisks []psDisk
	if err := psJSON("Get-Disk | Select-Object Number,FriendlyName,Size,BusType,IsBoot,IsSystem", &psDisks); err != nil {
		return nil, err
	}

	var psPartitions []psPartition
	if err := psJSON("Get-Partition | Select-Object DiskNumber,PartitionNumber,Size,DriveLetter", &psPartitions); err != nil {
		return nil, err
	}

	volumesByLetter := map[string]psVolume{}
	var volumes []psVolume
	if err := psJSON("Get-Volume | Select-Object DriveLetter,FileSystem,FileSystemLabel", &volumes); err == nil {
		for _, v := range volumes {
			if v.DriveLetter != "" {
				volumesByLetter[strings.ToUpper(v.DriveLetter)] = v
			}
		}
	}

	partsByDisk := map[int][]psPartition{}
	for _, p := range psPartitions {
		partsByDisk[p.DiskNumber] = append(partsByDisk[p.DiskNumber], p)
	}

	var windirLetter string
	if windir := os.Getenv("WINDIR"); len(windir) >= 2 && windir[1] == ':' {
		windirLetter = strings.ToUpper(windir[:1])
	}

	var disks []core.Disk
	for _, d := range psDisks {
		diskID := "PhysicalDrive" + strconv.Itoa(d.Number)
		var partitions []core.Partition
		isSystemDisk := d.IsSystem

		for _, p := range partsByDisk[d.Number] {
			var mountPoints []string
			var fsType, label string
			if p.DriveLetter != "" {
				mountPoint := strings.ToUpper(p.DriveLetter) + `:\`
				mountPoints = []string{mountPoint}
				if windirLetter != "" && strings.ToUpper(p.DriveLetter) == windirLetter {
					isSystemDisk = true
				}
				if v, ok := volumesByLetter[strings.ToUpper(p.DriveLetter)]; ok {
					fsType = v.FileSystem
					label = v.FileSystemLabel
				}
			}
			partitions = append(partitions, core.Partition{
				ID:          diskID + "-partition" + strconv.Itoa(p.PartitionNumber),
				Label:       label,
				FS:          fsType,
				SizeBytes:   p.Size,
				MountPoints: mountPoints,
			})
		}

		friendlyName := d.FriendlyName
		if friendlyName == "" {
			friendlyName = diskID
		}

		disks = append(disks, core.Disk{
			ID:           diskID,
			FriendlyName: friendlyName,
			SizeBytes:    d.Size,
			Removable:    strings.EqualFold(d.BusType, "USB"),
			IsSystemDisk: isSystemDisk,
			Partitions:   partitions,
		})
	}
	return disks, nil
}

func psJSON(script string, out interface{}) error {
	cmd := exec.Command("powershell", "-NoProfile", "-Command", script+" | ConvertTo-Json -Depth 4")
	data, err := cmd.Output()
	if err != nil {
		return ferr.Wrap(ferr.IO, "run powershell query", err)
	}
	data = normalizeJSONArray(data)
	if err := json.Unmarshal(data, out); err != nil {
		return ferr.Wrap(ferr.IO, "parse powershell JSON output", err)
	}
	return nil
}

func psScalar(script string) string {
	cmd := exec.Command("powershell", "-NoProfile", "-Command", script)
	out, err := cmd.Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}

// normalizeJSONArray wraps a single ConvertTo-Json object in brackets,
// since PowerShell emits a bare object (not an array) when exactly one
// result is present.
func normalizeJSONArray(data []byte) []byte {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		return []byte("[" + trimmed + "]")
	}
	if trimmed == "" {
		return []byte("[]")
	}
	return data
}
