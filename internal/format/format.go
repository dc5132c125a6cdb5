// Package format creates the GPT partition table and filesystem a USB
// target needs before content staging begins.
package format

import (
	"strings"

	"github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/partition/gpt"
	"github.com/google/uuid"

	"github.com/sigreer/phoenixforge/internal/ferr"
)

// Filesystem names the on-disk format a volume is prepared with.
type Filesystem string

const (
	FAT32 Filesystem = "FAT32"
	NTFS  Filesystem = "NTFS"
	ExFAT Filesystem = "exFAT"
)

// ParseFilesystem matches a case-insensitive filesystem name against
// the supported set, erroring on anything else.
func ParseFilesystem(value string) (Filesystem, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "fat32":
		return FAT32, nil
	case "ntfs":
		return NTFS, nil
	case "exfat":
		return ExFAT, nil
	default:
		return "", ferr.Newf(ferr.Precondition, "unsupported filesystem %q", value)
	}
}

const partitionAlignmentBytes = 1 * 1024 * 1024

// PartitionGPT lays down a single protective-MBR GPT partition table
// on devicePath spanning the whole device, aligned to 1MiB at both
// ends, labelled with name.
func PartitionGPT(devicePath string, totalBytes uint64, name string) error {
	disk, err := diskfs.Open(devicePath)
	if err != nil {
		return ferr.Wrap(ferr.IO, "open device for partitioning", err)
	}
	defer disk.Close()

	usable := saturatingSub(totalBytes, partitionAlignmentBytes*2)
	if usable == 0 {
		return ferr.New(ferr.Precondition, "device too small to partition")
	}

	start := uint64(partitionAlignmentBytes) / uint64(disk.LogicalBlocksize)
	end := start + usable/uint64(disk.LogicalBlocksize) - 1

	table := &gpt.Table{
		ProtectiveMBR: true,
		GUID:          uuid.New().String(),
		Partitions: []*gpt.Partition{
			{
				Start: start,
				End:   end,
				Type:  gpt.MicrosoftBasicData,
				Size:  usable,
				Name:  name,
				GUID:  uuid.New().String(),
			},
		},
		LogicalSectorSize:  int(disk.LogicalBlocksize),
		PhysicalSectorSize: int(disk.PhysicalBlocksize),
	}

	if err := disk.Partition(table); err != nil {
		return ferr.Wrap(ferr.IO, "write gpt partition table", err)
	}
	return nil
}

func saturatingSub(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}
