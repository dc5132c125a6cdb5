// Package fat32 formats a raw volume from scratch: boot sector, its
// backup, FSINFO sector and its backup, two FATs, and an optional
// volume label entry. The byte layout is bit-exact per the FAT32
// specification since firmware and other operating systems read it
// directly; every offset below is load-bearing.
package fat32

import (
	"os"
	"time"

	"github.com/sigreer/phoenixforge/internal/ferr"
)

const (
	bytesPerSector    = 512
	reservedSectors   = 32
	numFATs           = 2
	rootCluster       = 2
	fsinfoSector      = 1
	backupBootSector  = 6
	mediaDescriptor   = 0xF8
)

// Layout describes the geometry chosen for a formatted volume.
type Layout struct {
	TotalSectors      uint32
	SectorsPerCluster uint8
	SectorsPerFAT     uint32
	RootDirSector     uint32
}

// Format writes a FAT32 filesystem to devicePath, which must already
// be exactly totalBytes in size. label is uppercased and padded to 11
// bytes; an empty label is replaced with "PHOENIX", so the boot sector
// and the root directory's label entry always carry a label.
func Format(devicePath string, totalBytes uint64, label string) (Layout, error) {
	if totalBytes < bytesPerSector*1000 {
		return Layout{}, ferr.New(ferr.Precondition, "device too small for FAT32")
	}
	if totalBytes%bytesPerSector != 0 {
		return Layout{}, ferr.New(ferr.Precondition, "device size must be a multiple of 512 bytes")
	}

	totalSectors := uint32(totalBytes / bytesPerSector)
	spc, err := selectSectorsPerCluster(totalSectors)
	if err != nil {
		return Layout{}, err
	}
	spf, err := computeFATSize(totalSectors, spc)
	if err != nil {
		return Layout{}, err
	}
	dataStart := uint32(reservedSectors) + uint32(numFATs)*spf
	rootDirSector := dataStart + (rootCluster-2)*uint32(spc)

	device, err := os.OpenFile(devicePath, os.O_RDWR, 0)
	if err != nil {
		return Layout{}, ferr.Wrap(ferr.IO, "open device for format", err)
	}
	defer device.Close()

	volID := volumeID()
	effectiveLabel := label
	if effectiveLabel == "" {
		effectiveLabel = "PHOENIX"
	}
	volLabel := labelBytes(effectiveLabel)

	bootSector := buildBootSector(totalSectors, spc, spf, volID, volLabel)
	if err := writeSector(device, 0, bootSector[:]); err != nil {
		return Layout{}, err
	}
	if err := writeSector(device, backupBootSector, bootSector[:]); err != nil {
		return Layout{}, err
	}

	fsinfo := buildFSInfo()
	if err := writeSector(device, fsinfoSector, fsinfo[:]); err != nil {
		return Layout{}, err
	}
	if err := writeSector(device, backupBootSector+1, fsinfo[:]); err != nil {
		return Layout{}, err
	}

	fatStart := uint32(reservedSectors)
	if err := writeFAT(device, fatStart, spf); err != nil {
		return Layout{}, err
	}
	if err := writeFAT(device, fatStart+spf, spf); err != nil {
		return Layout{}, err
	}

	if err := zeroCluster(device, rootDirSector, spc); err != nil {
		return Layout{}, err
	}

	if !isBlankLabel(volLabel) {
		if err := writeVolumeLabel(device, rootDirSector, volLabel); err != nil {
			return Layout{}, err
		}
	}

	if err := device.Sync(); err != nil {
		return Layout{}, ferr.Wrap(ferr.IO, "sync formatted device", err)
	}

	return Layout{
		TotalSectors:      totalSectors,
		SectorsPerCluster: spc,
		SectorsPerFAT:     spf,
		RootDirSector:     rootDirSector,
	}, nil
}

func selectSectorsPerCluster(totalSectors uint32) (uint8, error) {
	candidates := []uint8{1, 2, 4, 8, 16, 32, 64, 128}
	for _, spc := range candidates {
		fat, err := computeFATSize(totalSectors, spc)
		if err != nil {
			continue
		}
		dataSectors := saturatingSub(totalSectors, uint32(reservedSectors)+uint32(numFATs)*fat)
		clusters := dataSectors / uint32(spc)
		if clusters >= 65525 && clusters <= 0x0FFFFFF5 {
			return spc, nil
		}
	}
	return 0, ferr.New(ferr.Precondition, "unable to select sectors per cluster for FAT32")
}

func computeFATSize(totalSectors uint32, spc uint8) (uint32, error) {
	fatSize := uint32(1)
	for {
		dataSectors := saturatingSub(totalSectors, uint32(reservedSectors)+uint32(numFATs)*fatSize)
		clusters := dataSectors / uint32(spc)
		if clusters == 0 {
			return 0, ferr.New(ferr.Precondition, "invalid FAT32 size")
		}
		needed := ((clusters+2)*4 + (bytesPerSector - 1)) / bytesPerSector
		if needed == fatSize {
			return fatSize, nil
		}
		fatSize = needed
	}
}

func saturatingSub(a, b uint32) uint32 {
	if b > a {
		return 0
	}
	return a - b
}

func buildBootSector(totalSectors uint32, spc uint8, spf uint32, volumeID uint32, volumeLabel [11]byte) [512]byte {
	var sector [512]byte
	sector[0] = 0xEB
	sector[1] = 0x58
	sector[2] = 0x90
	copy(sector[3:11], []byte("PHOENIX "))
	writeU16(sector[:], 0x0B, bytesPerSector)
	sector[0x0D] = spc
	writeU16(sector[:], 0x0E, reservedSectors)
	sector[0x10] = numFATs
	writeU16(sector[:], 0x11, 0)
	if totalSectors < 65536 {
		writeU16(sector[:], 0x13, uint16(totalSectors))
	} else {
		writeU16(sector[:], 0x13, 0)
	}
	sector[0x15] = mediaDescriptor
	writeU16(sector[:], 0x16, 0)
	writeU16(sector[:], 0x18, 63)
	writeU16(sector[:], 0x1A, 255)
	writeU32(sector[:], 0x1C, 0)
	writeU32(sector[:], 0x20, totalSectors)
	writeU32(sector[:], 0x24, spf)
	writeU16(sector[:], 0x28, 0)
	writeU16(sector[:], 0x2A, 0)
	writeU32(sector[:], 0x2C, rootCluster)
	writeU16(sector[:], 0x30, fsinfoSector)
	writeU16(sector[:], 0x32, backupBootSector)
	sector[0x40] = 0x80
	sector[0x42] = 0x29
	writeU32(sector[:], 0x43, volumeID)
	copy(sector[0x47:0x52], volumeLabel[:])
	copy(sector[0x52:0x5A], []byte("FAT32   "))
	sector[510] = 0x55
	sector[511] = 0xAA
	return sector
}

func buildFSInfo() [512]byte {
	var sector [512]byte
	copy(sector[0:4], []byte{0x52, 0x52, 0x61, 0x41})
	copy(sector[0x1E4:0x1E8], []byte{0x72, 0x72, 0x41, 0x61})
	writeU32(sector[:], 0x1E8, 0xFFFFFFFF)
	writeU32(sector[:], 0x1EC, 0xFFFFFFFF)
	sector[510] = 0x55
	sector[511] = 0xAA
	return sector
}

func writeFAT(device *os.File, startSector, sectorsPerFAT uint32) error {
	firstSector := make([]byte, bytesPerSector)
	writeU32Slice(firstSector, 0, 0x0FFFFFF8)
	writeU32Slice(firstSector, 1, 0x0FFFFFFF)
	writeU32Slice(firstSector, 2, 0x0FFFFFFF)
	if err := writeSector(device, startSector, firstSector); err != nil {
		return err
	}

	zeroSector := make([]byte, bytesPerSector)
	for s := uint32(1); s < sectorsPerFAT; s++ {
		if err := writeSector(device, startSector+s, zeroSector); err != nil {
			return err
		}
	}
	return nil
}

func zeroCluster(device *os.File, startSector uint32, spc uint8) error {
	zeroSector := make([]byte, bytesPerSector)
	for offset := uint32(0); offset < uint32(spc); offset++ {
		if err := writeSector(device, startSector+offset, zeroSector); err != nil {
			return err
		}
	}
	return nil
}

func writeVolumeLabel(device *os.File, rootSector uint32, label [11]byte) error {
	var entry [32]byte
	copy(entry[0:11], label[:])
	entry[11] = 0x08
	return writeSector(device, rootSector, entry[:])
}

func writeSector(device *os.File, sector uint32, data []byte) error {
	if _, err := device.Seek(int64(sector)*bytesPerSector, 0); err != nil {
		return ferr.Wrap(ferr.IO, "seek to sector", err)
	}
	if _, err := device.Write(data); err != nil {
		return ferr.Wrap(ferr.IO, "write sector", err)
	}
	return nil
}

func writeU16(buf []byte, offset int, value uint16) {
	buf[offset] = byte(value)
	buf[offset+1] = byte(value >> 8)
}

func writeU32(buf []byte, offset int, value uint32) {
	buf[offset] = byte(value)
	buf[offset+1] = byte(value >> 8)
	buf[offset+2] = byte(value >> 16)
	buf[offset+3] = byte(value >> 24)
}

func writeU32Slice(buf []byte, index int, value uint32) {
	writeU32(buf, index*4, value)
}

func labelBytes(label string) [11]byte {
	var out [11]byte
	for i := range out {
		out[i] = ' '
	}
	upper := []byte(toUpperASCII(label))
	n := len(upper)
	if n > 11 {
		n = 11
	}
	copy(out[:n], upper[:n])
	return out
}

func isBlankLabel(label [11]byte) bool {
	for _, b := range label {
		if b != ' ' {
			return false
		}
	}
	return true
}

func toUpperASCII(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

func volumeID() uint32 {
	secs := time.Now().Unix()
	if secs <= 0 {
		return 0x12345678
	}
	return uint32(secs)
}
