package fat32

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func makeBackingFile(t *testing.T, totalBytes int64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "volume.img")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create backing file: %v", err)
	}
	if err := f.Truncate(totalBytes); err != nil {
		f.Close()
		t.Fatalf("truncate: %v", err)
	}
	f.Close()
	return path
}

func readSector(t *testing.T, path string, sector int64) []byte {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	buf := make([]byte, 512)
	if _, err := f.ReadAt(buf, sector*512); err != nil {
		t.Fatalf("ReadAt sector %d: %v", sector, err)
	}
	return buf
}

func TestFormatRejectsTooSmall(t *testing.T) {
	path := makeBackingFile(t, 511*512)
	if _, err := Format(path, 511*512, ""); err == nil {
		t.Error("expected error for undersized device")
	}
}

func TestFormatRejectsNonSectorMultiple(t *testing.T) {
	path := makeBackingFile(t, 1000*512+1)
	if _, err := Format(path, 1000*512+1, ""); err == nil {
		t.Error("expected error for non-512-aligned size")
	}
}

func TestFormatBootSectorMirroredAtBackup(t *testing.T) {
	size := int64(300 * 1024 * 1024) // 300 MiB, comfortably above the FAT32 cluster-count floor
	path := makeBackingFile(t, size)

	layout, err := Format(path, uint64(size), "MYUSB")
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if layout.SectorsPerCluster == 0 {
		t.Fatal("expected nonzero sectors per cluster")
	}

	boot := readSector(t, path, 0)
	backupBoot := readSector(t, path, backupBootSector)
	if !bytes.Equal(boot, backupBoot) {
		t.Error("boot sector at LBA 0 does not match backup at LBA 6")
	}
	if boot[510] != 0x55 || boot[511] != 0xAA {
		t.Error("boot sector missing 0x55AA signature")
	}

	fsinfo := readSector(t, path, fsinfoSector)
	backupFSInfo := readSector(t, path, backupBootSector+1)
	if !bytes.Equal(fsinfo, backupFSInfo) {
		t.Error("FSINFO sector does not match its backup")
	}
	if fsinfo[0] != 0x52 || fsinfo[1] != 0x52 || fsinfo[2] != 0x61 || fsinfo[3] != 0x41 {
		t.Error("FSINFO lead signature incorrect")
	}

	fatStart := int64(reservedSectors)
	fatSector := readSector(t, path, fatStart)
	wantFirstThree := []byte{
		0xF8, 0xFF, 0xFF, 0x0F,
		0xFF, 0xFF, 0xFF, 0x0F,
		0xFF, 0xFF, 0xFF, 0x0F,
	}
	if !bytes.Equal(fatSector[:12], wantFirstThree) {
		t.Errorf("FAT first three entries = % X, want % X", fatSector[:12], wantFirstThree)
	}
}

func TestSelectSectorsPerClusterMeetsFloor(t *testing.T) {
	totalSectors := uint32(300 * 1024 * 1024 / 512)
	spc, err := selectSectorsPerCluster(totalSectors)
	if err != nil {
		t.Fatalf("selectSectorsPerCluster: %v", err)
	}
	fat, err := computeFATSize(totalSectors, spc)
	if err != nil {
		t.Fatalf("computeFATSize: %v", err)
	}
	dataSectors := saturatingSub(totalSectors, uint32(reservedSectors)+uint32(numFATs)*fat)
	clusters := dataSectors / uint32(spc)
	if clusters < 65525 || clusters > 0x0FFFFFF5 {
		t.Errorf("clusters = %d, out of FAT32 range", clusters)
	}
}

func TestLabelBytesPadsAndUppercases(t *testing.T) {
	got := labelBytes("usb")
	want := [11]byte{'U', 'S', 'B', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' '}
	if got != want {
		t.Errorf("labelBytes(usb) = %v, want %v", got, want)
	}
}
