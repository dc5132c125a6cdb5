package format

import "testing"

func TestParseFilesystem(t *testing.T) {
	cases := map[string]Filesystem{
		"fat32": FAT32,
		"FAT32": FAT32,
		"ntfs":  NTFS,
		"NTFS":  NTFS,
		"exfat": ExFAT,
		"exFAT": ExFAT,
	}
	for input, want := range cases {
		got, err := ParseFilesystem(input)
		if err != nil {
			t.Fatalf("ParseFilesystem(%q) error: %v", input, err)
		}
		if got != want {
			t.Errorf("ParseFilesystem(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestParseFilesystemRejectsUnknown(t *testing.T) {
	if _, err := ParseFilesystem("btrfs"); err == nil {
		t.Fatal("expected error for unsupported filesystem")
	}
}

func TestSaturatingSub(t *testing.T) {
	if got := saturatingSub(10, 20); got != 0 {
		t.Errorf("saturatingSub(10,20) = %d, want 0", got)
	}
	if got := saturatingSub(20, 10); got != 10 {
		t.Errorf("saturatingSub(20,10) = %d, want 10", got)
	}
}
