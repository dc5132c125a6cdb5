//go:build linux

package hostgraph

import "testing"

func TestIsVirtualDiskByNamePrefix(t *testing.T) {
	cases := map[string]bool{
		"loop0": true,
		"ram0":  true,
		"zram0": true,
		"sda":   false,
		"nvme0n1": false,
	}
	for name, want := range cases {
		if got := isVirtualDisk(name, "/sys/block/"+name); got != want {
			t.Errorf("isVirtualDisk(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestUnescapeMountOctal(t *testing.T) {
	got := unescapeMount(`/mnt/my\040disk`)
	want := "/mnt/my disk"
	if got != want {
		t.Errorf("unescapeMount = %q, want %q", got, want)
	}
}

func TestUnescapeMountNoEscapes(t *testing.T) {
	got := unescapeMount("/mnt/plain")
	if got != "/mnt/plain" {
		t.Errorf("unescapeMount = %q, want unchanged", got)
	}
}
