package imaging

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func TestPlanChunks(t *testing.T) {
	plan := PlanChunks(10, 3)
	want := []ChunkRange{
		{Index: 0, Offset: 0, Size: 3},
		{Index: 1, Offset: 3, Size: 3},
		{Index: 2, Offset: 6, Size: 3},
		{Index: 3, Offset: 9, Size: 1},
	}
	if len(plan) != len(want) {
		t.Fatalf("got %d ranges, want %d", len(plan), len(want))
	}
	for i, r := range plan {
		if r != want[i] {
			t.Errorf("range %d = %+v, want %+v", i, r, want[i])
		}
	}
}

func TestPlanChunksDegenerate(t *testing.T) {
	if got := PlanChunks(0, 5); len(got) != 0 {
		t.Errorf("PlanChunks(0,5) = %v, want empty", got)
	}
	if got := PlanChunks(5, 0); len(got) != 0 {
		t.Errorf("PlanChunks(5,0) = %v, want empty", got)
	}
}

func TestHashReaderChunksMatchesWholeFileSHA256(t *testing.T) {
	data := bytes.Repeat([]byte("phoenixforge"), 1000)
	sum := sha256.Sum256(data)
	want := hex.EncodeToString(sum[:])

	_, overall, err := HashReaderChunks(bytes.NewReader(data), int64(len(data)), 37, nil)
	if err != nil {
		t.Fatalf("HashReaderChunks: %v", err)
	}
	if overall != want {
		t.Errorf("overall hash = %s, want %s", overall, want)
	}
}

func TestHashReaderChunksCancellation(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 100)
	_, _, err := HashReaderChunks(bytes.NewReader(data), int64(len(data)), 10, func(ProgressEvent) bool {
		return false
	})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestStreamImageToDeviceVerifies(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "image.bin")
	dst := filepath.Join(dir, "device.bin")
	data := bytes.Repeat([]byte{0x42}, 5000)
	if err := os.WriteFile(src, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	result, err := StreamImageToDevice(src, dst, 512, true, nil)
	if err != nil {
		t.Fatalf("StreamImageToDevice: %v", err)
	}
	if !result.VerifyOK {
		t.Errorf("expected verify ok, got %+v", result)
	}
	if result.BytesWritten != int64(len(data)) {
		t.Errorf("bytes written = %d, want %d", result.BytesWritten, len(data))
	}
}
