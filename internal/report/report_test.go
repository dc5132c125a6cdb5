package report

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sigreer/phoenixforge/internal/core"
)

func testGraph() core.DeviceGraph {
	return core.NewDeviceGraph(core.HostInfo{OS: "linux", OSVersion: "test", Machine: "test-machine"}, nil)
}

func TestCreateAndVerifyRoundTrip(t *testing.T) {
	dir := t.TempDir()
	key, err := hex.DecodeString(strings.Repeat("00", 32))
	if err != nil {
		t.Fatalf("decode key: %v", err)
	}

	paths, err := Create(dir, testGraph(), map[string]interface{}{"k": "v"}, "hello", nil, key)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	manifestData, err := os.ReadFile(paths.ManifestJSON)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(manifestData, &manifest); err != nil {
		t.Fatalf("unmarshal manifest: %v", err)
	}
	if len(manifest.Entries) != 3 {
		t.Fatalf("expected exactly 3 manifest entries (device_graph.json, run.json, logs.txt), got %d", len(manifest.Entries))
	}
	names := map[string]bool{}
	for _, e := range manifest.Entries {
		names[e.Path] = true
	}
	for _, want := range []string{"device_graph.json", "run.json", "logs.txt"} {
		if !names[want] {
			t.Errorf("manifest missing entry %s", want)
		}
	}

	result, err := Verify(paths.Root, key)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !result.OK {
		t.Errorf("expected ok=true, got mismatches %v", result.Mismatches)
	}
	if result.EntriesChecked != 3 {
		t.Errorf("entries_checked = %d, want 3", result.EntriesChecked)
	}
	if result.SignatureValid == nil || !*result.SignatureValid {
		t.Errorf("expected signature_valid = true, got %+v", result.SignatureValid)
	}
}

func TestVerifyDetectsTamperedFile(t *testing.T) {
	dir := t.TempDir()
	paths, err := Create(dir, testGraph(), nil, "hello", nil, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := os.WriteFile(paths.LogsPath, []byte("tampered"), 0o644); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	result, err := Verify(paths.Root, nil)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.OK {
		t.Error("expected verification to fail after tampering")
	}
	found := false
	for _, m := range result.Mismatches {
		if strings.Contains(m, "logs.txt") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a mismatch naming logs.txt, got %v", result.Mismatches)
	}
}

func TestArtifactNameRejectsPathSeparators(t *testing.T) {
	dir := t.TempDir()
	_, err := Create(dir, testGraph(), nil, "", []Artifact{{Name: "sub/dir.json", Data: []byte("{}")}}, nil)
	if err == nil {
		t.Error("expected error for artifact name containing a path separator")
	}
}

func TestExportZipIncludesEveryFile(t *testing.T) {
	dir := t.TempDir()
	paths, err := Create(dir, testGraph(), nil, "hello", []Artifact{{Name: "extra.json", Data: []byte(`{"a":1}`)}}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	zipPath := filepath.Join(dir, "bundle.zip")
	if err := ExportZip(paths.Root, zipPath); err != nil {
		t.Fatalf("ExportZip: %v", err)
	}
	info, err := os.Stat(zipPath)
	if err != nil {
		t.Fatalf("stat zip: %v", err)
	}
	if info.Size() == 0 {
		t.Error("expected non-empty zip archive")
	}
}

