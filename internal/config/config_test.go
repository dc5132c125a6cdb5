package config

import (
	"os"
	"testing"
)

func TestLoadDefaultsWithMissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Imaging.ChunkSizeBytes != defaultConfig.Imaging.ChunkSizeBytes {
		t.Errorf("expected default chunk size, got %d", cfg.Imaging.ChunkSizeBytes)
	}
	if cfg.ApplyImage.ToleranceFraction != 0.01 {
		t.Errorf("expected default tolerance 0.01, got %f", cfg.ApplyImage.ToleranceFraction)
	}
}

func TestLoadAppliesPartialOverrides(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.yaml"
	data := []byte("imaging:\n  chunk_size_bytes: 1048576\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Imaging.ChunkSizeBytes != 1048576 {
		t.Errorf("expected overridden chunk size, got %d", cfg.Imaging.ChunkSizeBytes)
	}
	if cfg.Mount.ISOTimeoutSeconds != defaultConfig.Mount.ISOTimeoutSeconds {
		t.Errorf("expected default ISO timeout to survive partial override, got %d", cfg.Mount.ISOTimeoutSeconds)
	}
}
