// Package config loads the engine's runtime tunables: chunked-imaging
// parameters, mount timeouts, the apply-image verification tolerance,
// and the optional signing and audit-db locations.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Imaging    Imaging    `yaml:"imaging"`
	Mount      Mount      `yaml:"mount"`
	ApplyImage ApplyImage `yaml:"apply_image"`
	Signing    Signing    `yaml:"signing"`
	AuditDB    AuditDB    `yaml:"audit_db"`
}

type Imaging struct {
	// ChunkSizeBytes is the unit of work for streaming copy + hashing.
	ChunkSizeBytes int64 `yaml:"chunk_size_bytes"`
}

type Mount struct {
	// ISOTimeoutSeconds is loaded and defaulted but not read by the ISO
	// mount code, which waits for the mount command to return with no
	// time bound.
	ISOTimeoutSeconds int `yaml:"iso_timeout_seconds"`
	// VolumeReadyTimeoutSeconds is loaded and defaulted but not read by
	// any operation; nothing waits for a formatted volume to appear.
	VolumeReadyTimeoutSeconds int `yaml:"volume_ready_timeout_seconds"`
}

type ApplyImage struct {
	// ToleranceFraction is the allowed relative difference between the
	// image's reported uncompressed size and the bytes found under the
	// target directory after apply; a larger difference fails the
	// apply-image verification.
	ToleranceFraction float64 `yaml:"tolerance_fraction"`
}

type Signing struct {
	// EnvVar names the environment variable holding the HMAC signing key.
	// Report and pack signatures are omitted when it is unset.
	EnvVar string `yaml:"env_var"`
}

type AuditDB struct {
	// Path to the local SQLite audit index. Empty disables it.
	Path string `yaml:"path"`
}

var defaultConfig = Config{
	Imaging: Imaging{
		ChunkSizeBytes: 4 << 20, // 4 MiB
	},
	Mount: Mount{
		ISOTimeoutSeconds:         30,
		VolumeReadyTimeoutSeconds: 60,
	},
	ApplyImage: ApplyImage{
		ToleranceFraction: 0.01,
	},
	Signing: Signing{
		EnvVar: "PHOENIXFORGE_SIGNING_KEY",
	},
	AuditDB: AuditDB{
		Path: "",
	},
}

// Load reads configuration from path, or from the first candidate
// location that exists when path is empty. Missing files fall back to
// defaults rather than erroring; a present-but-invalid file is an error.
func Load(path string) (*Config, error) {
	if path == "" {
		candidates := []string{
			"/etc/phoenixforge/config.yaml",
			filepath.Join(os.Getenv("HOME"), ".config/phoenixforge/config.yaml"),
			"config.yaml",
		}
		for _, c := range candidates {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}

	cfg := defaultConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, err
			}
		}
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// SigningKey returns the signing key from the configured environment
// variable, or nil when it is unset or empty.
func (c *Config) SigningKey() []byte {
	value := os.Getenv(c.Signing.EnvVar)
	if value == "" {
		return nil
	}
	return []byte(value)
}

func applyDefaults(cfg *Config) {
	if cfg.Imaging.ChunkSizeBytes <= 0 {
		cfg.Imaging.ChunkSizeBytes = defaultConfig.Imaging.ChunkSizeBytes
	}
	if cfg.Mount.ISOTimeoutSeconds <= 0 {
		cfg.Mount.ISOTimeoutSeconds = defaultConfig.Mount.ISOTimeoutSeconds
	}
	if cfg.Mount.VolumeReadyTimeoutSeconds <= 0 {
		cfg.Mount.VolumeReadyTimeoutSeconds = defaultConfig.Mount.VolumeReadyTimeoutSeconds
	}
	if cfg.ApplyImage.ToleranceFraction <= 0 {
		cfg.ApplyImage.ToleranceFraction = defaultConfig.ApplyImage.ToleranceFraction
	}
	if cfg.Signing.EnvVar == "" {
		cfg.Signing.EnvVar = defaultConfig.Signing.EnvVar
	}
}
