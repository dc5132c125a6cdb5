// Package report builds and verifies the canonical on-disk evidence
// artifact every workflow step produces: a reports/<run_id>/ directory
// with a device graph snapshot, run metadata, logs, a content-addressed
// manifest, and an optional HMAC-SHA256 signature over the manifest.
package report

import (
	"archive/zip"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/sigreer/phoenixforge/internal/core"
	"github.com/sigreer/phoenixforge/internal/ferr"
)

const (
	deviceGraphFile = "device_graph.json"
	runFile         = "run.json"
	logsFile        = "logs.txt"
	manifestFile    = "manifest.json"
	signatureFile   = "manifest.sig"
)

// Artifact is a named, caller-supplied file written alongside the
// canonical bundle files (e.g. copy_manifest.json, disk_hashes.json).
// Name must be a bare filename; any path separator is a hard error.
type Artifact struct {
	Name string
	Data []byte
}

// ManifestEntry is one content-addressed file record.
type ManifestEntry struct {
	Path   string `json:"path"`
	Bytes  uint64 `json:"bytes"`
	SHA256 string `json:"sha256"`
}

// Manifest is the bundle's self-verification index.
type Manifest struct {
	RunID   string          `json:"run_id"`
	Entries []ManifestEntry `json:"entries"`
}

// Paths names every file a created bundle is known to contain.
type Paths struct {
	RunID           string
	Root            string
	DeviceGraphJSON string
	RunJSON         string
	LogsPath        string
	ManifestJSON    string
	SignaturePath   string // empty when unsigned
}

// Create writes a new bundle under base/reports/<run_id>/. meta is
// merged into run.json: its entries take precedence over the default
// keys (run_id, schema_version, generated_at_utc, host, disk_count).
// When signingKey is non-nil, manifest.sig is written as the lowercase
// hex HMAC-SHA256 of the manifest bytes.
func Create(base string, graph core.DeviceGraph, meta map[string]interface{}, logs string, artifacts []Artifact, signingKey []byte) (Paths, error) {
	runID := uuid.NewString()
	root := filepath.Join(base, "reports", runID)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return Paths{}, ferr.Wrap(ferr.IO, "create report directory", err)
	}

	var writtenOrder []string
	writeFile := func(name string, data []byte) error {
		if err := os.WriteFile(filepath.Join(root, name), data, 0o644); err != nil {
			return ferr.Wrap(ferr.IO, fmt.Sprintf("write %s", name), err)
		}
		writtenOrder = append(writtenOrder, name)
		return nil
	}

	graphJSON, err := json.MarshalIndent(graph, "", "  ")
	if err != nil {
		return Paths{}, ferr.Wrap(ferr.IO, "marshal device graph", err)
	}
	if err := writeFile(deviceGraphFile, graphJSON); err != nil {
		return Paths{}, err
	}

	runMeta := buildRunMeta(runID, graph, meta)
	runJSON, err := json.MarshalIndent(runMeta, "", "  ")
	if err != nil {
		return Paths{}, ferr.Wrap(ferr.IO, "marshal run metadata", err)
	}
	if err := writeFile(runFile, runJSON); err != nil {
		return Paths{}, err
	}

	if err := writeFile(logsFile, []byte(logs)); err != nil {
		return Paths{}, err
	}

	for _, a := range artifacts {
		if strings.ContainsAny(a.Name, "/\\") {
			return Paths{}, ferr.Newf(ferr.Precondition, "artifact name %q must not contain path separators", a.Name)
		}
		if err := writeFile(a.Name, a.Data); err != nil {
			return Paths{}, err
		}
	}

	manifest := Manifest{RunID: runID}
	for _, name := range writtenOrder {
		data, err := os.ReadFile(filepath.Join(root, name))
		if err != nil {
			return Paths{}, ferr.Wrap(ferr.IO, fmt.Sprintf("read %s for manifest", name), err)
		}
		sum := sha256.Sum256(data)
		manifest.Entries = append(manifest.Entries, ManifestEntry{
			Path:   name,
			Bytes:  uint64(len(data)),
			SHA256: hex.EncodeToString(sum[:]),
		})
	}

	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return Paths{}, ferr.Wrap(ferr.IO, "marshal manifest", err)
	}
	manifestPath := filepath.Join(root, manifestFile)
	if err := os.WriteFile(manifestPath, manifestJSON, 0o644); err != nil {
		return Paths{}, ferr.Wrap(ferr.IO, "write manifest", err)
	}

	paths := Paths{
		RunID:           runID,
		Root:            root,
		DeviceGraphJSON: filepath.Join(root, deviceGraphFile),
		RunJSON:         filepath.Join(root, runFile),
		LogsPath:        filepath.Join(root, logsFile),
		ManifestJSON:    manifestPath,
	}

	if signingKey != nil {
		mac := hmac.New(sha256.New, signingKey)
		mac.Write(manifestJSON)
		sig := hex.EncodeToString(mac.Sum(nil))
		sigPath := filepath.Join(root, signatureFile)
		if err := os.WriteFile(sigPath, []byte(sig), 0o644); err != nil {
			return Paths{}, ferr.Wrap(ferr.IO, "write manifest signature", err)
		}
		paths.SignaturePath = sigPath
	}

	return paths, nil
}

func buildRunMeta(runID string, graph core.DeviceGraph, meta map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{
		"run_id":           runID,
		"schema_version":   core.DeviceGraphSchemaVersion,
		"generated_at_utc": core.NowUTCRFC3339(),
		"host":             graph.Host,
		"disk_count":       len(graph.Disks),
	}
	for k, v := range meta {
		out[k] = v
	}
	return out
}

// VerifyResult is the outcome of Verify.
type VerifyResult struct {
	OK             bool
	EntriesChecked int
	Mismatches     []string
	SignatureValid *bool // nil when no signature present
}

// Verify re-hashes every file named in root/manifest.json and checks
// it against the recorded size and digest. If manifest.sig is
// present, key must be supplied and the signature must validate.
func Verify(root string, key []byte) (VerifyResult, error) {
	manifestPath := filepath.Join(root, manifestFile)
	manifestBytes, err := os.ReadFile(manifestPath)
	if err != nil {
		return VerifyResult{}, ferr.Wrap(ferr.IO, "read manifest", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(manifestBytes, &manifest); err != nil {
		return VerifyResult{}, ferr.Wrap(ferr.Precondition, "parse manifest", err)
	}

	result := VerifyResult{OK: true}
	for _, entry := range manifest.Entries {
		result.EntriesChecked++
		data, err := os.ReadFile(filepath.Join(root, entry.Path))
		if err != nil {
			result.OK = false
			result.Mismatches = append(result.Mismatches, fmt.Sprintf("%s: missing or unreadable", entry.Path))
			continue
		}
		if uint64(len(data)) != entry.Bytes {
			result.OK = false
			result.Mismatches = append(result.Mismatches, fmt.Sprintf("%s: size mismatch", entry.Path))
			continue
		}
		sum := sha256.Sum256(data)
		if hex.EncodeToString(sum[:]) != strings.ToLower(entry.SHA256) {
			result.OK = false
			result.Mismatches = append(result.Mismatches, fmt.Sprintf("%s: sha256 mismatch", entry.Path))
		}
	}

	sigPath := filepath.Join(root, signatureFile)
	if sigBytes, err := os.ReadFile(sigPath); err == nil {
		if key == nil {
			return VerifyResult{}, ferr.New(ferr.SignatureInvalid, "manifest.sig present but no signing key supplied")
		}
		mac := hmac.New(sha256.New, key)
		mac.Write(manifestBytes)
		expected := hex.EncodeToString(mac.Sum(nil))
		got := strings.ToLower(strings.TrimSpace(string(sigBytes)))
		valid := subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
		result.SignatureValid = &valid
		if !valid {
			result.OK = false
		}
	}

	return result, nil
}

// VerifyTree walks root and verifies every direct child directory
// that contains a manifest.json, returning a map from that
// directory's path to its verification result.
func VerifyTree(root string, key []byte) (map[string]VerifyResult, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, ferr.Wrap(ferr.IO, "read report tree root", err)
	}
	results := make(map[string]VerifyResult)
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		dir := filepath.Join(root, name)
		if _, err := os.Stat(filepath.Join(dir, manifestFile)); err != nil {
			continue
		}
		res, err := Verify(dir, key)
		if err != nil {
			return nil, err
		}
		results[dir] = res
	}
	return results, nil
}

// ExportZip recursively archives every regular file under root into
// destZip, using forward-slash separators for archive entry names
// regardless of host path conventions.
func ExportZip(root, destZip string) error {
	out, err := os.Create(destZip)
	if err != nil {
		return ferr.Wrap(ferr.IO, "create zip output", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	walkErr := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		entryName := filepath.ToSlash(rel)
		w, err := zw.Create(entryName)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
	if walkErr != nil {
		zw.Close()
		return ferr.Wrap(ferr.IO, "zip report tree", walkErr)
	}
	if err := zw.Close(); err != nil {
		return ferr.Wrap(ferr.IO, "finalize zip", err)
	}
	return nil
}
