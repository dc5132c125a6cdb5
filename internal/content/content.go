// Package content resolves workflow step inputs into usable file
// roots — directories, mounted ISOs, and Windows WIM/ESD images — and
// loads/signs/verifies pack manifests that group workflow definitions
// together for distribution.
package content

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sigreer/phoenixforge/internal/core"
	"github.com/sigreer/phoenixforge/internal/ferr"
)

// PackSchemaVersion is the exact-match schema string every pack
// manifest must declare.
const PackSchemaVersion = core.PackSchemaVersion

// PackManifest groups one or more workflow definitions for
// distribution, with an optional asset directory and signature.
type PackManifest struct {
	SchemaVersion string   `json:"schema_version" yaml:"schema_version"`
	Name          string   `json:"name" yaml:"name"`
	Version       string   `json:"version" yaml:"version"`
	Description   string   `json:"description,omitempty" yaml:"description,omitempty"`
	Workflows     []string `json:"workflows" yaml:"workflows"`
	Assets        string   `json:"assets,omitempty" yaml:"assets,omitempty"`
}

// LoadPackManifest reads and schema-checks a pack manifest in JSON or
// YAML form, selected by file extension.
func LoadPackManifest(path string) (PackManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PackManifest{}, ferr.Wrap(ferr.IO, "read pack manifest", err)
	}
	var manifest PackManifest
	if err := parseByExtension(path, data, &manifest); err != nil {
		return PackManifest{}, err
	}
	if manifest.SchemaVersion != PackSchemaVersion {
		return PackManifest{}, ferr.Newf(ferr.Precondition, "unsupported pack schema version %s", manifest.SchemaVersion)
	}
	return manifest, nil
}

// ResolvedWorkflow pairs a workflow definition with the path it was
// loaded from, relative to the pack manifest's directory.
type ResolvedWorkflow struct {
	Path       string
	Definition core.WorkflowDefinition
}

// ResolvePackWorkflows loads the manifest at manifestPath and every
// workflow it references, resolved relative to the manifest's
// directory.
func ResolvePackWorkflows(manifestPath string) ([]ResolvedWorkflow, error) {
	manifest, err := LoadPackManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	base := filepath.Dir(manifestPath)

	var out []ResolvedWorkflow
	for _, rel := range manifest.Workflows {
		path := filepath.Join(base, rel)
		def, err := LoadWorkflowDefinition(path)
		if err != nil {
			return nil, err
		}
		out = append(out, ResolvedWorkflow{Path: path, Definition: def})
	}
	return out, nil
}

// LoadWorkflowDefinition reads and parses one workflow definition
// file (JSON or YAML by extension). Schema-version checking is the
// caller's responsibility (the workflow engine validates it).
func LoadWorkflowDefinition(path string) (core.WorkflowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.WorkflowDefinition{}, ferr.Wrap(ferr.IO, "read workflow definition", err)
	}
	var def core.WorkflowDefinition
	if err := parseByExtension(path, data, &def); err != nil {
		return core.WorkflowDefinition{}, err
	}
	return def, nil
}

func parseByExtension(path string, data []byte, out interface{}) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		if err := yaml.Unmarshal(data, out); err != nil {
			return ferr.Wrap(ferr.Precondition, "parse YAML", err)
		}
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return ferr.Wrap(ferr.Precondition, "parse JSON", err)
	}
	return nil
}

// SignPackManifest writes a pack.sig file beside path, containing the
// lowercase hex HMAC-SHA256 of the manifest's bytes under key.
func SignPackManifest(path string, key []byte) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", ferr.Wrap(ferr.IO, "read pack manifest for signing", err)
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	sig := hex.EncodeToString(mac.Sum(nil))
	sigPath := sigPathFor(path)
	if err := os.WriteFile(sigPath, []byte(sig), 0o644); err != nil {
		return "", ferr.Wrap(ferr.IO, "write pack signature", err)
	}
	return sigPath, nil
}

// VerifyPackManifest checks the pack.sig sidecar against key, erroring
// if no signature file exists.
func VerifyPackManifest(path string, key []byte) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, ferr.Wrap(ferr.IO, "read pack manifest for verify", err)
	}
	sigPath := sigPathFor(path)
	sigBytes, err := os.ReadFile(sigPath)
	if err != nil {
		return false, ferr.New(ferr.SignatureInvalid, "pack signature not found")
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	expected := hex.EncodeToString(mac.Sum(nil))
	got := strings.ToLower(strings.TrimSpace(string(sigBytes)))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1, nil
}

// PackSignatureExists reports whether a pack.sig sidecar exists for
// path without attempting to verify it.
func PackSignatureExists(path string) bool {
	_, err := os.Stat(sigPathFor(path))
	return err == nil
}

func sigPathFor(manifestPath string) string {
	ext := filepath.Ext(manifestPath)
	return strings.TrimSuffix(manifestPath, ext) + ".sig"
}
