// Package legacypatch widens the supported-model and supported-board
// allowlists embedded in a macOS installer app's plists so the
// installer will run on hardware Apple's own installer would refuse.
package legacypatch

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"howett.net/plist"

	"github.com/sigreer/phoenixforge/internal/content"
	"github.com/sigreer/phoenixforge/internal/ferr"
	"github.com/sigreer/phoenixforge/internal/hostgraph"
	"github.com/sigreer/phoenixforge/internal/report"
	"github.com/sigreer/phoenixforge/internal/safety"
)

// Params configures one legacy-patch run.
type Params struct {
	SourcePath        string
	ReportBase        string
	Model             string
	BoardID           string
	Force             bool
	ConfirmationToken string
	DryRun            bool
	SigningKey        []byte
}

// Result reports what the run changed.
type Result struct {
	Report       report.Paths
	PatchedFiles []string
	DryRun       bool
}

var plistCandidates = []string{
	filepath.Join("Contents", "SharedSupport", "PlatformSupport.plist"),
	filepath.Join("Contents", "SharedSupport", "InstallInfo.plist"),
	filepath.Join("Contents", "Resources", "InstallInfo.plist"),
}

var modelKeys = []string{"SupportedModels", "SupportedModelProperties", "SupportedDeviceModels"}
var boardIDKeys = []string{"BoardIDs", "SupportedBoardIDs", "SupportedBoardIds"}

const createInstallMediaRelPath = "Contents/Resources/createinstallmedia"

// Run applies the legacy-compatibility patch to the installer app
// found under params.SourcePath and writes a report bundle describing
// what changed.
func Run(params Params) (Result, error) {
	graph, err := hostgraph.BuildDeviceGraph()
	if err != nil {
		return Result{}, err
	}

	if !params.DryRun {
		decision := safety.CanWriteToDisk(safety.Context{
			ForceMode:         params.Force,
			ConfirmationToken: params.ConfirmationToken,
		}, false)
		if !decision.Allowed {
			return Result{}, ferr.New(ferr.SafetyDenied, decision.Reason)
		}
	}

	prepared, err := content.PrepareSource(params.SourcePath)
	if err != nil {
		return Result{}, err
	}
	defer prepared.Release()

	appRoot, err := findInstallApp(prepared.Root)
	if err != nil {
		return Result{}, err
	}

	model := params.Model
	if model == "" {
		model = "UnknownModel"
	}

	var patched []string
	var logLines []string
	logLines = append(logLines, "workflow=macos-legacy-patch")
	logLines = append(logLines, "source_app="+appRoot)
	logLines = append(logLines, "model="+model)
	if params.BoardID != "" {
		logLines = append(logLines, "board_id="+params.BoardID)
	}

	for _, rel := range plistCandidates {
		path := filepath.Join(appRoot, rel)
		if _, err := os.Stat(path); err != nil {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return Result{}, ferr.Wrap(ferr.IO, "read "+path, err)
		}
		var doc map[string]interface{}
		if _, err := plist.Unmarshal(data, &doc); err != nil {
			return Result{}, ferr.Wrap(ferr.Precondition, "parse "+path, err)
		}

		changed := updatePlistArrays(doc, modelKeys, model)
		if params.BoardID != "" {
			changed = updatePlistArrays(doc, boardIDKeys, params.BoardID) || changed
		}

		if changed {
			if !params.DryRun {
				var buf bytes.Buffer
				enc := plist.NewEncoder(&buf)
				enc.Indent("\t")
				if err := enc.Encode(doc); err != nil {
					return Result{}, ferr.Wrap(ferr.IO, "encode "+path, err)
				}
				if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
					return Result{}, ferr.Wrap(ferr.IO, "write "+path, err)
				}
			}
			patched = append(patched, path)
		}
	}

	logLines = append(logLines, "patches_applied="+strconv.Itoa(len(patched)))

	status := "completed"
	if params.DryRun {
		status = "dry_run"
	}
	meta := map[string]interface{}{
		"workflow":      "macos-legacy-patch",
		"status":        status,
		"patched_files": patched,
		"model":         model,
		"board_id":      params.BoardID,
	}

	rep, err := report.Create(params.ReportBase, graph, meta, strings.Join(logLines, "\n"), nil, params.SigningKey)
	if err != nil {
		return Result{}, err
	}

	return Result{Report: rep, PatchedFiles: patched, DryRun: params.DryRun}, nil
}

// updatePlistArrays appends entry to every array named by keys in doc
// that does not already contain it, creating the array if the key is
// absent. It reports whether any array changed.
func updatePlistArrays(doc map[string]interface{}, keys []string, entry string) bool {
	changed := false
	for _, key := range keys {
		arr, _ := doc[key].([]interface{})
		found := false
		for _, item := range arr {
			if s, ok := item.(string); ok && s == entry {
				found = true
				break
			}
		}
		if !found {
			doc[key] = append(arr, entry)
			changed = true
		}
	}
	return changed
}

func findInstallApp(root string) (string, error) {
	if isInstallApp(root) {
		return root, nil
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", ferr.Wrap(ferr.IO, "read source root", err)
	}
	for _, entry := range entries {
		path := filepath.Join(root, entry.Name())
		if isInstallApp(path) {
			return path, nil
		}
	}
	return "", ferr.New(ferr.Precondition, "install macOS.app not found in source")
}

func isInstallApp(path string) bool {
	if !strings.EqualFold(filepath.Ext(path), ".app") {
		return false
	}
	_, err := os.Stat(filepath.Join(path, createInstallMediaRelPath))
	return err == nil
}

