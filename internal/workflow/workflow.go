// Package workflow validates and executes workflow definitions and
// packs: per-step preflight, safety-gate authorization, source
// resolution, the action's effect, and report-bundle evidence, run in
// strict declared order with fail-fast-on-first-error semantics.
package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/sigreer/phoenixforge/internal/auditdb"
	"github.com/sigreer/phoenixforge/internal/config"
	"github.com/sigreer/phoenixforge/internal/content"
	"github.com/sigreer/phoenixforge/internal/core"
	"github.com/sigreer/phoenixforge/internal/ferr"
	"github.com/sigreer/phoenixforge/internal/hostgraph"
	"github.com/sigreer/phoenixforge/internal/report"
	"github.com/sigreer/phoenixforge/internal/safety"
)

func firstKind(k ferr.Kind, _ bool) ferr.Kind {
	return k
}

// Engine runs workflow definitions and packs against one configuration.
type Engine struct {
	Config *config.Config
	// AuditDB is optional; when set, every completed step is recorded
	// as a best-effort, non-authoritative index entry.
	AuditDB *auditdb.DB
}

// NewEngine builds an Engine from cfg. db may be nil.
func NewEngine(cfg *config.Config, db *auditdb.DB) *Engine {
	return &Engine{Config: cfg, AuditDB: db}
}

// signingKey returns the configured signing key, or nil when no
// config is set or no key is present in its environment variable.
func (e *Engine) signingKey() []byte {
	if e.Config == nil {
		return nil
	}
	return e.Config.SigningKey()
}

// RunOptions carries the per-run inputs that are not part of any
// step's params: the safety context, dry-run mode, and where report
// bundles are written.
type RunOptions struct {
	Force             bool
	ConfirmationToken string
	DryRun            bool
	ReportBase        string
}

// StepResult summarizes one executed step for the parent report.
type StepResult struct {
	ID         string `json:"id"`
	Action     string `json:"action"`
	DurationMs int64  `json:"duration_ms"`
	ReportRoot string `json:"report_root"`
	Status     string `json:"status"`
}

// RunReport is the outcome of running an entire workflow definition.
type RunReport struct {
	Steps  []StepResult
	Parent report.Paths
}

// stepContext is threaded through one step's preflight and effect.
type stepContext struct {
	engine         *Engine
	graph          core.DeviceGraph
	step           core.WorkflowStep
	opts           RunOptions
	logs           []string
	isSystemTarget bool
	prepared       *content.PreparedSource
}

func (sc *stepContext) log(format string, args ...interface{}) {
	sc.logs = append(sc.logs, fmt.Sprintf(format, args...))
}

func (sc *stepContext) chunkSize() int64 {
	if sc.engine.Config != nil && sc.engine.Config.Imaging.ChunkSizeBytes > 0 {
		return sc.engine.Config.Imaging.ChunkSizeBytes
	}
	return 4 << 20
}

func (sc *stepContext) signingKey() []byte {
	if sc.engine.Config == nil {
		return nil
	}
	return sc.engine.Config.SigningKey()
}

// actionHandler pairs a step's non-authorization checks with its
// effect. Preflight failures never reach the safety gate.
type actionHandler struct {
	preflight func(*stepContext) error
	effect    func(*stepContext) (map[string]interface{}, []report.Artifact, error)
}

var dispatch = map[string]actionHandler{
	"windows_installer_usb": {preflight: preflightWindowsInstallerUSB, effect: effectWindowsInstallerUSB},
	"windows_apply_image":   {preflight: preflightWindowsApplyImage, effect: effectWindowsApplyImage},
	"linux_installer_usb":   {preflight: preflightInstallerUSB("linux"), effect: effectInstallerUSB},
	"macos_installer_usb":   {preflight: preflightInstallerUSB("darwin"), effect: effectInstallerUSB},
	"linux_write_image":     {preflight: preflightWriteImage, effect: effectWriteImage},
	"macos_write_image":     {preflight: preflightWriteImage, effect: effectWriteImage},
	"linux_boot_prep":       {preflight: preflightBootPrep, effect: effectBootPrep},
	"macos_boot_prep":       {preflight: preflightBootPrep, effect: effectBootPrep},
	"stage_bootloader":      {preflight: preflightStageBootloader, effect: effectStageBootloader},
	"macos_kext_stage":      {preflight: preflightKextStage, effect: effectKextStage},
	"macos_legacy_patch":    {preflight: preflightLegacyPatch, effect: effectLegacyPatch},
	"disk_hash_report":      {preflight: preflightDiskHashReport, effect: effectDiskHashReport},
	"report_verify":         {preflight: preflightReportVerify, effect: effectReportVerify},
}

// ValidateDefinition checks schema version and structural rules: step
// ids are non-empty and unique, and every action is recognized.
func ValidateDefinition(def core.WorkflowDefinition) error {
	if def.SchemaVersion != core.WorkflowSchemaVersion {
		return ferr.Newf(ferr.Precondition, "unsupported workflow schema version %s", def.SchemaVersion)
	}
	seen := make(map[string]bool, len(def.Steps))
	for _, step := range def.Steps {
		if step.ID == "" {
			return ferr.New(ferr.Precondition, "workflow step id must not be empty")
		}
		if seen[step.ID] {
			return ferr.Newf(ferr.Precondition, "duplicate step id %s", step.ID)
		}
		seen[step.ID] = true
		if _, ok := dispatch[step.Action]; !ok {
			return ferr.Newf(ferr.Precondition, "unknown action %q on step %s", step.Action, step.ID)
		}
	}
	return nil
}

// RunStep executes one step to completion, writing its report bundle
// on success. No report is written when the step fails.
func (e *Engine) RunStep(step core.WorkflowStep, opts RunOptions) (StepResult, error) {
	start := time.Now()

	handler, ok := dispatch[step.Action]
	if !ok {
		return StepResult{}, ferr.Newf(ferr.Precondition, "unknown action %q", step.Action)
	}

	graph, err := hostgraph.BuildDeviceGraph()
	if err != nil {
		return StepResult{}, err
	}

	sc := &stepContext{engine: e, graph: graph, step: step, opts: opts}
	sc.log("workflow_step=%s action=%s", step.ID, step.Action)

	if err := handler.preflight(sc); err != nil {
		return StepResult{}, err
	}

	if !opts.DryRun {
		decision := safety.CanWriteToDisk(safety.Context{
			ForceMode:         opts.Force,
			ConfirmationToken: opts.ConfirmationToken,
		}, sc.isSystemTarget)
		if !decision.Allowed {
			return StepResult{}, ferr.New(ferr.SafetyDenied, decision.Reason)
		}
	}

	defer func() {
		if sc.prepared != nil {
			sc.prepared.Release()
		}
	}()

	meta, artifacts, err := handler.effect(sc)
	if err != nil {
		return StepResult{}, err
	}
	if meta == nil {
		meta = map[string]interface{}{}
	}

	status := "completed"
	if opts.DryRun {
		status = "dry_run"
	}
	meta["status"] = status
	meta["action"] = step.Action
	meta["step_id"] = step.ID

	rep, err := report.Create(opts.ReportBase, graph, meta, strings.Join(sc.logs, "\n"), artifacts, sc.signingKey())
	if err != nil {
		return StepResult{}, err
	}

	result := StepResult{
		ID:         step.ID,
		Action:     step.Action,
		DurationMs: time.Since(start).Milliseconds(),
		ReportRoot: rep.Root,
		Status:     status,
	}

	if e.AuditDB != nil {
		_ = e.AuditDB.RecordRun(auditdb.Run{
			RunID:        rep.RunID,
			Action:       step.Action,
			Target:       step.ID,
			Status:       status,
			ReportRoot:   rep.Root,
			CreatedAtUTC: core.NowUTCRFC3339(),
		})
	}

	return result, nil
}

// RunDefinition runs every step of def in order, aborting on the
// first failure. On full success it writes a parent report
// enumerating every step result; on failure it writes no parent
// report and returns the first error.
func (e *Engine) RunDefinition(def core.WorkflowDefinition, opts RunOptions) (RunReport, error) {
	if err := ValidateDefinition(def); err != nil {
		return RunReport{}, err
	}

	graph, err := hostgraph.BuildDeviceGraph()
	if err != nil {
		return RunReport{}, err
	}

	var results []StepResult
	for _, step := range def.Steps {
		result, err := e.RunStep(step, opts)
		if err != nil {
			return RunReport{}, ferr.Wrap(firstKind(ferr.KindOf(err)), fmt.Sprintf("step %s failed", step.ID), err)
		}
		results = append(results, result)
	}

	stepsMeta := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		stepsMeta = append(stepsMeta, map[string]interface{}{
			"id":          r.ID,
			"action":      r.Action,
			"duration_ms": r.DurationMs,
			"report_root": r.ReportRoot,
			"status":      r.Status,
		})
	}
	meta := map[string]interface{}{
		"workflow": def.Name,
		"steps":    stepsMeta,
	}

	parent, err := report.Create(opts.ReportBase, graph, meta, "workflow_definition="+def.Name, nil, e.signingKey())
	if err != nil {
		return RunReport{}, err
	}

	return RunReport{Steps: results, Parent: parent}, nil
}

// RunPack validates the pack manifest, verifies its signature when
// signingKey is non-nil and pack.sig is present, resolves and runs
// every referenced workflow, and writes a pack-level parent report.
func (e *Engine) RunPack(manifestPath string, opts RunOptions, signingKey []byte) (RunReport, error) {
	manifest, err := content.LoadPackManifest(manifestPath)
	if err != nil {
		return RunReport{}, err
	}

	if signingKey != nil && content.PackSignatureExists(manifestPath) {
		ok, err := content.VerifyPackManifest(manifestPath, signingKey)
		if err != nil {
			return RunReport{}, err
		}
		if !ok {
			return RunReport{}, ferr.New(ferr.SignatureInvalid, "pack signature does not match")
		}
	}

	resolved, err := content.ResolvePackWorkflows(manifestPath)
	if err != nil {
		return RunReport{}, err
	}

	graph, err := hostgraph.BuildDeviceGraph()
	if err != nil {
		return RunReport{}, err
	}

	var workflowReports []RunReport
	for _, rw := range resolved {
		rr, err := e.RunDefinition(rw.Definition, opts)
		if err != nil {
			return RunReport{}, ferr.Wrap(firstKind(ferr.KindOf(err)), fmt.Sprintf("workflow %s failed", rw.Path), err)
		}
		workflowReports = append(workflowReports, rr)
	}

	workflowMeta := make([]map[string]interface{}, 0, len(workflowReports))
	for i, rr := range workflowReports {
		workflowMeta = append(workflowMeta, map[string]interface{}{
			"path":        resolved[i].Path,
			"report_root": rr.Parent.Root,
		})
	}
	meta := map[string]interface{}{
		"pack":      manifest.Name,
		"version":   manifest.Version,
		"workflows": workflowMeta,
	}

	parent, err := report.Create(opts.ReportBase, graph, meta, "pack="+manifest.Name, nil, e.signingKey())
	if err != nil {
		return RunReport{}, err
	}

	var allSteps []StepResult
	for _, rr := range workflowReports {
		allSteps = append(allSteps, rr.Steps...)
	}

	return RunReport{Steps: allSteps, Parent: parent}, nil
}
