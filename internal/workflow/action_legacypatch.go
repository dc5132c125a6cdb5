package workflow

import (
	"github.com/sigreer/phoenixforge/internal/legacypatch"
	"github.com/sigreer/phoenixforge/internal/report"
)

func preflightLegacyPatch(sc *stepContext) error {
	if _, err := requireString(sc.step.Params, sc.step.Action, "source_path"); err != nil {
		return err
	}
	return nil
}

// effectLegacyPatch delegates to legacypatch.Run, which builds its own
// device graph and report bundle; this step's own bundle records the
// nested run alongside its patched-file summary.
func effectLegacyPatch(sc *stepContext) (map[string]interface{}, []report.Artifact, error) {
	sourcePath, _ := stringParam(sc.step.Params, "source_path")
	model, _ := stringParam(sc.step.Params, "model")
	boardID, _ := stringParam(sc.step.Params, "board_id")

	result, err := legacypatch.Run(legacypatch.Params{
		SourcePath:        sourcePath,
		ReportBase:        sc.opts.ReportBase,
		Model:             model,
		BoardID:           boardID,
		Force:             sc.opts.Force,
		ConfirmationToken: sc.opts.ConfirmationToken,
		DryRun:            sc.opts.DryRun,
		SigningKey:        sc.signingKey(),
	})
	if err != nil {
		return nil, nil, err
	}
	sc.log("legacy patch applied to %d plist(s) under %s", len(result.PatchedFiles), sourcePath)

	return map[string]interface{}{
		"patched_files":        result.PatchedFiles,
		"nested_report_root":   result.Report.Root,
		"nested_report_run_id": result.Report.RunID,
	}, nil, nil
}
