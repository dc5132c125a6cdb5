package workflow

import (
	"path/filepath"
	"testing"

	"github.com/sigreer/phoenixforge/internal/report"
)

func TestReportVerifyRoundTrip(t *testing.T) {
	base := t.TempDir()
	graph := sampleGraph()

	created, err := report.Create(base, graph, map[string]interface{}{"status": "completed"}, "log line", nil, nil)
	if err != nil {
		t.Fatalf("create report: %v", err)
	}

	sc := &stepContext{
		engine: &Engine{},
		graph:  graph,
		step: stepFor("report_verify", map[string]interface{}{
			"path": created.Root,
		}),
	}

	if err := preflightReportVerify(sc); err != nil {
		t.Fatalf("preflight should accept an existing bundle, got %v", err)
	}

	meta, _, err := effectReportVerify(sc)
	if err != nil {
		t.Fatalf("verify should succeed on an untouched bundle, got %v", err)
	}
	if meta["ok"] != true {
		t.Fatalf("expected ok=true, got %+v", meta)
	}
}

func TestReportVerifyDetectsTamperedManifestEntry(t *testing.T) {
	base := t.TempDir()
	graph := sampleGraph()

	created, err := report.Create(base, graph, map[string]interface{}{"status": "completed"}, "log line", nil, nil)
	if err != nil {
		t.Fatalf("create report: %v", err)
	}

	// Corrupt a file named in the manifest without updating its digest.
	logsPath := filepath.Join(created.Root, "logs.txt")
	writeFile(t, logsPath, []byte("tampered"))

	sc := &stepContext{
		engine: &Engine{},
		graph:  graph,
		step: stepFor("report_verify", map[string]interface{}{
			"path": created.Root,
		}),
	}

	if _, _, err := effectReportVerify(sc); err == nil {
		t.Fatal("expected tampered bundle to fail verification")
	}
}

func TestPreflightReportVerifyMissingRoot(t *testing.T) {
	sc := &stepContext{
		step: stepFor("report_verify", map[string]interface{}{
			"path": "/nonexistent/report/root",
		}),
	}
	if err := preflightReportVerify(sc); err == nil {
		t.Fatal("expected missing report root to fail preflight")
	}
}
