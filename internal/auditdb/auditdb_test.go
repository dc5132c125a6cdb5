package auditdb

import (
	"path/filepath"
	"testing"
)

func TestRecordAndLookupRun(t *testing.T) {
	dir := t.TempDir()
	db, err := New(filepath.Join(dir, "audit.sqlite"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer db.Close()

	run := Run{
		RunID:        "11111111-1111-1111-1111-111111111111",
		Action:       "disk_hash_report",
		Target:       "disk0",
		Status:       "completed",
		ReportRoot:   "/tmp/reports/run1",
		CreatedAtUTC: "2026-01-01T00:00:00Z",
	}
	if err := db.RecordRun(run); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	got, ok, err := db.RunByID(run.RunID)
	if err != nil {
		t.Fatalf("RunByID: %v", err)
	}
	if !ok {
		t.Fatal("expected run to be found")
	}
	if got != run {
		t.Errorf("RunByID = %+v, want %+v", got, run)
	}
}

func TestRecordRunUpsertsOnConflict(t *testing.T) {
	dir := t.TempDir()
	db, err := New(filepath.Join(dir, "audit.sqlite"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer db.Close()

	run := Run{RunID: "r1", Action: "a", Status: "dry_run", ReportRoot: "/r1", CreatedAtUTC: "t0"}
	if err := db.RecordRun(run); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	run.Status = "completed"
	if err := db.RecordRun(run); err != nil {
		t.Fatalf("RecordRun update: %v", err)
	}

	got, _, err := db.RunByID("r1")
	if err != nil {
		t.Fatalf("RunByID: %v", err)
	}
	if got.Status != "completed" {
		t.Errorf("status = %s, want completed", got.Status)
	}
}

func TestRunsByAction(t *testing.T) {
	dir := t.TempDir()
	db, err := New(filepath.Join(dir, "audit.sqlite"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer db.Close()

	for i, id := range []string{"r1", "r2"} {
		_ = i
		if err := db.RecordRun(Run{RunID: id, Action: "disk_hash_report", Status: "completed", ReportRoot: "/" + id, CreatedAtUTC: "t" + id}); err != nil {
			t.Fatalf("RecordRun: %v", err)
		}
	}

	runs, err := db.RunsByAction("disk_hash_report")
	if err != nil {
		t.Fatalf("RunsByAction: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 runs, got %d", len(runs))
	}
}
