package workflow

import (
	"testing"

	"github.com/sigreer/phoenixforge/internal/core"
)

func sampleGraph() core.DeviceGraph {
	return core.DeviceGraph{
		SchemaVersion: core.DeviceGraphSchemaVersion,
		GraphID:       "test-graph",
		Disks: []core.Disk{
			{
				ID:           "/dev/sda",
				FriendlyName: "System NVMe",
				SizeBytes:    512 << 30,
				Removable:    false,
				IsSystemDisk: true,
			},
			{
				ID:           "/dev/sdb",
				FriendlyName: "USB Flash Drive",
				SizeBytes:    32 << 30,
				Removable:    true,
				IsSystemDisk: false,
				Partitions: []core.Partition{
					{ID: "/dev/sdb1", FS: "FAT32", MountPoints: []string{"/media/usb"}},
				},
			},
		},
	}
}

func TestValidateDefinitionDuplicateStepID(t *testing.T) {
	def := core.WorkflowDefinition{
		SchemaVersion: core.WorkflowSchemaVersion,
		Name:          "dup",
		Steps: []core.WorkflowStep{
			{ID: "step-1", Action: "disk_hash_report", Params: map[string]interface{}{"disk_id": "/dev/sdb"}},
			{ID: "step-1", Action: "report_verify", Params: map[string]interface{}{"path": "/tmp/x"}},
		},
	}
	if err := ValidateDefinition(def); err == nil {
		t.Fatal("expected duplicate step id to fail validation")
	}
}

func TestValidateDefinitionUnknownAction(t *testing.T) {
	def := core.WorkflowDefinition{
		SchemaVersion: core.WorkflowSchemaVersion,
		Name:          "bad-action",
		Steps: []core.WorkflowStep{
			{ID: "step-1", Action: "teleport_disk"},
		},
	}
	if err := ValidateDefinition(def); err == nil {
		t.Fatal("expected unknown action to fail validation")
	}
}

func TestValidateDefinitionRejectsWrongSchemaVersion(t *testing.T) {
	def := core.WorkflowDefinition{SchemaVersion: "0.0.1", Name: "old"}
	if err := ValidateDefinition(def); err == nil {
		t.Fatal("expected schema version mismatch to fail validation")
	}
}

func TestValidateDefinitionAcceptsWellFormed(t *testing.T) {
	def := core.WorkflowDefinition{
		SchemaVersion: core.WorkflowSchemaVersion,
		Name:          "good",
		Steps: []core.WorkflowStep{
			{ID: "step-1", Action: "disk_hash_report", Params: map[string]interface{}{"disk_id": "/dev/sdb"}},
			{ID: "step-2", Action: "report_verify", Params: map[string]interface{}{"path": "/tmp/x"}},
		},
	}
	if err := ValidateDefinition(def); err != nil {
		t.Fatalf("expected well-formed definition to validate, got %v", err)
	}
}

func TestResolveWritableDiskByIDRejectsSystemDisk(t *testing.T) {
	graph := sampleGraph()
	if _, err := resolveWritableDiskByID(graph, "/dev/sda"); err == nil {
		t.Fatal("expected system disk to be rejected as a destructive target")
	}
}

func TestResolveWritableDiskByIDAcceptsRemovable(t *testing.T) {
	graph := sampleGraph()
	disk, err := resolveWritableDiskByID(graph, "/dev/sdb")
	if err != nil {
		t.Fatalf("expected removable non-system disk to resolve, got %v", err)
	}
	if disk.ID != "/dev/sdb" {
		t.Fatalf("resolved wrong disk: %+v", disk)
	}
}

func TestResolveWritableDiskByMountNormalizesWindowsDriveLetter(t *testing.T) {
	graph := sampleGraph()
	graph.Disks[1].Partitions[0].MountPoints = []string{"E:"}
	disk, err := resolveWritableDiskByMount(graph, "e:\\")
	if err != nil {
		t.Fatalf("expected case/slash-insensitive drive letter match, got %v", err)
	}
	if disk.ID != "/dev/sdb" {
		t.Fatalf("resolved wrong disk: %+v", disk)
	}
}

func TestResolveWritableDiskByMountUnknownMountPoint(t *testing.T) {
	graph := sampleGraph()
	if _, err := resolveWritableDiskByMount(graph, "/media/nonexistent"); err == nil {
		t.Fatal("expected unknown mount point to error")
	}
}
