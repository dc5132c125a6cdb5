// Package core defines the shared record types that flow through the
// workflow engine: the device graph snapshot, workflow definitions,
// and the schema-version constants every loader checks against.
package core

import (
	"time"

	"github.com/google/uuid"
)

// Schema versions are exact-match strings; any mismatch at load time
// is a fatal precondition error, never a best-effort upgrade.
const (
	DeviceGraphSchemaVersion = "1.1.0"
	WorkflowSchemaVersion    = "1.0.0"
	PackSchemaVersion        = "1.0.0"
)

// HostInfo identifies the machine a device graph was captured on.
type HostInfo struct {
	OS        string `json:"os"`
	OSVersion string `json:"os_version"`
	Machine   string `json:"machine"`
}

// Partition is a single filesystem-bearing region of a Disk.
type Partition struct {
	ID          string   `json:"id"`
	Label       string   `json:"label,omitempty"`
	FS          string   `json:"fs,omitempty"`
	SizeBytes   uint64   `json:"size_bytes"`
	MountPoints []string `json:"mount_points"`
}

// Disk is one physical or virtual block device enumerated by a host
// provider, with its partitions and mount state resolved.
type Disk struct {
	ID           string      `json:"id"`
	FriendlyName string      `json:"friendly_name"`
	SizeBytes    uint64      `json:"size_bytes"`
	Removable    bool        `json:"removable"`
	IsSystemDisk bool        `json:"is_system_disk"`
	Partitions   []Partition `json:"partitions"`
}

// DeviceGraph is an immutable snapshot of the host's physical disks.
// It is rebuilt before every destructive operation; nothing caches it
// across steps.
type DeviceGraph struct {
	SchemaVersion  string   `json:"schema_version"`
	GraphID        string   `json:"graph_id"`
	GeneratedAtUTC string   `json:"generated_at_utc"`
	Host           HostInfo `json:"host"`
	Disks          []Disk   `json:"disks"`
}

// NewDeviceGraph stamps a fresh graph_id and schema version over the
// host info and disks produced by a provider.
func NewDeviceGraph(host HostInfo, disks []Disk) DeviceGraph {
	if disks == nil {
		disks = []Disk{}
	}
	return DeviceGraph{
		SchemaVersion:  DeviceGraphSchemaVersion,
		GraphID:        uuid.NewString(),
		GeneratedAtUTC: NowUTCRFC3339(),
		Host:           host,
		Disks:          disks,
	}
}

// DiskByID returns the disk with the given id, if present.
func (g DeviceGraph) DiskByID(id string) (Disk, bool) {
	for _, d := range g.Disks {
		if d.ID == id {
			return d, true
		}
	}
	return Disk{}, false
}

// WorkflowStep is one entry in a WorkflowDefinition. Action is a
// closed string enum checked against the dispatch table at validation
// time; Params is a free-form mapping validated per action.
type WorkflowStep struct {
	ID     string                 `json:"id" yaml:"id"`
	Action string                 `json:"action" yaml:"action"`
	Params map[string]interface{} `json:"params" yaml:"params"`
}

// WorkflowDefinition is a named, ordered sequence of steps.
type WorkflowDefinition struct {
	SchemaVersion string         `json:"schema_version" yaml:"schema_version"`
	Name          string         `json:"name" yaml:"name"`
	Steps         []WorkflowStep `json:"steps" yaml:"steps"`
}

// NowUTCRFC3339 returns the current instant formatted in RFC3339 with
// a UTC offset, the timestamp format used throughout report bundles
// and device graphs.
func NowUTCRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
