package orchestrator

import (
	"github.com/pve-tools/proxmox-mcp-server/pkg/proxmox"
)

// OpKind tags the operation variants the dispatcher understands.
type OpKind string

const (
	OpCreate           OpKind = "create"
	OpDelete           OpKind = "delete"
	OpPower            OpKind = "power"
	OpSnapshotCreate   OpKind = "snapshot.create"
	OpSnapshotDelete   OpKind = "snapshot.delete"
	OpSnapshotRollback OpKind = "snapshot.rollback"
	OpBackupCreate     OpKind = "backup.create"
	OpBackupRestore    OpKind = "backup.restore"
	OpBackupDelete     OpKind = "backup.delete"
	OpIsoDownload      OpKind = "iso.download"
	OpIsoDelete        OpKind = "iso.delete"
)

// PowerAction is a guest power state transition.
type PowerAction string

const (
	PowerStart    PowerAction = "start"
	PowerStop     PowerAction = "stop"
	PowerShutdown PowerAction = "shutdown"
	PowerReset    PowerAction = "reset"
	PowerReboot   PowerAction = "reboot"
)

// OperationRequest is a tagged union over operation kinds. Exactly one of the
// payload pointers matching Kind is set. Requests are built from caller
// input, validated once and never mutated after validation.
type OperationRequest struct {
	Kind OpKind

	// Target selects the resource the operation acts on, in any selector
	// form the Resolver accepts. Unused by Create/backup/ISO operations
	// that address node+storage directly.
	Target string

	// ExpectKind restricts the target's resource kind; KindAny for
	// operations valid on both.
	ExpectKind proxmox.ResourceKind

	// TimeoutSeconds bounds the task-tracking phase. Zero means the
	// dispatcher default.
	TimeoutSeconds int

	Create   *CreateSpec
	Power    *PowerSpec
	Snapshot *SnapshotSpec
	Backup   *BackupSpec
	Iso      *IsoSpec
}

// CreateSpec carries the parameters for guest creation. Field names mirror
// the tool parameters bit-for-bit.
type CreateSpec struct {
	Node     string `json:"node"`
	VMID     int    `json:"vmid"`
	Name     string `json:"name"`
	Cpus     int    `json:"cpus"`
	Memory   int    `json:"memory"`
	DiskSize int    `json:"disk_size"`
	Storage  string `json:"storage,omitempty"`
	OSType   string `json:"ostype,omitempty"`

	// DiskFormat, when set, overrides the format inferred from the
	// storage profile. The override is validated against the backend
	// class: block-based pools only take raw.
	DiskFormat DiskFormat `json:"format,omitempty"`
}

// PowerSpec parameterizes power transitions and guest deletion.
type PowerSpec struct {
	Action         PowerAction `json:"action"`
	Graceful       bool        `json:"graceful,omitempty"`
	TimeoutSeconds int         `json:"timeout_seconds,omitempty"`
	Force          bool        `json:"force,omitempty"`
}

// SnapshotSpec parameterizes snapshot operations.
type SnapshotSpec struct {
	Snapname    string `json:"snapname"`
	Description string `json:"description,omitempty"`
	VMState     bool   `json:"vmstate,omitempty"`
}

// BackupSpec parameterizes vzdump backup, restore and deletion.
type BackupSpec struct {
	Node     string `json:"node"`
	VMID     int    `json:"vmid,omitempty"`
	Storage  string `json:"storage,omitempty"`
	Compress string `json:"compress,omitempty"`
	Mode     string `json:"mode,omitempty"`
	Notes    string `json:"notes,omitempty"`
	Archive  string `json:"archive,omitempty"`
	Unique   bool   `json:"unique,omitempty"`
	VolID    string `json:"volid,omitempty"`
}

// IsoSpec parameterizes ISO/template download and deletion.
type IsoSpec struct {
	Node              string `json:"node"`
	Storage           string `json:"storage"`
	URL               string `json:"url,omitempty"`
	Filename          string `json:"filename,omitempty"`
	Checksum          string `json:"checksum,omitempty"`
	ChecksumAlgorithm string `json:"checksum_algorithm,omitempty"`
}
