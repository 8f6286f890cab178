package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/pve-tools/proxmox-mcp-server/pkg/proxmox"
)

// Resource limits enforced before anything reaches the backend. These bound
// what a single tool call may provision, not what the cluster could hold.
const (
	MinCpus    = 1
	MaxCpus    = 32
	MinMemory  = 512    // MiB
	MaxMemory  = 131072 // MiB
	MinDiskGiB = 5
	MaxDiskGiB = 1000
	MinTimeout = 1   // seconds
	MaxTimeout = 600 // seconds
)

// Validator checks OperationRequests against declarative constraints. All
// field violations are collected before reporting so a caller can fix a bad
// request in one round trip instead of one field at a time.
type Validator struct {
	resolver *Resolver
}

func NewValidator(resolver *Resolver) *Validator {
	return &Validator{resolver: resolver}
}

// Validate returns nil or an *OpError. Field constraint failures come back as
// a single ValidationError carrying every violation; preconditions that need
// backend state (id collisions) are checked only after the fields pass.
func (v *Validator) Validate(ctx context.Context, req *OperationRequest) error {
	var violations []FieldViolation
	add := func(field, format string, args ...any) {
		violations = append(violations, FieldViolation{Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	if req.TimeoutSeconds != 0 && (req.TimeoutSeconds < MinTimeout || req.TimeoutSeconds > MaxTimeout) {
		add("timeout_seconds", "must be between %d and %d, got %d", MinTimeout, MaxTimeout, req.TimeoutSeconds)
	}

	switch req.Kind {
	case OpCreate:
		v.validateCreate(req.Create, add)
	case OpDelete, OpPower:
		v.validatePower(req, add)
	case OpSnapshotCreate, OpSnapshotDelete, OpSnapshotRollback:
		v.validateSnapshot(req, add)
	case OpBackupCreate, OpBackupRestore, OpBackupDelete:
		v.validateBackup(req, add)
	case OpIsoDownload, OpIsoDelete:
		v.validateIso(req, add)
	default:
		return newError(ErrValidation, "unknown operation kind %q", req.Kind)
	}

	if len(violations) > 0 {
		return validationError(violations)
	}

	// VM state capture only exists for QEMU guests.
	if req.Snapshot != nil && req.Snapshot.VMState && req.ExpectKind == proxmox.KindContainer {
		return newError(ErrUnsupportedOption, "vmstate capture is not supported for containers")
	}

	if req.Kind == OpCreate {
		inUse, err := v.resolver.Exists(ctx, req.Create.VMID)
		if err != nil {
			return err
		}
		if inUse {
			return newError(ErrConflict, "vmid %d is already in use", req.Create.VMID)
		}
	}
	return nil
}

func (v *Validator) validateCreate(spec *CreateSpec, add func(field, format string, args ...any)) {
	if spec == nil {
		add("create", "missing creation parameters")
		return
	}
	if spec.Node == "" {
		add("node", "is required")
	}
	if spec.VMID < 100 {
		add("vmid", "must be 100 or greater, got %d", spec.VMID)
	}
	if spec.Name == "" {
		add("name", "is required")
	}
	if spec.Cpus < MinCpus || spec.Cpus > MaxCpus {
		add("cpus", "must be between %d and %d, got %d", MinCpus, MaxCpus, spec.Cpus)
	}
	if spec.Memory < MinMemory || spec.Memory > MaxMemory {
		add("memory", "must be between %d and %d MB, got %d", MinMemory, MaxMemory, spec.Memory)
	}
	if spec.DiskSize < MinDiskGiB || spec.DiskSize > MaxDiskGiB {
		add("disk_size", "must be between %d and %d GB, got %d", MinDiskGiB, MaxDiskGiB, spec.DiskSize)
	}
	switch spec.DiskFormat {
	case "", FormatRaw, FormatQcow2:
	default:
		add("format", "must be %q or %q, got %q", FormatRaw, FormatQcow2, spec.DiskFormat)
	}
}

func (v *Validator) validatePower(req *OperationRequest, add func(field, format string, args ...any)) {
	if req.Target == "" {
		add("selector", "is required")
	}
	spec := req.Power
	if spec == nil {
		add("action", "missing power parameters")
		return
	}
	if req.Kind == OpPower {
		switch spec.Action {
		case PowerStart, PowerStop, PowerShutdown, PowerReset, PowerReboot:
		default:
			add("action", "unknown power action %q", spec.Action)
		}
	}
	if spec.TimeoutSeconds != 0 && (spec.TimeoutSeconds < MinTimeout || spec.TimeoutSeconds > MaxTimeout) {
		add("timeout_seconds", "must be between %d and %d, got %d", MinTimeout, MaxTimeout, spec.TimeoutSeconds)
	}
}

func (v *Validator) validateSnapshot(req *OperationRequest, add func(field, format string, args ...any)) {
	if req.Target == "" {
		add("selector", "is required")
	}
	spec := req.Snapshot
	if spec == nil {
		add("snapname", "missing snapshot parameters")
		return
	}
	if spec.Snapname == "" {
		add("snapname", "is required")
	} else if spec.Snapname == "current" {
		add("snapname", "%q is reserved for the live run state", spec.Snapname)
	} else if strings.ContainsAny(spec.Snapname, " /:") {
		add("snapname", "must not contain spaces, slashes or colons")
	}
}

func (v *Validator) validateBackup(req *OperationRequest, add func(field, format string, args ...any)) {
	spec := req.Backup
	if spec == nil {
		add("backup", "missing backup parameters")
		return
	}
	if spec.Node == "" {
		add("node", "is required")
	}
	switch req.Kind {
	case OpBackupCreate:
		if spec.VMID < 100 {
			add("vmid", "must be 100 or greater, got %d", spec.VMID)
		}
	case OpBackupRestore:
		if spec.Archive == "" {
			add("archive", "is required")
		}
		if spec.VMID < 100 {
			add("vmid", "must be 100 or greater, got %d", spec.VMID)
		}
	case OpBackupDelete:
		if spec.VolID == "" {
			add("volid", "is required")
		} else if !strings.Contains(spec.VolID, ":") {
			add("volid", "must be a storage-qualified volume id, got %q", spec.VolID)
		}
	}
}

func (v *Validator) validateIso(req *OperationRequest, add func(field, format string, args ...any)) {
	spec := req.Iso
	if spec == nil {
		add("iso", "missing ISO parameters")
		return
	}
	if spec.Node == "" {
		add("node", "is required")
	}
	if spec.Storage == "" {
		add("storage", "is required")
	}
	switch req.Kind {
	case OpIsoDownload:
		if spec.URL == "" {
			add("url", "is required")
		} else if !strings.HasPrefix(spec.URL, "http://") && !strings.HasPrefix(spec.URL, "https://") {
			add("url", "must be an http(s) URL, got %q", spec.URL)
		}
		if spec.Checksum != "" {
			switch strings.ToLower(spec.ChecksumAlgorithm) {
			case "", "md5", "sha1", "sha224", "sha256", "sha384", "sha512":
			default:
				add("checksum_algorithm", "unknown algorithm %q", spec.ChecksumAlgorithm)
			}
		}
	case OpIsoDelete:
		if spec.Filename == "" {
			add("filename", "is required")
		}
	}
}
