package orchestrator

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/pve-tools/proxmox-mcp-server/pkg/proxmox"
)

// dispatchState names the phases an operation passes through. Transitions are
// strictly forward; a failure in any phase jumps straight to terminal.
type dispatchState string

const (
	stateValidated dispatchState = "validated"
	stateResolving dispatchState = "resolving"
	stateSubmitted dispatchState = "submitted"
	stateTracking  dispatchState = "tracking"
	stateTerminal  dispatchState = "terminal"
)

// submission is a prepared backend call: the node it runs on, the result
// payload to report on success and the closure that performs the submit.
type submission struct {
	node    string
	payload map[string]any
	submit  func(ctx context.Context) (string, error)
}

// Dispatcher drives operations through validation, resolution, submission and
// task tracking. It owns the single submission retry: a submit that failed
// before the backend answered is retried exactly once, anything the backend
// rejected is final.
type Dispatcher struct {
	client         proxmox.Client
	resolver       *Resolver
	detector       *StorageDetector
	validator      *Validator
	tracker        *Tracker
	defaultTimeout time.Duration
}

func NewDispatcher(client proxmox.Client) *Dispatcher {
	resolver := NewResolver(client)
	return &Dispatcher{
		client:         client,
		resolver:       resolver,
		detector:       NewStorageDetector(client),
		validator:      NewValidator(resolver),
		tracker:        NewTracker(client),
		defaultTimeout: DefaultTaskTimeout,
	}
}

// SetDefaultTimeout overrides the task tracking timeout used when a request
// carries no explicit timeout_seconds. Non-positive values keep the current
// default.
func (d *Dispatcher) SetDefaultTimeout(timeout time.Duration) {
	if timeout > 0 {
		d.defaultTimeout = timeout
	}
}

// DefaultTimeout returns the effective default task tracking timeout.
func (d *Dispatcher) DefaultTimeout() time.Duration {
	return d.defaultTimeout
}

// Resolver exposes the dispatcher's resolver for read-only tools that need
// selector resolution without dispatching an operation.
func (d *Dispatcher) Resolver() *Resolver {
	return d.resolver
}

// Detector exposes the storage profile detector.
func (d *Dispatcher) Detector() *StorageDetector {
	return d.detector
}

// Dispatch runs one operation to a terminal outcome. Dispatch never returns a
// Go error: every failure mode is normalized into the outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, req *OperationRequest) *OperationOutcome {
	state := stateValidated
	if err := d.validator.Validate(ctx, req); err != nil {
		return failed(err)
	}
	klog.V(4).Infof("dispatch %s: %s", req.Kind, state)

	state = stateResolving
	klog.V(4).Infof("dispatch %s: %s", req.Kind, state)
	sub, err := d.prepare(ctx, req)
	if err != nil {
		return failed(err)
	}

	state = stateSubmitted
	klog.V(4).Infof("dispatch %s: %s on node %s", req.Kind, state, sub.node)
	upid, err := d.submit(ctx, req.Kind, sub)
	if err != nil {
		return failed(err)
	}
	if upid == "" {
		// The backend completed synchronously, nothing to track.
		return succeeded(sub.payload, nil)
	}
	sub.payload["upid"] = upid

	state = stateTracking
	klog.V(4).Infof("dispatch %s: %s task %s", req.Kind, state, upid)
	handle := TaskHandle{Node: sub.node, UPID: upid, SubmittedAt: time.Now()}
	timeout := d.timeoutFor(req)
	status, opErr := d.tracker.Track(ctx, handle, timeout)

	if opErr != nil && req.Kind == OpSnapshotRollback && isChildSnapshotError(opErr) {
		status, opErr = d.retryRollbackWithoutChildren(ctx, req, sub, timeout)
	}

	state = stateTerminal
	klog.V(4).Infof("dispatch %s: %s", req.Kind, state)
	if opErr != nil {
		if opErr.Kind == ErrTimedOut {
			return timedOut(opErr, status)
		}
		outcome := failed(opErr)
		outcome.Task = status
		return outcome
	}
	return succeeded(sub.payload, status)
}

// submit performs the prepared backend call with the single transport-level
// retry. Errors carrying a backend response are never retried.
func (d *Dispatcher) submit(ctx context.Context, kind OpKind, sub *submission) (string, error) {
	upid, err := sub.submit(ctx)
	if err == nil {
		return upid, nil
	}
	if !proxmox.IsTransient(err) {
		return "", classifyBackendError(err)
	}
	klog.Warningf("submission of %s failed in transit (%v), retrying once", kind, err)
	upid, err = sub.submit(ctx)
	if err != nil {
		return "", classifyBackendError(err)
	}
	return upid, nil
}

func (d *Dispatcher) timeoutFor(req *OperationRequest) time.Duration {
	if req.TimeoutSeconds > 0 {
		return time.Duration(req.TimeoutSeconds) * time.Second
	}
	return d.defaultTimeout
}

// prepare resolves the request's target and builds the backend submission.
func (d *Dispatcher) prepare(ctx context.Context, req *OperationRequest) (*submission, error) {
	switch req.Kind {
	case OpCreate:
		return d.prepareCreate(ctx, req.Create)
	case OpDelete:
		return d.prepareDelete(ctx, req)
	case OpPower:
		return d.preparePower(ctx, req)
	case OpSnapshotCreate, OpSnapshotDelete, OpSnapshotRollback:
		return d.prepareSnapshot(ctx, req)
	case OpBackupCreate:
		return d.prepareBackupCreate(req.Backup)
	case OpBackupRestore:
		return d.prepareBackupRestore(req.Backup)
	case OpBackupDelete:
		return d.prepareBackupDelete(ctx, req.Backup)
	case OpIsoDownload:
		return d.prepareIsoDownload(req.Iso)
	case OpIsoDelete:
		return d.prepareIsoDelete(req.Iso)
	}
	return nil, newError(ErrValidation, "unknown operation kind %q", req.Kind)
}

func (d *Dispatcher) prepareCreate(ctx context.Context, spec *CreateSpec) (*submission, error) {
	var profile StorageProfile
	var err error
	if spec.Storage == "" {
		profile, err = d.detector.AutoSelect(ctx, spec.Node)
	} else {
		profile, err = d.detector.Detect(ctx, spec.Node, spec.Storage)
	}
	if err != nil {
		return nil, err
	}

	format := profile.DiskFormat
	if spec.DiskFormat != "" {
		if profile.Class == BlockBased && spec.DiskFormat != FormatRaw {
			return nil, newError(ErrUnsupportedOption,
				"storage pool %q is block-based and only supports raw disks, not %s", profile.Pool, spec.DiskFormat)
		}
		format = spec.DiskFormat
	}

	ostype := spec.OSType
	if ostype == "" {
		ostype = "l26"
	}

	params := url.Values{}
	params.Set("vmid", strconv.Itoa(spec.VMID))
	params.Set("name", spec.Name)
	params.Set("cores", strconv.Itoa(spec.Cpus))
	params.Set("memory", strconv.Itoa(spec.Memory))
	params.Set("ostype", ostype)
	params.Set("net0", "virtio,bridge=vmbr0")
	params.Set("scsihw", "virtio-scsi-pci")
	params.Set("scsi0", fmt.Sprintf("%s:%d,format=%s", profile.Pool, spec.DiskSize, format))

	return &submission{
		node: spec.Node,
		payload: map[string]any{
			"vmid":    spec.VMID,
			"name":    spec.Name,
			"node":    spec.Node,
			"storage": profile.Pool,
			"format":  string(format),
		},
		submit: func(ctx context.Context) (string, error) {
			return d.client.CreateGuest(ctx, spec.Node, proxmox.KindVM, params)
		},
	}, nil
}

func (d *Dispatcher) prepareDelete(ctx context.Context, req *OperationRequest) (*submission, error) {
	ref, err := d.resolver.Resolve(ctx, req.Target, req.ExpectKind)
	if err != nil {
		return nil, err
	}

	// A running guest cannot be deleted. With force set we stop it first
	// and wait for the stop to land; without force the backend's own
	// rejection comes back as a conflict.
	if req.Power != nil && req.Power.Force {
		if err := d.forceStop(ctx, ref, d.timeoutFor(req)); err != nil {
			return nil, err
		}
	}

	params := url.Values{}
	params.Set("purge", "1")
	params.Set("destroy-unreferenced-disks", "1")

	return &submission{
		node:    ref.Node,
		payload: refPayload(ref),
		submit: func(ctx context.Context) (string, error) {
			return d.client.DeleteGuest(ctx, ref.Node, ref.Kind, ref.ID, params)
		},
	}, nil
}

// forceStop stops a running guest and tracks the stop task before the caller
// proceeds.
func (d *Dispatcher) forceStop(ctx context.Context, ref ResourceRef, timeout time.Duration) error {
	status, err := d.client.GetGuestStatus(ctx, ref.Node, ref.Kind, ref.ID)
	if err != nil {
		return classifyBackendError(err)
	}
	if status.Status != "running" {
		return nil
	}
	klog.V(2).Infof("force stopping %s before deletion", ref)
	upid, err := d.client.GuestAction(ctx, ref.Node, ref.Kind, ref.ID, "stop", nil)
	if err != nil {
		return classifyBackendError(err)
	}
	if upid == "" {
		return nil
	}
	handle := TaskHandle{Node: ref.Node, UPID: upid, SubmittedAt: time.Now()}
	if _, opErr := d.tracker.Track(ctx, handle, timeout); opErr != nil {
		return opErr
	}
	return nil
}

func (d *Dispatcher) preparePower(ctx context.Context, req *OperationRequest) (*submission, error) {
	ref, err := d.resolver.Resolve(ctx, req.Target, req.ExpectKind)
	if err != nil {
		return nil, err
	}
	spec := req.Power

	action := spec.Action
	if action == PowerStop && spec.Graceful {
		action = PowerShutdown
	}
	if action == PowerReset && ref.Kind == proxmox.KindContainer {
		return nil, newError(ErrUnsupportedOption, "reset is not supported for containers, use reboot")
	}

	params := url.Values{}
	switch action {
	case PowerShutdown, PowerReboot:
		if spec.TimeoutSeconds > 0 {
			params.Set("timeout", strconv.Itoa(spec.TimeoutSeconds))
		}
	}

	payload := refPayload(ref)
	payload["action"] = string(action)

	return &submission{
		node:    ref.Node,
		payload: payload,
		submit: func(ctx context.Context) (string, error) {
			return d.client.GuestAction(ctx, ref.Node, ref.Kind, ref.ID, string(action), params)
		},
	}, nil
}

func (d *Dispatcher) prepareSnapshot(ctx context.Context, req *OperationRequest) (*submission, error) {
	ref, err := d.resolver.Resolve(ctx, req.Target, req.ExpectKind)
	if err != nil {
		return nil, err
	}
	spec := req.Snapshot

	if spec.VMState && ref.Kind == proxmox.KindContainer {
		return nil, newError(ErrUnsupportedOption, "vmstate capture is not supported for containers")
	}

	payload := refPayload(ref)
	payload["snapname"] = spec.Snapname

	sub := &submission{node: ref.Node, payload: payload}
	switch req.Kind {
	case OpSnapshotCreate:
		params := url.Values{}
		params.Set("snapname", spec.Snapname)
		if spec.Description != "" {
			params.Set("description", spec.Description)
		}
		if spec.VMState {
			params.Set("vmstate", "1")
		}
		sub.submit = func(ctx context.Context) (string, error) {
			return d.client.CreateSnapshot(ctx, ref.Node, ref.Kind, ref.ID, params)
		}
	case OpSnapshotDelete:
		sub.submit = func(ctx context.Context) (string, error) {
			return d.client.DeleteSnapshot(ctx, ref.Node, ref.Kind, ref.ID, spec.Snapname)
		}
	case OpSnapshotRollback:
		sub.submit = func(ctx context.Context) (string, error) {
			return d.client.RollbackSnapshot(ctx, ref.Node, ref.Kind, ref.ID, spec.Snapname)
		}
	}
	return sub, nil
}

func (d *Dispatcher) prepareBackupCreate(spec *BackupSpec) (*submission, error) {
	compress := spec.Compress
	if compress == "" {
		compress = "zstd"
	}
	mode := spec.Mode
	if mode == "" {
		mode = "snapshot"
	}

	params := url.Values{}
	params.Set("vmid", strconv.Itoa(spec.VMID))
	params.Set("compress", compress)
	params.Set("mode", mode)
	if spec.Storage != "" {
		params.Set("storage", spec.Storage)
	}
	if spec.Notes != "" {
		params.Set("notes-template", spec.Notes)
	}

	return &submission{
		node: spec.Node,
		payload: map[string]any{
			"vmid":     spec.VMID,
			"node":     spec.Node,
			"storage":  spec.Storage,
			"compress": compress,
			"mode":     mode,
		},
		submit: func(ctx context.Context) (string, error) {
			return d.client.CreateBackup(ctx, spec.Node, params)
		},
	}, nil
}

func (d *Dispatcher) prepareBackupRestore(spec *BackupSpec) (*submission, error) {
	// The archive name encodes the guest kind it was taken from.
	kind := proxmox.KindVM
	if strings.Contains(spec.Archive, "vzdump-lxc") {
		kind = proxmox.KindContainer
	}

	params := url.Values{}
	params.Set("vmid", strconv.Itoa(spec.VMID))
	if spec.Storage != "" {
		params.Set("storage", spec.Storage)
	}
	if spec.Unique {
		params.Set("unique", "1")
	}
	if kind == proxmox.KindContainer {
		params.Set("ostemplate", spec.Archive)
		params.Set("restore", "1")
	} else {
		params.Set("archive", spec.Archive)
	}

	return &submission{
		node: spec.Node,
		payload: map[string]any{
			"vmid":    spec.VMID,
			"node":    spec.Node,
			"archive": spec.Archive,
			"kind":    kind.Display(),
		},
		submit: func(ctx context.Context) (string, error) {
			return d.client.CreateGuest(ctx, spec.Node, kind, params)
		},
	}, nil
}

func (d *Dispatcher) prepareBackupDelete(ctx context.Context, spec *BackupSpec) (*submission, error) {
	storage, _, _ := strings.Cut(spec.VolID, ":")

	// Protected archives must be unprotected by hand first; refusing here
	// beats a cryptic backend failure.
	items, err := d.client.ListStorageContent(ctx, spec.Node, storage, "backup", 0)
	if err != nil {
		return nil, classifyBackendError(err)
	}
	found := false
	for _, item := range items {
		if item.VolID != spec.VolID {
			continue
		}
		found = true
		if item.Protected != 0 {
			return nil, newError(ErrConflict, "backup %s is protected, remove protection before deleting", spec.VolID)
		}
	}
	if !found {
		return nil, newError(ErrNotFound, "backup %s not found on node %s", spec.VolID, spec.Node)
	}

	return &submission{
		node: spec.Node,
		payload: map[string]any{
			"volid": spec.VolID,
			"node":  spec.Node,
		},
		submit: func(ctx context.Context) (string, error) {
			return d.client.DeleteVolume(ctx, spec.Node, storage, spec.VolID)
		},
	}, nil
}

func (d *Dispatcher) prepareIsoDownload(spec *IsoSpec) (*submission, error) {
	filename := spec.Filename
	if filename == "" {
		if u, err := url.Parse(spec.URL); err == nil {
			filename = path.Base(u.Path)
		}
	}
	if filename == "" || filename == "." || filename == "/" {
		return nil, newError(ErrValidation, "cannot derive a filename from %q, pass filename explicitly", spec.URL)
	}

	params := url.Values{}
	params.Set("content", "iso")
	params.Set("filename", filename)
	params.Set("url", spec.URL)
	if spec.Checksum != "" {
		algorithm := strings.ToLower(spec.ChecksumAlgorithm)
		if algorithm == "" {
			algorithm = "sha256"
		}
		params.Set("checksum", spec.Checksum)
		params.Set("checksum-algorithm", algorithm)
	}

	return &submission{
		node: spec.Node,
		payload: map[string]any{
			"node":     spec.Node,
			"storage":  spec.Storage,
			"filename": filename,
			"url":      spec.URL,
		},
		submit: func(ctx context.Context) (string, error) {
			return d.client.DownloadURL(ctx, spec.Node, spec.Storage, params)
		},
	}, nil
}

func (d *Dispatcher) prepareIsoDelete(spec *IsoSpec) (*submission, error) {
	volid := spec.Filename
	if !strings.Contains(volid, ":") {
		volid = spec.Storage + ":iso/" + spec.Filename
	}

	return &submission{
		node: spec.Node,
		payload: map[string]any{
			"node":  spec.Node,
			"volid": volid,
		},
		submit: func(ctx context.Context) (string, error) {
			return d.client.DeleteVolume(ctx, spec.Node, spec.Storage, volid)
		},
	}, nil
}

// isChildSnapshotError matches ZFS refusing to roll back past descendant
// snapshots.
func isChildSnapshotError(err *OpError) bool {
	detail := strings.ToLower(err.Detail)
	if backend, ok := err.Backend.(*proxmox.TaskStatus); ok {
		detail += " " + strings.ToLower(backend.ExitStatus)
	}
	return strings.Contains(detail, "more recent") || strings.Contains(detail, "child") ||
		(strings.Contains(detail, "zfs") && strings.Contains(detail, "rollback"))
}

// retryRollbackWithoutChildren deletes every snapshot taken after the
// rollback target and retries the rollback once. ZFS cannot roll back a
// dataset while newer snapshots of it exist.
func (d *Dispatcher) retryRollbackWithoutChildren(ctx context.Context, req *OperationRequest, sub *submission, timeout time.Duration) (*proxmox.TaskStatus, *OpError) {
	ref, err := d.resolver.Resolve(ctx, req.Target, req.ExpectKind)
	if err != nil {
		return nil, AsOpError(err)
	}
	target := req.Snapshot.Snapname

	snapshots, err := d.client.ListSnapshots(ctx, ref.Node, ref.Kind, ref.ID)
	if err != nil {
		return nil, classifyBackendError(err)
	}
	descendants := descendantSnapshots(snapshots, target)
	if len(descendants) == 0 {
		return nil, newError(ErrBackend, "rollback to %q failed and no descendant snapshots were found to remove", target)
	}

	for _, name := range descendants {
		klog.V(2).Infof("removing descendant snapshot %q of %s before rollback to %q", name, ref, target)
		upid, err := d.client.DeleteSnapshot(ctx, ref.Node, ref.Kind, ref.ID, name)
		if err != nil {
			return nil, classifyBackendError(err)
		}
		if upid == "" {
			continue
		}
		handle := TaskHandle{Node: ref.Node, UPID: upid, SubmittedAt: time.Now()}
		if _, opErr := d.tracker.Track(ctx, handle, timeout); opErr != nil {
			return nil, opErr
		}
	}

	upid, err := sub.submit(ctx)
	if err != nil {
		return nil, classifyBackendError(err)
	}
	if upid == "" {
		return nil, nil
	}
	sub.payload["upid"] = upid
	handle := TaskHandle{Node: ref.Node, UPID: upid, SubmittedAt: time.Now()}
	return d.tracker.Track(ctx, handle, timeout)
}

// descendantSnapshots walks the parent links and returns, newest first, every
// snapshot descending from target. The synthetic "current" entry is skipped.
func descendantSnapshots(snapshots []proxmox.Snapshot, target string) []string {
	children := make(map[string][]string)
	for _, snap := range snapshots {
		if snap.Name == "current" {
			continue
		}
		children[snap.Parent] = append(children[snap.Parent], snap.Name)
	}

	var ordered []string
	var walk func(name string)
	walk = func(name string) {
		for _, child := range children[name] {
			walk(child)
			ordered = append(ordered, child)
		}
	}
	walk(target)
	return ordered
}

func refPayload(ref ResourceRef) map[string]any {
	payload := map[string]any{
		"vmid": ref.ID,
		"node": ref.Node,
		"kind": ref.Kind.Display(),
	}
	if ref.Name != "" {
		payload["name"] = ref.Name
	}
	return payload
}
