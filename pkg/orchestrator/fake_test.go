package orchestrator

import (
	"context"
	"net/url"

	"github.com/pve-tools/proxmox-mcp-server/pkg/proxmox"
)

// fakeClient is an in-memory proxmox.Client. Inventory is served from the
// struct fields, submissions record their parameters and return canned UPIDs,
// and task polling answers from taskResults keyed by UPID.
type fakeClient struct {
	resources []proxmox.ClusterResource
	pools     []proxmox.StoragePool
	snapshots []proxmox.Snapshot
	content   []proxmox.VolumeItem

	guestStatus proxmox.GuestStatus
	statusErr   error

	// submitErrs is popped once per submission attempt; a nil entry means
	// the attempt succeeds.
	submitErrs []error
	// submitUPIDs is popped once per successful submission; when exhausted
	// submissions complete synchronously (empty UPID).
	submitUPIDs []string

	// taskResults maps UPID to the terminal status GetTaskStatus reports.
	// A missing entry keeps the task running forever.
	taskResults map[string]proxmox.TaskStatus
	taskErr     error

	submissions      int
	createdParams    []url.Values
	deletedGuests    []int
	deleteParams     url.Values
	actions          []string
	actionParams     []url.Values
	snapshotParams   []url.Values
	deletedSnapshots []string
	rollbacks        []string
	backupParams     []url.Values
	deletedVolumes   []string
	downloadParams   []url.Values
}

var _ proxmox.Client = (*fakeClient)(nil)

func (f *fakeClient) submit(upidIfUnset string) (string, error) {
	f.submissions++
	if len(f.submitErrs) > 0 {
		err := f.submitErrs[0]
		f.submitErrs = f.submitErrs[1:]
		if err != nil {
			return "", err
		}
	}
	if len(f.submitUPIDs) > 0 {
		upid := f.submitUPIDs[0]
		f.submitUPIDs = f.submitUPIDs[1:]
		return upid, nil
	}
	return upidIfUnset, nil
}

func (f *fakeClient) Version(ctx context.Context) (string, error) {
	return "8.2.4", nil
}

func (f *fakeClient) ListNodes(ctx context.Context) ([]proxmox.Node, error) {
	return nil, nil
}

func (f *fakeClient) GetNodeStatus(ctx context.Context, node string) (*proxmox.NodeStatus, error) {
	return &proxmox.NodeStatus{}, nil
}

func (f *fakeClient) GetClusterStatus(ctx context.Context) ([]proxmox.ClusterStatusEntry, error) {
	return nil, nil
}

func (f *fakeClient) ListStoragePools(ctx context.Context) ([]proxmox.StoragePool, error) {
	return f.pools, nil
}

func (f *fakeClient) GetStorageStatus(ctx context.Context, node, storage string) (*proxmox.StorageStatus, error) {
	return &proxmox.StorageStatus{}, nil
}

func (f *fakeClient) ListStorageContent(ctx context.Context, node, storage, content string, vmid int) ([]proxmox.VolumeItem, error) {
	return f.content, nil
}

func (f *fakeClient) ListClusterResources(ctx context.Context) ([]proxmox.ClusterResource, error) {
	return f.resources, nil
}

func (f *fakeClient) GetGuestConfig(ctx context.Context, node string, kind proxmox.ResourceKind, vmid int) (*proxmox.GuestConfig, error) {
	return &proxmox.GuestConfig{}, nil
}

func (f *fakeClient) GetGuestStatus(ctx context.Context, node string, kind proxmox.ResourceKind, vmid int) (*proxmox.GuestStatus, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	status := f.guestStatus
	return &status, nil
}

func (f *fakeClient) GetGuestRRD(ctx context.Context, node string, kind proxmox.ResourceKind, vmid int) ([]proxmox.RRDSample, error) {
	return nil, nil
}

func (f *fakeClient) ListSnapshots(ctx context.Context, node string, kind proxmox.ResourceKind, vmid int) ([]proxmox.Snapshot, error) {
	return f.snapshots, nil
}

func (f *fakeClient) CreateGuest(ctx context.Context, node string, kind proxmox.ResourceKind, params url.Values) (string, error) {
	f.createdParams = append(f.createdParams, params)
	return f.submit("UPID:create:1")
}

func (f *fakeClient) DeleteGuest(ctx context.Context, node string, kind proxmox.ResourceKind, vmid int, params url.Values) (string, error) {
	f.deletedGuests = append(f.deletedGuests, vmid)
	f.deleteParams = params
	return f.submit("UPID:delete:1")
}

func (f *fakeClient) GuestAction(ctx context.Context, node string, kind proxmox.ResourceKind, vmid int, action string, params url.Values) (string, error) {
	f.actions = append(f.actions, action)
	f.actionParams = append(f.actionParams, params)
	return f.submit("UPID:action:1")
}

func (f *fakeClient) CreateSnapshot(ctx context.Context, node string, kind proxmox.ResourceKind, vmid int, params url.Values) (string, error) {
	f.snapshotParams = append(f.snapshotParams, params)
	return f.submit("UPID:snap:1")
}

func (f *fakeClient) DeleteSnapshot(ctx context.Context, node string, kind proxmox.ResourceKind, vmid int, snapname string) (string, error) {
	// Always synchronous so rollback recovery tests keep their canned UPIDs
	// for the rollback submissions.
	f.submissions++
	f.deletedSnapshots = append(f.deletedSnapshots, snapname)
	return "", nil
}

func (f *fakeClient) RollbackSnapshot(ctx context.Context, node string, kind proxmox.ResourceKind, vmid int, snapname string) (string, error) {
	f.rollbacks = append(f.rollbacks, snapname)
	return f.submit("UPID:rollback:1")
}

func (f *fakeClient) CreateBackup(ctx context.Context, node string, params url.Values) (string, error) {
	f.backupParams = append(f.backupParams, params)
	return f.submit("UPID:vzdump:1")
}

func (f *fakeClient) DeleteVolume(ctx context.Context, node, storage, volid string) (string, error) {
	f.deletedVolumes = append(f.deletedVolumes, volid)
	return f.submit("UPID:imgdel:1")
}

func (f *fakeClient) DownloadURL(ctx context.Context, node, storage string, params url.Values) (string, error) {
	f.downloadParams = append(f.downloadParams, params)
	return f.submit("UPID:download:1")
}

func (f *fakeClient) AgentExec(ctx context.Context, node string, vmid int, command string) (*proxmox.AgentExecResult, error) {
	return &proxmox.AgentExecResult{Out: "ok", Exited: 1}, nil
}

func (f *fakeClient) GetTaskStatus(ctx context.Context, node, upid string) (*proxmox.TaskStatus, error) {
	if f.taskErr != nil {
		return nil, f.taskErr
	}
	if status, ok := f.taskResults[upid]; ok {
		return &status, nil
	}
	return &proxmox.TaskStatus{UPID: upid, Status: "running"}, nil
}

// inventory helpers shared by the suites.

func vmResource(vmid int, name, node string) proxmox.ClusterResource {
	return proxmox.ClusterResource{VMID: vmid, Name: name, Node: node, Type: "qemu"}
}

func lxcResource(vmid int, name, node string) proxmox.ClusterResource {
	return proxmox.ClusterResource{VMID: vmid, Name: name, Node: node, Type: "lxc"}
}

func taskOK(upid string) proxmox.TaskStatus {
	return proxmox.TaskStatus{UPID: upid, Status: "stopped", ExitStatus: "OK"}
}

func taskFailed(upid, exitStatus string) proxmox.TaskStatus {
	return proxmox.TaskStatus{UPID: upid, Status: "stopped", ExitStatus: exitStatus}
}
