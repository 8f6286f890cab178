package proxmox

import (
	"context"
	"net/url"
)

// Client is the capability set the rest of the server consumes. It hides the
// Proxmox wire protocol behind inventory queries, task submission and task
// polling so that the orchestration layer can be tested against a fake.
type Client interface {
	// Version checks connectivity and returns the backend version string.
	Version(ctx context.Context) (string, error)

	// Inventory.
	ListNodes(ctx context.Context) ([]Node, error)
	GetNodeStatus(ctx context.Context, node string) (*NodeStatus, error)
	GetClusterStatus(ctx context.Context) ([]ClusterStatusEntry, error)
	ListStoragePools(ctx context.Context) ([]StoragePool, error)
	GetStorageStatus(ctx context.Context, node, storage string) (*StorageStatus, error)
	ListStorageContent(ctx context.Context, node, storage, content string, vmid int) ([]VolumeItem, error)
	ListClusterResources(ctx context.Context) ([]ClusterResource, error)
	GetGuestConfig(ctx context.Context, node string, kind ResourceKind, vmid int) (*GuestConfig, error)
	GetGuestStatus(ctx context.Context, node string, kind ResourceKind, vmid int) (*GuestStatus, error)
	GetGuestRRD(ctx context.Context, node string, kind ResourceKind, vmid int) ([]RRDSample, error)
	ListSnapshots(ctx context.Context, node string, kind ResourceKind, vmid int) ([]Snapshot, error)

	// Task submission. Every call returns the UPID of the spawned backend
	// task; an empty UPID means the backend completed synchronously.
	CreateGuest(ctx context.Context, node string, kind ResourceKind, params url.Values) (string, error)
	DeleteGuest(ctx context.Context, node string, kind ResourceKind, vmid int, params url.Values) (string, error)
	GuestAction(ctx context.Context, node string, kind ResourceKind, vmid int, action string, params url.Values) (string, error)
	CreateSnapshot(ctx context.Context, node string, kind ResourceKind, vmid int, params url.Values) (string, error)
	DeleteSnapshot(ctx context.Context, node string, kind ResourceKind, vmid int, snapname string) (string, error)
	RollbackSnapshot(ctx context.Context, node string, kind ResourceKind, vmid int, snapname string) (string, error)
	CreateBackup(ctx context.Context, node string, params url.Values) (string, error)
	DeleteVolume(ctx context.Context, node, storage, volid string) (string, error)
	DownloadURL(ctx context.Context, node, storage string, params url.Values) (string, error)

	// Guest agent.
	AgentExec(ctx context.Context, node string, vmid int, command string) (*AgentExecResult, error)

	// Task polling.
	GetTaskStatus(ctx context.Context, node, upid string) (*TaskStatus, error)
}
