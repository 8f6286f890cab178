package orchestrator

import (
	"context"
	"strings"

	"k8s.io/klog/v2"

	"github.com/pve-tools/proxmox-mcp-server/pkg/proxmox"
)

// BackendClass groups storage backend drivers by how they store disk images.
type BackendClass string

const (
	BlockBased BackendClass = "block"
	FileBased  BackendClass = "file"
)

// DiskFormat is a Proxmox disk image format.
type DiskFormat string

const (
	FormatRaw   DiskFormat = "raw"
	FormatQcow2 DiskFormat = "qcow2"
)

// StorageProfile describes what a storage pool can do. It is derived from the
// pool's declared backend type and recomputed per request; pool configuration
// can change between calls.
type StorageProfile struct {
	Pool                 string       `json:"pool"`
	BackendType          string       `json:"backend_type"`
	Class                BackendClass `json:"class"`
	DiskFormat           DiskFormat   `json:"disk_format"`
	SupportsCloudInit    bool         `json:"supports_cloudinit"`
	SupportsLiveSnapshot bool         `json:"supports_live_snapshot"`
}

// blockBackends are the backend type tokens that only hold raw logical
// volumes. Everything file-backed takes qcow2.
var blockBackends = map[string]bool{
	"lvm":       true,
	"lvmthin":   true,
	"zfspool":   true,
	"zfs":       true,
	"zfs-block": true,
}

var fileBackends = map[string]bool{
	"dir":   true,
	"nfs":   true,
	"cifs":  true,
	"btrfs": true,
}

// ProfileForType classifies a backend type token. Unknown tokens default to
// file-based qcow2, the more broadly supported choice: storage backends keep
// appearing and an unrecognized one must not block operation.
func ProfileForType(pool, backendType string) StorageProfile {
	token := strings.ToLower(backendType)
	switch {
	case blockBackends[token]:
		return StorageProfile{
			Pool:                 pool,
			BackendType:          backendType,
			Class:                BlockBased,
			DiskFormat:           FormatRaw,
			SupportsCloudInit:    false,
			SupportsLiveSnapshot: true,
		}
	case fileBackends[token]:
		return StorageProfile{
			Pool:                 pool,
			BackendType:          backendType,
			Class:                FileBased,
			DiskFormat:           FormatQcow2,
			SupportsCloudInit:    true,
			SupportsLiveSnapshot: true,
		}
	default:
		klog.Warningf("unknown storage backend type %q for pool %q, assuming file-based qcow2", backendType, pool)
		return StorageProfile{
			Pool:                 pool,
			BackendType:          backendType,
			Class:                FileBased,
			DiskFormat:           FormatQcow2,
			SupportsCloudInit:    true,
			SupportsLiveSnapshot: true,
		}
	}
}

// StorageDetector derives StorageProfiles from cluster storage inventory.
type StorageDetector struct {
	client proxmox.Client
}

func NewStorageDetector(client proxmox.Client) *StorageDetector {
	return &StorageDetector{client: client}
}

// Detect returns the profile for a named pool reachable from the given node.
func (d *StorageDetector) Detect(ctx context.Context, node, pool string) (StorageProfile, error) {
	pools, err := d.client.ListStoragePools(ctx)
	if err != nil {
		return StorageProfile{}, classifyBackendError(err)
	}
	for _, p := range pools {
		if p.Storage != pool {
			continue
		}
		if !poolOnNode(p, node) {
			continue
		}
		return ProfileForType(p.Storage, p.Type), nil
	}
	return StorageProfile{}, newError(ErrNotFound, "storage pool %q not found on node %q", pool, node)
}

// AutoSelect picks a pool for disk images on the given node when the caller
// did not name one. Enabled pools with "images" content are candidates; the
// first match wins.
func (d *StorageDetector) AutoSelect(ctx context.Context, node string) (StorageProfile, error) {
	pools, err := d.client.ListStoragePools(ctx)
	if err != nil {
		return StorageProfile{}, classifyBackendError(err)
	}
	for _, p := range pools {
		if !p.IsEnabled() || !poolOnNode(p, node) {
			continue
		}
		if !strings.Contains(p.Content, "images") {
			continue
		}
		return ProfileForType(p.Storage, p.Type), nil
	}
	return StorageProfile{}, newError(ErrNotFound, "no storage pool with 'images' content available on node %q", node)
}

// poolOnNode reports whether the pool is visible from node. An empty Nodes
// restriction means cluster-wide.
func poolOnNode(pool proxmox.StoragePool, node string) bool {
	if pool.Nodes == "" {
		return true
	}
	for _, n := range strings.Split(pool.Nodes, ",") {
		if strings.TrimSpace(n) == node {
			return true
		}
	}
	return false
}
