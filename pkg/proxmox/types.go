package proxmox

import (
	"encoding/json"
	"fmt"
)

// ResourceKind distinguishes the two guest variants managed by a Proxmox
// cluster. The wire-level names ("qemu", "lxc") are used in API paths, the
// display names ("VM", "Container") everywhere else.
type ResourceKind string

const (
	KindVM        ResourceKind = "qemu"
	KindContainer ResourceKind = "lxc"
)

// Display returns the human-facing name of the kind.
func (k ResourceKind) Display() string {
	switch k {
	case KindVM:
		return "VM"
	case KindContainer:
		return "Container"
	}
	return string(k)
}

// KindFromVMType maps the tool-facing vm_type parameter ("qemu" or "lxc")
// to a ResourceKind.
func KindFromVMType(vmType string) (ResourceKind, error) {
	switch vmType {
	case "", "qemu":
		return KindVM, nil
	case "lxc":
		return KindContainer, nil
	}
	return "", fmt.Errorf("invalid vm_type %q, must be 'qemu' or 'lxc'", vmType)
}

// Node is an entry from GET /nodes.
type Node struct {
	Node   string `json:"node"`
	Status string `json:"status"`
	Uptime int64  `json:"uptime"`
	MaxCPU int    `json:"maxcpu"`
	Mem    int64  `json:"mem"`
	MaxMem int64  `json:"maxmem"`
}

// NodeStatus is the detailed status from GET /nodes/{node}/status.
type NodeStatus struct {
	Uptime  int64 `json:"uptime"`
	CPUInfo struct {
		CPUs  int    `json:"cpus"`
		Model string `json:"model"`
	} `json:"cpuinfo"`
	Memory struct {
		Used  int64 `json:"used"`
		Total int64 `json:"total"`
		Free  int64 `json:"free"`
	} `json:"memory"`
	LoadAvg []json.Number `json:"loadavg"`
}

// ClusterStatusEntry is an entry from GET /cluster/status. Entries are
// heterogeneous: one "cluster" record followed by one record per node.
type ClusterStatusEntry struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Quorate int    `json:"quorate"`
	Nodes   int    `json:"nodes"`
	Online  int    `json:"online"`
	IP      string `json:"ip"`
}

// StoragePool is an entry from GET /storage (cluster-wide storage
// configuration). Type carries the backend driver token (lvm, dir, nfs, ...).
type StoragePool struct {
	Storage string `json:"storage"`
	Type    string `json:"type"`
	Content string `json:"content"`
	Nodes   string `json:"nodes"`
	Shared  int    `json:"shared"`
	Enabled *int   `json:"enabled"`
}

// IsEnabled reports whether the pool is enabled; pools with no explicit
// enabled flag are enabled by default.
func (s StoragePool) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled != 0
}

// StorageStatus is the usage report from GET /nodes/{node}/storage/{storage}/status.
type StorageStatus struct {
	Used  int64 `json:"used"`
	Total int64 `json:"total"`
	Avail int64 `json:"avail"`
}

// VolumeItem is an entry from GET /nodes/{node}/storage/{storage}/content.
// Node and Storage are annotated by the client, not returned by the API.
type VolumeItem struct {
	VolID     string `json:"volid"`
	Content   string `json:"content"`
	Format    string `json:"format"`
	Size      int64  `json:"size"`
	VMID      int    `json:"vmid,omitempty"`
	CTime     int64  `json:"ctime,omitempty"`
	Notes     string `json:"notes,omitempty"`
	Protected int    `json:"protected,omitempty"`

	Node    string `json:"-"`
	Storage string `json:"-"`
}

// ClusterResource is an entry from GET /cluster/resources?type=vm. It covers
// both QEMU VMs and LXC containers; Type is "qemu" or "lxc".
type ClusterResource struct {
	VMID     int     `json:"vmid"`
	Name     string  `json:"name"`
	Node     string  `json:"node"`
	Type     string  `json:"type"`
	Status   string  `json:"status"`
	Template int     `json:"template"`
	CPU      float64 `json:"cpu"`
	MaxCPU   float64 `json:"maxcpu"`
	Mem      int64   `json:"mem"`
	MaxMem   int64   `json:"maxmem"`
	Disk     int64   `json:"disk"`
	MaxDisk  int64   `json:"maxdisk"`
}

// Kind returns the resource kind of the entry.
func (r ClusterResource) Kind() ResourceKind {
	return ResourceKind(r.Type)
}

// GuestConfig is the subset of a guest configuration the server inspects.
// Raw preserves the full backend payload for callers that need more.
type GuestConfig struct {
	Name     string      `json:"name"`
	Hostname string      `json:"hostname"`
	Cores    int         `json:"cores"`
	Memory   json.Number `json:"memory"`
	CPULimit json.Number `json:"cpulimit"`
	Swap     *int64      `json:"swap"`
	OSType   string      `json:"ostype"`

	Raw map[string]any `json:"-"`
}

// MemoryMiB returns the configured memory limit in MiB, 0 when unlimited or
// unset.
func (c GuestConfig) MemoryMiB() int64 {
	v, err := c.Memory.Int64()
	if err != nil {
		return 0
	}
	return v
}

// GuestStatus is the live state from GET .../status/current.
type GuestStatus struct {
	Status string  `json:"status"`
	CPU    float64 `json:"cpu"`
	CPUs   float64 `json:"cpus"`
	Mem    int64   `json:"mem"`
	MaxMem int64   `json:"maxmem"`
	Uptime int64   `json:"uptime"`
}

// RRDSample is one row from the guest RRD time series. Used as a fallback
// when the live status endpoint reports zeros.
type RRDSample struct {
	Time   int64   `json:"time"`
	CPU    float64 `json:"cpu"`
	Mem    float64 `json:"mem"`
	MaxMem float64 `json:"maxmem"`
}

// Snapshot is an entry from GET .../snapshot. The backend always includes a
// synthetic "current" entry marking the run state.
type Snapshot struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parent      string `json:"parent"`
	SnapTime    int64  `json:"snaptime"`
	VMState     int    `json:"vmstate"`
}

// TaskStatus is the polled state of an asynchronous backend task
// (GET /nodes/{node}/tasks/{upid}/status).
type TaskStatus struct {
	UPID       string `json:"upid"`
	Status     string `json:"status"`
	ExitStatus string `json:"exitstatus"`
	Type       string `json:"type"`
	StartTime  int64  `json:"starttime"`
}

const taskStatusStopped = "stopped"

// Finished reports whether the task reached a terminal state.
func (t TaskStatus) Finished() bool {
	return t.Status == taskStatusStopped
}

// Succeeded reports whether a finished task completed without error.
func (t TaskStatus) Succeeded() bool {
	return t.Finished() && t.ExitStatus == "OK"
}

// AgentExecResult is the outcome of a QEMU guest agent command execution.
type AgentExecResult struct {
	Out      string `json:"out-data"`
	Err      string `json:"err-data"`
	ExitCode int    `json:"exitcode"`
	Exited   int    `json:"exited"`
}
