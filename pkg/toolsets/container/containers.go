package container

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"k8s.io/klog/v2"
	"k8s.io/utils/ptr"

	"github.com/pve-tools/proxmox-mcp-server/pkg/api"
	"github.com/pve-tools/proxmox-mcp-server/pkg/proxmox"
)

const selectorDescription = "Container selector: a numeric id (200), node:id pair (pve1:200), node/name pair (pve1/db-01), a unique container name (db-01) or a comma-separated list of any of these"

// containerEntry is one row of the get_containers listing.
type containerEntry struct {
	VMID   int    `json:"vmid"`
	Name   string `json:"name"`
	Node   string `json:"node"`
	Status string `json:"status"`

	Config *containerConfig `json:"config,omitempty"`
	Stats  *containerStats  `json:"stats,omitempty"`
	Raw    map[string]any   `json:"raw,omitempty"`
}

type containerConfig struct {
	Hostname string `json:"hostname,omitempty"`
	Cores    int    `json:"cores"`
	// MemoryMB is the configured limit; 0 together with UnlimitedMemory
	// means the container can use all host memory.
	MemoryMB        int64 `json:"memory_mb"`
	UnlimitedMemory bool  `json:"unlimited_memory,omitempty"`
}

type containerStats struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemBytes   int64   `json:"mem_bytes"`
	MaxMem     int64   `json:"maxmem_bytes"`
	Uptime     int64   `json:"uptime_seconds"`
	// Source is "live" or "rrd"; rrd means the live endpoint reported
	// zeros and the last RRD sample was used instead.
	Source string `json:"source"`
}

func initContainers() []api.ServerTool {
	return []api.ServerTool{
		{Tool: api.Tool{
			Name: "get_containers",
			Description: "List LXC containers across the cluster with configuration and live resource stats. " +
				"When the live status endpoint reports zeros the most recent RRD sample is used instead",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"node": {
						Type:        "string",
						Description: "Restrict the listing to containers on this node (Optional)",
					},
					"include_stats": {
						Type:        "boolean",
						Description: "Include live CPU and memory stats (Optional, default true)",
						Default:     api.ToRawMessage(true),
					},
					"include_raw": {
						Type:        "boolean",
						Description: "Include the raw backend configuration of each container (Optional, default false)",
						Default:     api.ToRawMessage(false),
					},
				},
			},
			Annotations: api.ToolAnnotations{
				Title:           "Container: List",
				ReadOnlyHint:    ptr.To(true),
				DestructiveHint: ptr.To(false),
				OpenWorldHint:   ptr.To(true),
			},
		}, Handler: getContainers},
	}
}

func getContainers(params api.ToolHandlerParams) (*api.ToolCallResult, error) {
	node := api.OptionalString(params, "node", "")
	includeStats := api.OptionalBool(params, "include_stats", true)
	includeRaw := api.OptionalBool(params, "include_raw", false)

	resources, err := params.Client.ListClusterResources(params)
	if err != nil {
		return api.NewToolCallResult("", fmt.Errorf("failed to list containers: %v", err)), nil
	}

	entries := make([]containerEntry, 0)
	for _, res := range resources {
		if res.Kind() != proxmox.KindContainer {
			continue
		}
		if node != "" && res.Node != node {
			continue
		}
		entry := containerEntry{
			VMID:   res.VMID,
			Name:   res.Name,
			Node:   res.Node,
			Status: res.Status,
		}
		describeContainer(params, res, &entry, includeStats, includeRaw)
		entries = append(entries, entry)
	}

	content, err := params.ListOutput.Print(entries)
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}
	return api.NewToolCallResult(content, nil), nil
}

// describeContainer fills config, stats and raw data for one container. Per
// container failures degrade the entry instead of failing the whole listing.
func describeContainer(params api.ToolHandlerParams, res proxmox.ClusterResource, entry *containerEntry, includeStats, includeRaw bool) {
	cfg, err := params.Client.GetGuestConfig(params, res.Node, proxmox.KindContainer, res.VMID)
	if err != nil {
		klog.V(2).Infof("could not read config for container %d on %s: %v", res.VMID, res.Node, err)
		return
	}
	memory := cfg.MemoryMiB()
	swap := int64(0)
	if cfg.Swap != nil {
		swap = *cfg.Swap
	}
	cores := cfg.Cores
	if cores == 0 {
		// Containers without an explicit core count fall back to the
		// cpulimit setting when one is present.
		if limit, err := cfg.CPULimit.Int64(); err == nil && limit > 0 {
			cores = int(limit)
		}
	}
	entry.Config = &containerConfig{
		Hostname:        cfg.Hostname,
		Cores:           cores,
		MemoryMB:        memory,
		UnlimitedMemory: memory == 0 && swap == 0,
	}
	if includeRaw {
		entry.Raw = cfg.Raw
	}

	if !includeStats || res.Status != "running" {
		return
	}
	status, err := params.Client.GetGuestStatus(params, res.Node, proxmox.KindContainer, res.VMID)
	if err != nil {
		klog.V(2).Infof("could not read status for container %d on %s: %v", res.VMID, res.Node, err)
		return
	}
	stats := &containerStats{
		CPUPercent: status.CPU * 100,
		MemBytes:   status.Mem,
		MaxMem:     status.MaxMem,
		Uptime:     status.Uptime,
		Source:     "live",
	}
	if status.CPU == 0 && status.Mem == 0 {
		if sample, ok := lastRRDSample(params, res); ok {
			stats.CPUPercent = sample.CPU * 100
			stats.MemBytes = int64(sample.Mem)
			stats.MaxMem = int64(sample.MaxMem)
			stats.Source = "rrd"
		}
	}
	entry.Stats = stats
}

// lastRRDSample returns the most recent RRD sample with usable data.
func lastRRDSample(params api.ToolHandlerParams, res proxmox.ClusterResource) (proxmox.RRDSample, bool) {
	samples, err := params.Client.GetGuestRRD(params, res.Node, proxmox.KindContainer, res.VMID)
	if err != nil {
		klog.V(2).Infof("could not read RRD data for container %d on %s: %v", res.VMID, res.Node, err)
		return proxmox.RRDSample{}, false
	}
	for i := len(samples) - 1; i >= 0; i-- {
		if samples[i].CPU > 0 || samples[i].Mem > 0 {
			return samples[i], true
		}
	}
	return proxmox.RRDSample{}, false
}
