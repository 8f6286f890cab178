package mcp

import (
	_ "github.com/pve-tools/proxmox-mcp-server/pkg/toolsets/backup"
	_ "github.com/pve-tools/proxmox-mcp-server/pkg/toolsets/cluster"
	_ "github.com/pve-tools/proxmox-mcp-server/pkg/toolsets/container"
	_ "github.com/pve-tools/proxmox-mcp-server/pkg/toolsets/iso"
	_ "github.com/pve-tools/proxmox-mcp-server/pkg/toolsets/snapshot"
	_ "github.com/pve-tools/proxmox-mcp-server/pkg/toolsets/vm"
)
