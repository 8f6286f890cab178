package iso

import (
	"github.com/pve-tools/proxmox-mcp-server/pkg/api"
	"github.com/pve-tools/proxmox-mcp-server/pkg/toolsets"
)

type Toolset struct{}

var _ api.Toolset = (*Toolset)(nil)

func (t *Toolset) GetName() string {
	return "iso"
}

func (t *Toolset) GetDescription() string {
	return "Installation media tools (ISO images and container templates)"
}

func (t *Toolset) GetTools() []api.ServerTool {
	return initIsos()
}

func init() {
	toolsets.Register(&Toolset{})
}
