package toolsets

import (
	"fmt"
	"slices"

	"github.com/pve-tools/proxmox-mcp-server/pkg/api"
)

var toolsets []api.Toolset

// Clear removes all registered toolsets, TESTING PURPOSES ONLY.
func Clear() {
	toolsets = []api.Toolset{}
}

func Register(toolset api.Toolset) {
	toolsets = append(toolsets, toolset)
}

func Toolsets() []api.Toolset {
	return toolsets
}

func ToolsetNames() []string {
	names := make([]string, 0)
	for _, toolset := range Toolsets() {
		names = append(names, toolset.GetName())
	}
	slices.Sort(names)
	return names
}

func ToolsetFromString(name string) api.Toolset {
	for _, toolset := range Toolsets() {
		if toolset.GetName() == name {
			return toolset
		}
	}
	return nil
}

// Validate returns an error naming the first unknown toolset in names.
func Validate(names []string) error {
	for _, name := range names {
		if ToolsetFromString(name) == nil {
			return fmt.Errorf("invalid toolset %q, valid toolsets are: %v", name, ToolsetNames())
		}
	}
	return nil
}
