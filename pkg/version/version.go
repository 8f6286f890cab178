package version

// BinaryName is the name of the binary, used to identify the server to MCP
// clients and in User-Agent headers sent to the Proxmox API.
var BinaryName = "proxmox-mcp-server"

// Version is set at build time via -ldflags.
var Version = "0.0.0"

// WebsiteURL points at the project documentation.
var WebsiteURL = "https://github.com/pve-tools/proxmox-mcp-server"
