package main

import (
	"os"

	"github.com/pve-tools/proxmox-mcp-server/pkg/proxmox-mcp-server/cmd"
)

func main() {
	command := cmd.NewMCPServer(cmd.IOStreams{In: os.Stdin, Out: os.Stdout, ErrOut: os.Stderr})
	if err := command.Execute(); err != nil {
		os.Exit(1)
	}
}
