package api

import (
	"github.com/pve-tools/proxmox-mcp-server/pkg/orchestrator"
	"github.com/pve-tools/proxmox-mcp-server/pkg/output"
)

// NewOutcomeResult renders a dispatched operation outcome as a tool result.
// Failed and timed out outcomes become tool errors carrying the normalized
// error detail; successful outcomes are printed with the configured output.
func NewOutcomeResult(outcome *orchestrator.OperationOutcome, printer output.Output) (*ToolCallResult, error) {
	if outcome.Err != nil {
		return NewToolCallResult("", outcome.Err), nil
	}
	content, err := printer.Print(outcome)
	if err != nil {
		return NewToolCallResult("", err), nil
	}
	return &ToolCallResult{Content: content, StructuredContent: outcome}, nil
}
