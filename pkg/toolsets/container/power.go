package container

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"k8s.io/utils/ptr"

	"github.com/pve-tools/proxmox-mcp-server/pkg/api"
	"github.com/pve-tools/proxmox-mcp-server/pkg/orchestrator"
	"github.com/pve-tools/proxmox-mcp-server/pkg/proxmox"
)

func initPower() []api.ServerTool {
	return []api.ServerTool{
		{Tool: api.Tool{
			Name:        "start_container",
			Description: "Start one or more LXC containers and wait for the start tasks to finish",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"selector": {
						Type:        "string",
						Description: selectorDescription,
					},
					"timeout_seconds": {
						Type:        "integer",
						Description: "How long to wait per start task, in seconds (1-600, default 300)",
					},
				},
				Required: []string{"selector"},
			},
			Annotations: api.ToolAnnotations{
				Title:           "Container: Start",
				ReadOnlyHint:    ptr.To(false),
				DestructiveHint: ptr.To(false),
				IdempotentHint:  ptr.To(true),
				OpenWorldHint:   ptr.To(true),
			},
		}, Handler: startContainer},
		{Tool: api.Tool{
			Name:        "stop_container",
			Description: "Stop one or more LXC containers. With graceful set a clean shutdown is requested, otherwise the containers are stopped immediately",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"selector": {
						Type:        "string",
						Description: selectorDescription,
					},
					"graceful": {
						Type:        "boolean",
						Description: "Request a clean shutdown instead of an immediate stop (Optional, default true)",
						Default:     api.ToRawMessage(true),
					},
					"timeout_seconds": {
						Type:        "integer",
						Description: "Grace period for a clean shutdown and wait limit per task, in seconds (1-600, default 300)",
					},
				},
				Required: []string{"selector"},
			},
			Annotations: api.ToolAnnotations{
				Title:           "Container: Stop",
				ReadOnlyHint:    ptr.To(false),
				DestructiveHint: ptr.To(true),
				IdempotentHint:  ptr.To(true),
				OpenWorldHint:   ptr.To(true),
			},
		}, Handler: stopContainer},
		{Tool: api.Tool{
			Name:        "restart_container",
			Description: "Restart one or more LXC containers and wait for the reboot tasks to finish",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"selector": {
						Type:        "string",
						Description: selectorDescription,
					},
					"timeout_seconds": {
						Type:        "integer",
						Description: "How long to wait per reboot task, in seconds (1-600, default 300)",
					},
				},
				Required: []string{"selector"},
			},
			Annotations: api.ToolAnnotations{
				Title:           "Container: Restart",
				ReadOnlyHint:    ptr.To(false),
				DestructiveHint: ptr.To(true),
				IdempotentHint:  ptr.To(false),
				OpenWorldHint:   ptr.To(true),
			},
		}, Handler: restartContainer},
	}
}

func startContainer(params api.ToolHandlerParams) (*api.ToolCallResult, error) {
	return batchPower(params, orchestrator.PowerSpec{Action: orchestrator.PowerStart})
}

func stopContainer(params api.ToolHandlerParams) (*api.ToolCallResult, error) {
	return batchPower(params, orchestrator.PowerSpec{
		Action:         orchestrator.PowerStop,
		Graceful:       api.OptionalBool(params, "graceful", true),
		TimeoutSeconds: api.OptionalInt(params, "timeout_seconds", 0),
	})
}

func restartContainer(params api.ToolHandlerParams) (*api.ToolCallResult, error) {
	return batchPower(params, orchestrator.PowerSpec{
		Action:         orchestrator.PowerReboot,
		TimeoutSeconds: api.OptionalInt(params, "timeout_seconds", 0),
	})
}

// batchPower resolves the (possibly comma-separated) selector and dispatches
// the power action for each resolved container. Each container gets its own
// outcome; one failure does not stop the rest of the batch.
func batchPower(params api.ToolHandlerParams, spec orchestrator.PowerSpec) (*api.ToolCallResult, error) {
	selector, err := api.RequiredString(params, "selector")
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}
	refs, err := params.Dispatcher.Resolver().ResolveAll(params, selector, proxmox.KindContainer)
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}

	timeout := api.OptionalInt(params, "timeout_seconds", 0)
	outcomes := make([]*orchestrator.OperationOutcome, 0, len(refs))
	for _, ref := range refs {
		outcome := params.Dispatcher.Dispatch(params, &orchestrator.OperationRequest{
			Kind:           orchestrator.OpPower,
			Target:         fmt.Sprintf("%s:%d", ref.Node, ref.ID),
			ExpectKind:     proxmox.KindContainer,
			TimeoutSeconds: timeout,
			Power:          &spec,
		})
		outcomes = append(outcomes, outcome)
	}

	if len(outcomes) == 1 {
		return api.NewOutcomeResult(outcomes[0], params.ListOutput)
	}
	content, err := params.ListOutput.Print(outcomes)
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}
	return &api.ToolCallResult{Content: content, StructuredContent: outcomes}, nil
}
