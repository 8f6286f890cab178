package orchestrator

import (
	"github.com/pve-tools/proxmox-mcp-server/pkg/proxmox"
)

// OperationStatus is the terminal disposition of a dispatched operation.
// TimedOut is distinct from Failed: the backend task may still finish after
// the server stopped watching it.
type OperationStatus string

const (
	StatusSuccess  OperationStatus = "success"
	StatusFailed   OperationStatus = "failed"
	StatusTimedOut OperationStatus = "timed_out"
)

// OperationOutcome is the uniform result of every dispatched operation.
type OperationOutcome struct {
	Status OperationStatus `json:"status"`

	// Payload carries operation-specific result fields (ids, node, chosen
	// storage and format). Set on success only.
	Payload map[string]any `json:"payload,omitempty"`

	// Task is the final polled state of the backend task, when one was
	// spawned and observed. On timeout it holds the last state seen.
	Task *proxmox.TaskStatus `json:"task,omitempty"`

	// Err describes the failure for Failed and TimedOut outcomes.
	Err *OpError `json:"error,omitempty"`
}

func succeeded(payload map[string]any, task *proxmox.TaskStatus) *OperationOutcome {
	return &OperationOutcome{Status: StatusSuccess, Payload: payload, Task: task}
}

func failed(err error) *OperationOutcome {
	return &OperationOutcome{Status: StatusFailed, Err: AsOpError(err)}
}

func timedOut(err *OpError, task *proxmox.TaskStatus) *OperationOutcome {
	return &OperationOutcome{Status: StatusTimedOut, Err: err, Task: task}
}

// AsOpError coerces any error into the closed taxonomy, classifying raw
// backend errors on the way.
func AsOpError(err error) *OpError {
	if opErr, ok := err.(*OpError); ok {
		return opErr
	}
	return classifyBackendError(err)
}
