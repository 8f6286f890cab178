package orchestrator

import (
	"context"
	"time"

	"k8s.io/klog/v2"

	"github.com/pve-tools/proxmox-mcp-server/pkg/proxmox"
)

const (
	// DefaultPollInterval is the fixed delay between task status polls.
	DefaultPollInterval = 1 * time.Second
	// DefaultTaskTimeout bounds tracking when the caller gives no limit.
	DefaultTaskTimeout = 300 * time.Second
)

// TaskHandle identifies one submitted backend task.
type TaskHandle struct {
	Node        string
	UPID        string
	SubmittedAt time.Time
}

// Tracker polls submitted tasks to a terminal state. It never cancels the
// backend task: a tracking timeout means the server stopped watching, not
// that the work stopped.
type Tracker struct {
	client       proxmox.Client
	pollInterval time.Duration
}

func NewTracker(client proxmox.Client) *Tracker {
	return &Tracker{client: client, pollInterval: DefaultPollInterval}
}

// Track polls the task at a fixed interval until it finishes or the wall
// clock timeout elapses. The returned status is the last one observed; it is
// non-nil alongside a timeout error so callers can report how far the task
// got.
func (t *Tracker) Track(ctx context.Context, handle TaskHandle, timeout time.Duration) (*proxmox.TaskStatus, *OpError) {
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}
	deadline := handle.SubmittedAt.Add(timeout)

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	var last *proxmox.TaskStatus
	for {
		status, err := t.client.GetTaskStatus(ctx, handle.Node, handle.UPID)
		if err != nil {
			opErr := classifyBackendError(err)
			if opErr.Kind == ErrNotFound {
				// A vanished task usually means the node restarted or
				// the task log rotated out from under us.
				return last, newError(ErrBackend, "task %s vanished before reaching a terminal state", handle.UPID)
			}
			return last, opErr
		}
		last = status

		if status.Finished() {
			if status.Succeeded() {
				return status, nil
			}
			return status, &OpError{
				Kind:    ErrBackend,
				Detail:  "task " + handle.UPID + " failed: " + status.ExitStatus,
				Backend: status,
			}
		}

		if time.Now().After(deadline) {
			klog.V(2).Infof("task %s still %s after %s, giving up tracking", handle.UPID, status.Status, timeout)
			return last, newError(ErrTimedOut,
				"task %s did not finish within %s; it keeps running on the backend", handle.UPID, timeout)
		}

		select {
		case <-ctx.Done():
			return last, newError(ErrBackend, "tracking cancelled: %v", ctx.Err())
		case <-ticker.C:
		}
	}
}
