package proxmox

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"k8s.io/klog/v2"

	"github.com/pve-tools/proxmox-mcp-server/pkg/version"
)

// APIError is a non-2xx answer from the Proxmox API. The original response
// body is preserved so upper layers can surface it without re-parsing.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
	Errors     map[string]string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("proxmox api: %s: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("proxmox api: %s", e.Status)
}

// IsTransient reports whether err happened before the backend produced an
// HTTP response. Only such failures are safe to retry: once the backend has
// answered, resubmitting a mutating request risks duplicate side effects.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	return !errors.As(err, &apiErr)
}

// RESTClient talks to the Proxmox VE HTTP API (/api2/json) using an API
// token. It implements Client.
type RESTClient struct {
	baseURL string
	token   string
	http    *retryablehttp.Client
}

var _ Client = (*RESTClient)(nil)

// RESTClientConfig carries the connection settings for NewRESTClient.
type RESTClientConfig struct {
	Host       string
	Port       int
	User       string
	TokenName  string
	TokenValue string
	VerifySSL  bool
}

// NewRESTClient builds a client for the given connection settings. No network
// call is made; use Version to verify connectivity.
func NewRESTClient(cfg RESTClientConfig) *RESTClient {
	port := cfg.Port
	if port == 0 {
		port = 8006
	}
	hc := retryablehttp.NewClient()
	// Submission retries are owned by the dispatcher, which knows which
	// operations are safe to resubmit. The transport must not retry.
	hc.RetryMax = 0
	hc.Logger = nil
	hc.HTTPClient.Timeout = 30 * time.Second
	if !cfg.VerifySSL {
		hc.HTTPClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return &RESTClient{
		baseURL: fmt.Sprintf("https://%s:%d/api2/json", cfg.Host, port),
		token:   fmt.Sprintf("PVEAPIToken=%s!%s=%s", cfg.User, cfg.TokenName, cfg.TokenValue),
		http:    hc,
	}
}

func (c *RESTClient) do(ctx context.Context, method, path string, params url.Values) (json.RawMessage, error) {
	var body io.Reader
	target := c.baseURL + path
	if params != nil {
		if method == http.MethodGet {
			target += "?" + params.Encode()
		} else {
			body = strings.NewReader(params.Encode())
		}
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", method, path, err)
	}
	req.Header.Set("Authorization", c.token)
	req.Header.Set("User-Agent", version.BinaryName+"/"+version.Version)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read response: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.apiError(resp, payload)
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("%s %s: decode envelope: %w", method, path, err)
	}
	return envelope.Data, nil
}

func (c *RESTClient) apiError(resp *http.Response, payload []byte) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
	}
	var envelope struct {
		Message string            `json:"message"`
		Errors  map[string]string `json:"errors"`
	}
	if err := json.Unmarshal(payload, &envelope); err == nil {
		apiErr.Message = strings.TrimSpace(envelope.Message)
		apiErr.Errors = envelope.Errors
	}
	// Proxmox often leaves the body empty and carries the reason in the
	// HTTP status line instead.
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	}
	return apiErr
}

func decode[T any](data json.RawMessage, out *T) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, out)
}

// upid decodes the task identifier returned by mutating endpoints. Some
// synchronous endpoints return null instead.
func upid(data json.RawMessage) (string, error) {
	var id string
	if err := decode(data, &id); err != nil {
		return "", fmt.Errorf("decode task id: %w", err)
	}
	return id, nil
}

func guestPath(node string, kind ResourceKind, vmid int) string {
	return fmt.Sprintf("/nodes/%s/%s/%d", node, kind, vmid)
}

func (c *RESTClient) Version(ctx context.Context) (string, error) {
	data, err := c.do(ctx, http.MethodGet, "/version", nil)
	if err != nil {
		return "", err
	}
	var v struct {
		Version string `json:"version"`
		Release string `json:"release"`
	}
	if err := decode(data, &v); err != nil {
		return "", fmt.Errorf("decode version: %w", err)
	}
	return v.Version, nil
}

func (c *RESTClient) ListNodes(ctx context.Context) ([]Node, error) {
	data, err := c.do(ctx, http.MethodGet, "/nodes", nil)
	if err != nil {
		return nil, err
	}
	var nodes []Node
	if err := decode(data, &nodes); err != nil {
		return nil, fmt.Errorf("decode nodes: %w", err)
	}
	return nodes, nil
}

func (c *RESTClient) GetNodeStatus(ctx context.Context, node string) (*NodeStatus, error) {
	data, err := c.do(ctx, http.MethodGet, "/nodes/"+node+"/status", nil)
	if err != nil {
		return nil, err
	}
	status := &NodeStatus{}
	if err := decode(data, status); err != nil {
		return nil, fmt.Errorf("decode node status: %w", err)
	}
	return status, nil
}

func (c *RESTClient) GetClusterStatus(ctx context.Context) ([]ClusterStatusEntry, error) {
	data, err := c.do(ctx, http.MethodGet, "/cluster/status", nil)
	if err != nil {
		return nil, err
	}
	var entries []ClusterStatusEntry
	if err := decode(data, &entries); err != nil {
		return nil, fmt.Errorf("decode cluster status: %w", err)
	}
	return entries, nil
}

func (c *RESTClient) ListStoragePools(ctx context.Context) ([]StoragePool, error) {
	data, err := c.do(ctx, http.MethodGet, "/storage", nil)
	if err != nil {
		return nil, err
	}
	var pools []StoragePool
	if err := decode(data, &pools); err != nil {
		return nil, fmt.Errorf("decode storage pools: %w", err)
	}
	return pools, nil
}

func (c *RESTClient) GetStorageStatus(ctx context.Context, node, storage string) (*StorageStatus, error) {
	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/nodes/%s/storage/%s/status", node, storage), nil)
	if err != nil {
		return nil, err
	}
	status := &StorageStatus{}
	if err := decode(data, status); err != nil {
		return nil, fmt.Errorf("decode storage status: %w", err)
	}
	return status, nil
}

func (c *RESTClient) ListStorageContent(ctx context.Context, node, storage, content string, vmid int) ([]VolumeItem, error) {
	params := url.Values{}
	if content != "" {
		params.Set("content", content)
	}
	if vmid > 0 {
		params.Set("vmid", strconv.Itoa(vmid))
	}
	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/nodes/%s/storage/%s/content", node, storage), params)
	if err != nil {
		return nil, err
	}
	var items []VolumeItem
	if err := decode(data, &items); err != nil {
		return nil, fmt.Errorf("decode storage content: %w", err)
	}
	for i := range items {
		items[i].Node = node
		items[i].Storage = storage
	}
	return items, nil
}

func (c *RESTClient) ListClusterResources(ctx context.Context) ([]ClusterResource, error) {
	params := url.Values{"type": []string{"vm"}}
	data, err := c.do(ctx, http.MethodGet, "/cluster/resources", params)
	if err != nil {
		return nil, err
	}
	var resources []ClusterResource
	if err := decode(data, &resources); err != nil {
		return nil, fmt.Errorf("decode cluster resources: %w", err)
	}
	return resources, nil
}

func (c *RESTClient) GetGuestConfig(ctx context.Context, node string, kind ResourceKind, vmid int) (*GuestConfig, error) {
	data, err := c.do(ctx, http.MethodGet, guestPath(node, kind, vmid)+"/config", nil)
	if err != nil {
		return nil, err
	}
	cfg := &GuestConfig{}
	if err := decode(data, cfg); err != nil {
		return nil, fmt.Errorf("decode guest config: %w", err)
	}
	if err := decode(data, &cfg.Raw); err != nil {
		klog.V(4).Infof("guest %d config raw payload not decodable: %v", vmid, err)
	}
	return cfg, nil
}

func (c *RESTClient) GetGuestStatus(ctx context.Context, node string, kind ResourceKind, vmid int) (*GuestStatus, error) {
	data, err := c.do(ctx, http.MethodGet, guestPath(node, kind, vmid)+"/status/current", nil)
	if err != nil {
		return nil, err
	}
	status := &GuestStatus{}
	if err := decode(data, status); err != nil {
		return nil, fmt.Errorf("decode guest status: %w", err)
	}
	return status, nil
}

func (c *RESTClient) GetGuestRRD(ctx context.Context, node string, kind ResourceKind, vmid int) ([]RRDSample, error) {
	params := url.Values{"timeframe": []string{"hour"}}
	data, err := c.do(ctx, http.MethodGet, guestPath(node, kind, vmid)+"/rrddata", params)
	if err != nil {
		return nil, err
	}
	var samples []RRDSample
	if err := decode(data, &samples); err != nil {
		return nil, fmt.Errorf("decode rrd data: %w", err)
	}
	return samples, nil
}

func (c *RESTClient) ListSnapshots(ctx context.Context, node string, kind ResourceKind, vmid int) ([]Snapshot, error) {
	data, err := c.do(ctx, http.MethodGet, guestPath(node, kind, vmid)+"/snapshot", nil)
	if err != nil {
		return nil, err
	}
	var snapshots []Snapshot
	if err := decode(data, &snapshots); err != nil {
		return nil, fmt.Errorf("decode snapshots: %w", err)
	}
	return snapshots, nil
}

func (c *RESTClient) CreateGuest(ctx context.Context, node string, kind ResourceKind, params url.Values) (string, error) {
	data, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/nodes/%s/%s", node, kind), params)
	if err != nil {
		return "", err
	}
	return upid(data)
}

func (c *RESTClient) DeleteGuest(ctx context.Context, node string, kind ResourceKind, vmid int, params url.Values) (string, error) {
	path := guestPath(node, kind, vmid)
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	data, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return "", err
	}
	return upid(data)
}

func (c *RESTClient) GuestAction(ctx context.Context, node string, kind ResourceKind, vmid int, action string, params url.Values) (string, error) {
	data, err := c.do(ctx, http.MethodPost, guestPath(node, kind, vmid)+"/status/"+action, params)
	if err != nil {
		return "", err
	}
	return upid(data)
}

func (c *RESTClient) CreateSnapshot(ctx context.Context, node string, kind ResourceKind, vmid int, params url.Values) (string, error) {
	data, err := c.do(ctx, http.MethodPost, guestPath(node, kind, vmid)+"/snapshot", params)
	if err != nil {
		return "", err
	}
	return upid(data)
}

func (c *RESTClient) DeleteSnapshot(ctx context.Context, node string, kind ResourceKind, vmid int, snapname string) (string, error) {
	data, err := c.do(ctx, http.MethodDelete, guestPath(node, kind, vmid)+"/snapshot/"+snapname, nil)
	if err != nil {
		return "", err
	}
	return upid(data)
}

func (c *RESTClient) RollbackSnapshot(ctx context.Context, node string, kind ResourceKind, vmid int, snapname string) (string, error) {
	data, err := c.do(ctx, http.MethodPost, guestPath(node, kind, vmid)+"/snapshot/"+snapname+"/rollback", nil)
	if err != nil {
		return "", err
	}
	return upid(data)
}

func (c *RESTClient) CreateBackup(ctx context.Context, node string, params url.Values) (string, error) {
	data, err := c.do(ctx, http.MethodPost, "/nodes/"+node+"/vzdump", params)
	if err != nil {
		return "", err
	}
	return upid(data)
}

func (c *RESTClient) DeleteVolume(ctx context.Context, node, storage, volid string) (string, error) {
	path := fmt.Sprintf("/nodes/%s/storage/%s/content/%s", node, storage, url.PathEscape(volid))
	data, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return "", err
	}
	return upid(data)
}

func (c *RESTClient) DownloadURL(ctx context.Context, node, storage string, params url.Values) (string, error) {
	data, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/nodes/%s/storage/%s/download-url", node, storage), params)
	if err != nil {
		return "", err
	}
	return upid(data)
}

func (c *RESTClient) AgentExec(ctx context.Context, node string, vmid int, command string) (*AgentExecResult, error) {
	params := url.Values{"command": []string{command}}
	data, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/nodes/%s/qemu/%d/agent/exec", node, vmid), params)
	if err != nil {
		return nil, err
	}
	var started struct {
		PID int `json:"pid"`
	}
	if err := decode(data, &started); err != nil {
		return nil, fmt.Errorf("decode agent exec: %w", err)
	}

	// The agent reports completion asynchronously; poll exec-status until
	// the process exits or the context is cancelled.
	statusPath := fmt.Sprintf("/nodes/%s/qemu/%d/agent/exec-status", node, vmid)
	statusParams := url.Values{"pid": []string{strconv.Itoa(started.PID)}}
	for {
		data, err := c.do(ctx, http.MethodGet, statusPath, statusParams)
		if err != nil {
			return nil, err
		}
		result := &AgentExecResult{}
		if err := decode(data, result); err != nil {
			return nil, fmt.Errorf("decode agent exec status: %w", err)
		}
		if result.Exited != 0 {
			return result, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

func (c *RESTClient) GetTaskStatus(ctx context.Context, node, upid string) (*TaskStatus, error) {
	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/nodes/%s/tasks/%s/status", node, url.PathEscape(upid)), nil)
	if err != nil {
		return nil, err
	}
	status := &TaskStatus{}
	if err := decode(data, status); err != nil {
		return nil, fmt.Errorf("decode task status: %w", err)
	}
	return status, nil
}
