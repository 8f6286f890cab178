package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pve-tools/proxmox-mcp-server/pkg/orchestrator"
	"github.com/pve-tools/proxmox-mcp-server/pkg/proxmox"
)

// response is the uniform JSON envelope every REST endpoint answers with.
type response struct {
	Ok    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, response{Ok: true, Data: data})
}

func fail(c *gin.Context, status int, err error) {
	c.JSON(status, response{Error: err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, response{Error: msg})
}

// statusForErrorKind maps the operation error taxonomy onto HTTP status codes.
func statusForErrorKind(kind orchestrator.ErrorKind) int {
	switch kind {
	case orchestrator.ErrValidation, orchestrator.ErrKindMismatch, orchestrator.ErrUnsupportedOption:
		return http.StatusBadRequest
	case orchestrator.ErrNotFound:
		return http.StatusNotFound
	case orchestrator.ErrAmbiguous, orchestrator.ErrConflict:
		return http.StatusConflict
	case orchestrator.ErrTimedOut:
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

// outcomeResponse renders a dispatched operation outcome. The outcome body is
// always returned so callers see the last observed task state even on timeout.
func outcomeResponse(c *gin.Context, outcome *orchestrator.OperationOutcome) {
	if outcome.Err != nil {
		c.JSON(statusForErrorKind(outcome.Err.Kind), response{Data: outcome, Error: outcome.Err.Error()})
		return
	}
	ok(c, outcome)
}

func (s *Server) dispatch(c *gin.Context, req *orchestrator.OperationRequest) {
	outcomeResponse(c, s.dispatcher.Dispatch(c.Request.Context(), req))
}

// Inventory.

func (s *Server) listNodes(c *gin.Context) {
	nodes, err := s.client.ListNodes(c.Request.Context())
	if err != nil {
		fail(c, http.StatusBadGateway, err)
		return
	}
	ok(c, nodes)
}

func (s *Server) nodeStatus(c *gin.Context) {
	status, err := s.client.GetNodeStatus(c.Request.Context(), c.Param("node"))
	if err != nil {
		fail(c, http.StatusBadGateway, err)
		return
	}
	ok(c, status)
}

func (s *Server) clusterStatus(c *gin.Context) {
	status, err := s.client.GetClusterStatus(c.Request.Context())
	if err != nil {
		fail(c, http.StatusBadGateway, err)
		return
	}
	ok(c, status)
}

func (s *Server) listStorage(c *gin.Context) {
	pools, err := s.client.ListStoragePools(c.Request.Context())
	if err != nil {
		fail(c, http.StatusBadGateway, err)
		return
	}
	type poolEntry struct {
		proxmox.StoragePool
		Profile orchestrator.StorageProfile `json:"profile"`
	}
	entries := make([]poolEntry, 0, len(pools))
	for _, pool := range pools {
		entries = append(entries, poolEntry{StoragePool: pool, Profile: orchestrator.ProfileForType(pool.Storage, pool.Type)})
	}
	ok(c, entries)
}

func (s *Server) listGuests(c *gin.Context, kind proxmox.ResourceKind) {
	resources, err := s.client.ListClusterResources(c.Request.Context())
	if err != nil {
		fail(c, http.StatusBadGateway, err)
		return
	}
	node := c.Query("node")
	filtered := make([]proxmox.ClusterResource, 0, len(resources))
	for _, res := range resources {
		if res.Kind() != kind {
			continue
		}
		if node != "" && res.Node != node {
			continue
		}
		filtered = append(filtered, res)
	}
	ok(c, filtered)
}

func (s *Server) listVms(c *gin.Context) {
	s.listGuests(c, proxmox.KindVM)
}

func (s *Server) listContainers(c *gin.Context) {
	s.listGuests(c, proxmox.KindContainer)
}

// VM lifecycle.

type createVmRequest struct {
	orchestrator.CreateSpec
	TimeoutSeconds int `json:"timeout_seconds"`
}

func (s *Server) createVm(c *gin.Context) {
	var body createVmRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	if body.Cpus == 0 {
		body.Cpus = 1
	}
	if body.Memory == 0 {
		body.Memory = 2048
	}
	if body.DiskSize == 0 {
		body.DiskSize = 10
	}
	s.dispatch(c, &orchestrator.OperationRequest{
		Kind:           orchestrator.OpCreate,
		ExpectKind:     proxmox.KindVM,
		TimeoutSeconds: body.TimeoutSeconds,
		Create:         &body.CreateSpec,
	})
}

type guestActionRequest struct {
	Selector       string `json:"selector"`
	Action         string `json:"action"`
	Graceful       *bool  `json:"graceful"`
	Force          bool   `json:"force"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

func (s *Server) vmAction(c *gin.Context) {
	var body guestActionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	if body.Action == "delete" {
		s.dispatch(c, &orchestrator.OperationRequest{
			Kind:           orchestrator.OpDelete,
			Target:         body.Selector,
			ExpectKind:     proxmox.KindVM,
			TimeoutSeconds: body.TimeoutSeconds,
			Power:          &orchestrator.PowerSpec{Force: body.Force},
		})
		return
	}
	s.dispatch(c, &orchestrator.OperationRequest{
		Kind:           orchestrator.OpPower,
		Target:         body.Selector,
		ExpectKind:     proxmox.KindVM,
		TimeoutSeconds: body.TimeoutSeconds,
		Power: &orchestrator.PowerSpec{
			Action:         orchestrator.PowerAction(body.Action),
			TimeoutSeconds: body.TimeoutSeconds,
		},
	})
}

type execRequest struct {
	Selector string `json:"selector"`
	Command  string `json:"command"`
}

func (s *Server) vmExec(c *gin.Context) {
	var body execRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	if body.Command == "" {
		badRequest(c, "command is required")
		return
	}
	ref, err := s.dispatcher.Resolver().Resolve(c.Request.Context(), body.Selector, proxmox.KindVM)
	if err != nil {
		opErr := orchestrator.AsOpError(err)
		c.JSON(statusForErrorKind(opErr.Kind), response{Error: opErr.Error()})
		return
	}
	result, err := s.client.AgentExec(c.Request.Context(), ref.Node, ref.ID, body.Command)
	if err != nil {
		fail(c, http.StatusBadGateway, err)
		return
	}
	ok(c, result)
}

// Containers.

func (s *Server) containerAction(c *gin.Context) {
	var body guestActionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	action := orchestrator.PowerAction(body.Action)
	if action == "restart" {
		action = orchestrator.PowerReboot
	}
	graceful := body.Graceful == nil || *body.Graceful
	s.dispatch(c, &orchestrator.OperationRequest{
		Kind:           orchestrator.OpPower,
		Target:         body.Selector,
		ExpectKind:     proxmox.KindContainer,
		TimeoutSeconds: body.TimeoutSeconds,
		Power: &orchestrator.PowerSpec{
			Action:         action,
			Graceful:       graceful,
			TimeoutSeconds: body.TimeoutSeconds,
		},
	})
}

// Snapshots.

func (s *Server) listSnapshots(c *gin.Context) {
	selector := c.Query("selector")
	if selector == "" {
		badRequest(c, "selector query parameter is required")
		return
	}
	ref, err := s.dispatcher.Resolver().Resolve(c.Request.Context(), selector, orchestrator.KindAny)
	if err != nil {
		opErr := orchestrator.AsOpError(err)
		c.JSON(statusForErrorKind(opErr.Kind), response{Error: opErr.Error()})
		return
	}
	snapshots, err := s.client.ListSnapshots(c.Request.Context(), ref.Node, ref.Kind, ref.ID)
	if err != nil {
		fail(c, http.StatusBadGateway, err)
		return
	}
	ok(c, snapshots)
}

type snapshotRequest struct {
	Selector       string `json:"selector"`
	Snapname       string `json:"snapname"`
	Description    string `json:"description"`
	VMState        bool   `json:"vmstate"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

func (s *Server) createSnapshot(c *gin.Context) {
	var body snapshotRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	s.dispatch(c, &orchestrator.OperationRequest{
		Kind:           orchestrator.OpSnapshotCreate,
		Target:         body.Selector,
		TimeoutSeconds: body.TimeoutSeconds,
		Snapshot: &orchestrator.SnapshotSpec{
			Snapname:    body.Snapname,
			Description: body.Description,
			VMState:     body.VMState,
		},
	})
}

func (s *Server) deleteSnapshot(c *gin.Context) {
	s.dispatch(c, &orchestrator.OperationRequest{
		Kind:     orchestrator.OpSnapshotDelete,
		Target:   c.Query("selector"),
		Snapshot: &orchestrator.SnapshotSpec{Snapname: c.Query("snapname")},
	})
}

func (s *Server) rollbackSnapshot(c *gin.Context) {
	var body snapshotRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	s.dispatch(c, &orchestrator.OperationRequest{
		Kind:           orchestrator.OpSnapshotRollback,
		Target:         body.Selector,
		TimeoutSeconds: body.TimeoutSeconds,
		Snapshot:       &orchestrator.SnapshotSpec{Snapname: body.Snapname},
	})
}

// Backups.

func (s *Server) listBackups(c *gin.Context) {
	node := c.Query("node")
	if node == "" {
		badRequest(c, "node query parameter is required")
		return
	}
	vmid := 0
	if raw := c.Query("vmid"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "vmid must be an integer")
			return
		}
		vmid = parsed
	}
	storage := c.Query("storage")
	storages := []string{storage}
	if storage == "" {
		pools, err := s.client.ListStoragePools(c.Request.Context())
		if err != nil {
			fail(c, http.StatusBadGateway, err)
			return
		}
		storages = storages[:0]
		for _, pool := range pools {
			if pool.IsEnabled() {
				storages = append(storages, pool.Storage)
			}
		}
	}
	backups := make([]proxmox.VolumeItem, 0)
	for _, name := range storages {
		items, err := s.client.ListStorageContent(c.Request.Context(), node, name, "backup", vmid)
		if err != nil {
			continue
		}
		backups = append(backups, items...)
	}
	ok(c, backups)
}

type backupRequest struct {
	orchestrator.BackupSpec
	TimeoutSeconds int `json:"timeout_seconds"`
}

func (s *Server) createBackup(c *gin.Context) {
	var body backupRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	s.dispatch(c, &orchestrator.OperationRequest{
		Kind:           orchestrator.OpBackupCreate,
		TimeoutSeconds: body.TimeoutSeconds,
		Backup:         &body.BackupSpec,
	})
}

func (s *Server) restoreBackup(c *gin.Context) {
	var body backupRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	s.dispatch(c, &orchestrator.OperationRequest{
		Kind:           orchestrator.OpBackupRestore,
		TimeoutSeconds: body.TimeoutSeconds,
		Backup:         &body.BackupSpec,
	})
}

func (s *Server) deleteBackup(c *gin.Context) {
	s.dispatch(c, &orchestrator.OperationRequest{
		Kind: orchestrator.OpBackupDelete,
		Backup: &orchestrator.BackupSpec{
			Node:  c.Query("node"),
			VolID: c.Query("volid"),
		},
	})
}

// ISO images and container templates.

func (s *Server) listContent(c *gin.Context, content string) {
	node := c.Query("node")
	storage := c.Query("storage")
	if node == "" || storage == "" {
		badRequest(c, "node and storage query parameters are required")
		return
	}
	items, err := s.client.ListStorageContent(c.Request.Context(), node, storage, content, 0)
	if err != nil {
		fail(c, http.StatusBadGateway, err)
		return
	}
	ok(c, items)
}

func (s *Server) listIsos(c *gin.Context) {
	s.listContent(c, "iso")
}

func (s *Server) listTemplates(c *gin.Context) {
	s.listContent(c, "vztmpl")
}

type isoRequest struct {
	orchestrator.IsoSpec
	TimeoutSeconds int `json:"timeout_seconds"`
}

func (s *Server) downloadIso(c *gin.Context) {
	var body isoRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	s.dispatch(c, &orchestrator.OperationRequest{
		Kind:           orchestrator.OpIsoDownload,
		TimeoutSeconds: body.TimeoutSeconds,
		Iso:            &body.IsoSpec,
	})
}

func (s *Server) deleteIso(c *gin.Context) {
	s.dispatch(c, &orchestrator.OperationRequest{
		Kind: orchestrator.OpIsoDelete,
		Iso: &orchestrator.IsoSpec{
			Node:     c.Query("node"),
			Storage:  c.Query("storage"),
			Filename: c.Query("filename"),
		},
	})
}
