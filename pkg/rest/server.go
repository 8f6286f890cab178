package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pve-tools/proxmox-mcp-server/pkg/config"
	"github.com/pve-tools/proxmox-mcp-server/pkg/orchestrator"
	"github.com/pve-tools/proxmox-mcp-server/pkg/proxmox"
)

// Server exposes the orchestration layer over a plain REST surface for
// callers that are not MCP clients (scripts, dashboards, curl).
type Server struct {
	client     proxmox.Client
	dispatcher *orchestrator.Dispatcher
	config     *config.StaticConfig
	engine     *gin.Engine
}

func NewServer(client proxmox.Client, staticConfig *config.StaticConfig) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestIDMiddleware())
	if staticConfig.APIKey != "" {
		engine.Use(apiKeyMiddleware(staticConfig.APIKey))
	}

	dispatcher := orchestrator.NewDispatcher(client)
	dispatcher.SetDefaultTimeout(time.Duration(staticConfig.Tasks.DefaultTimeoutSeconds) * time.Second)

	s := &Server{
		client:     client,
		dispatcher: dispatcher,
		config:     staticConfig,
		engine:     engine,
	}
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler to mount under /api/v1/.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/api/v1")

	v1.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, response{Ok: true})
	})

	v1.GET("/nodes", s.listNodes)
	v1.GET("/nodes/:node/status", s.nodeStatus)
	v1.GET("/cluster/status", s.clusterStatus)
	v1.GET("/storage", s.listStorage)

	v1.GET("/vms", s.listVms)
	v1.POST("/vms", s.createVm)
	v1.POST("/vms/actions", s.vmAction)
	v1.POST("/vms/exec", s.vmExec)

	v1.GET("/containers", s.listContainers)
	v1.POST("/containers/actions", s.containerAction)

	v1.GET("/snapshots", s.listSnapshots)
	v1.POST("/snapshots", s.createSnapshot)
	v1.DELETE("/snapshots", s.deleteSnapshot)
	v1.POST("/snapshots/rollback", s.rollbackSnapshot)

	v1.GET("/backups", s.listBackups)
	v1.POST("/backups", s.createBackup)
	v1.POST("/backups/restore", s.restoreBackup)
	v1.DELETE("/backups", s.deleteBackup)

	v1.GET("/isos", s.listIsos)
	v1.GET("/templates", s.listTemplates)
	v1.POST("/isos", s.downloadIso)
	v1.DELETE("/isos", s.deleteIso)
}
