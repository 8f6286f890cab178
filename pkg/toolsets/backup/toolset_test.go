package backup

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/pve-tools/proxmox-mcp-server/pkg/api"
	"github.com/pve-tools/proxmox-mcp-server/pkg/orchestrator"
	"github.com/pve-tools/proxmox-mcp-server/pkg/output"
	"github.com/pve-tools/proxmox-mcp-server/pkg/proxmox"
)

type stubClient struct {
	proxmox.Client
	pools         []proxmox.StoragePool
	content       map[string][]proxmox.VolumeItem
	backupParams  url.Values
	restoreParams url.Values
	restoredKind  proxmox.ResourceKind
	deletedVolids []string
}

func (c *stubClient) ListStoragePools(ctx context.Context) ([]proxmox.StoragePool, error) {
	return c.pools, nil
}

func (c *stubClient) ListStorageContent(ctx context.Context, node, storage, content string, vmid int) ([]proxmox.VolumeItem, error) {
	items, ok := c.content[storage]
	if !ok {
		return nil, &proxmox.APIError{StatusCode: 500, Status: "500 Internal Server Error", Message: "storage not reachable"}
	}
	return items, nil
}

func (c *stubClient) CreateBackup(ctx context.Context, node string, params url.Values) (string, error) {
	c.backupParams = params
	return "", nil
}

func (c *stubClient) CreateGuest(ctx context.Context, node string, kind proxmox.ResourceKind, params url.Values) (string, error) {
	c.restoredKind = kind
	c.restoreParams = params
	return "", nil
}

func (c *stubClient) DeleteVolume(ctx context.Context, node, storage, volid string) (string, error) {
	c.deletedVolids = append(c.deletedVolids, volid)
	return "", nil
}

type arguments map[string]any

func (a arguments) GetArguments() map[string]any { return a }

type BackupToolsetSuite struct {
	suite.Suite
	client *stubClient
	tools  map[string]api.ServerTool
}

func (s *BackupToolsetSuite) SetupTest() {
	s.client = &stubClient{
		pools: []proxmox.StoragePool{
			{Storage: "local", Type: "dir", Content: "iso,backup"},
			{Storage: "nfs-backup", Type: "nfs", Content: "backup"},
		},
		content: map[string][]proxmox.VolumeItem{
			"local": {
				{VolID: "local:backup/vzdump-qemu-100-2026_01_01-00_00_00.vma.zst", Content: "backup"},
				{VolID: "local:backup/vzdump-lxc-200-2026_01_02-00_00_00.tar.zst", Content: "backup", Protected: 1},
			},
		},
	}
	s.tools = make(map[string]api.ServerTool)
	for _, tool := range (&Toolset{}).GetTools() {
		s.tools[tool.Tool.Name] = tool
	}
}

func (s *BackupToolsetSuite) call(name string, args arguments) *api.ToolCallResult {
	tool, ok := s.tools[name]
	s.Require().True(ok, "tool %s not registered", name)
	result, err := tool.Handler(api.ToolHandlerParams{
		Context:         context.Background(),
		Client:          s.client,
		Dispatcher:      orchestrator.NewDispatcher(s.client),
		ToolCallRequest: args,
		ListOutput:      output.FromString("json"),
	})
	s.Require().NoError(err)
	return result
}

func (s *BackupToolsetSuite) TestListSkipsUnreachablePools() {
	// nfs-backup has no content registered and answers with an error; the
	// listing still succeeds with what local has.
	result := s.call("list_backups", arguments{"node": "pve1"})
	s.Require().Nil(result.Error)
	s.Contains(result.Content, "vzdump-qemu-100")
	s.Contains(result.Content, "vzdump-lxc-200")
}

func (s *BackupToolsetSuite) TestListSingleStorage() {
	result := s.call("list_backups", arguments{"node": "pve1", "storage": "local"})
	s.Require().Nil(result.Error)
	s.Contains(result.Content, "vzdump-qemu-100")
}

func (s *BackupToolsetSuite) TestCreateBackupDefaults() {
	result := s.call("create_backup", arguments{"node": "pve1", "vmid": float64(100)})
	s.Require().Nil(result.Error)
	s.Equal("100", s.client.backupParams.Get("vmid"))
	s.Equal("zstd", s.client.backupParams.Get("compress"))
	s.Equal("snapshot", s.client.backupParams.Get("mode"))
}

func (s *BackupToolsetSuite) TestCreateBackupRequiresVmid() {
	result := s.call("create_backup", arguments{"node": "pve1"})
	s.Require().NotNil(result.Error)
	s.Contains(result.Error.Error(), "vmid parameter required")
}

func (s *BackupToolsetSuite) TestRestoreDerivesContainerKind() {
	result := s.call("restore_backup", arguments{
		"node":    "pve1",
		"archive": "local:backup/vzdump-lxc-200-2026_01_02-00_00_00.tar.zst",
		"vmid":    float64(250),
	})
	s.Require().Nil(result.Error)
	s.Equal(proxmox.KindContainer, s.client.restoredKind)
	s.Equal("1", s.client.restoreParams.Get("restore"))
	s.NotEmpty(s.client.restoreParams.Get("ostemplate"))
}

func (s *BackupToolsetSuite) TestRestoreDefaultsToVmKind() {
	result := s.call("restore_backup", arguments{
		"node":    "pve1",
		"archive": "local:backup/vzdump-qemu-100-2026_01_01-00_00_00.vma.zst",
		"vmid":    float64(150),
	})
	s.Require().Nil(result.Error)
	s.Equal(proxmox.KindVM, s.client.restoredKind)
	s.NotEmpty(s.client.restoreParams.Get("archive"))
}

func (s *BackupToolsetSuite) TestDeleteRefusesProtectedArchive() {
	result := s.call("delete_backup", arguments{
		"node":  "pve1",
		"volid": "local:backup/vzdump-lxc-200-2026_01_02-00_00_00.tar.zst",
	})
	s.Require().NotNil(result.Error)
	s.Contains(result.Error.Error(), "protected")
	s.Empty(s.client.deletedVolids)
}

func (s *BackupToolsetSuite) TestDeleteBackup() {
	volid := "local:backup/vzdump-qemu-100-2026_01_01-00_00_00.vma.zst"
	result := s.call("delete_backup", arguments{"node": "pve1", "volid": volid})
	s.Require().Nil(result.Error)
	s.Equal([]string{volid}, s.client.deletedVolids)
}

func (s *BackupToolsetSuite) TestDeleteUnknownArchive() {
	result := s.call("delete_backup", arguments{"node": "pve1", "volid": "local:backup/nope.vma.zst"})
	s.Require().NotNil(result.Error)
	s.Contains(result.Error.Error(), "NotFound")
}

func TestBackupToolset(t *testing.T) {
	suite.Run(t, new(BackupToolsetSuite))
}
