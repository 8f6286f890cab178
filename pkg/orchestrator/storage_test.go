package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/pve-tools/proxmox-mcp-server/pkg/proxmox"
)

type StorageSuite struct {
	suite.Suite
}

func (s *StorageSuite) TestBlockBackendsProfileRaw() {
	for _, backendType := range []string{"lvm", "lvmthin", "zfspool", "zfs", "zfs-block"} {
		profile := ProfileForType("pool-a", backendType)
		s.Equal(BlockBased, profile.Class, backendType)
		s.Equal(FormatRaw, profile.DiskFormat, backendType)
		s.False(profile.SupportsCloudInit, backendType)
	}
}

func (s *StorageSuite) TestFileBackendsProfileQcow2() {
	for _, backendType := range []string{"dir", "nfs", "cifs", "btrfs"} {
		profile := ProfileForType("pool-b", backendType)
		s.Equal(FileBased, profile.Class, backendType)
		s.Equal(FormatQcow2, profile.DiskFormat, backendType)
		s.True(profile.SupportsCloudInit, backendType)
	}
}

func (s *StorageSuite) TestUnknownBackendDefaultsToFile() {
	profile := ProfileForType("pool-c", "cephfs-experimental")
	s.Equal(FileBased, profile.Class)
	s.Equal(FormatQcow2, profile.DiskFormat)
	s.Equal("cephfs-experimental", profile.BackendType)
}

func (s *StorageSuite) TestClassificationIgnoresCase() {
	profile := ProfileForType("pool-d", "LVMThin")
	s.Equal(BlockBased, profile.Class)
}

type StorageDetectorSuite struct {
	suite.Suite
	client   *fakeClient
	detector *StorageDetector
}

func (s *StorageDetectorSuite) SetupTest() {
	s.client = &fakeClient{
		pools: []proxmox.StoragePool{
			{Storage: "local", Type: "dir", Content: "iso,backup"},
			{Storage: "local-lvm", Type: "lvmthin", Content: "images,rootdir"},
			{Storage: "pve2-only", Type: "zfspool", Content: "images", Nodes: "pve2"},
		},
	}
	s.detector = NewStorageDetector(s.client)
}

func (s *StorageDetectorSuite) TestDetectNamedPool() {
	profile, err := s.detector.Detect(context.Background(), "pve1", "local-lvm")
	s.Require().NoError(err)
	s.Equal("local-lvm", profile.Pool)
	s.Equal(BlockBased, profile.Class)
}

func (s *StorageDetectorSuite) TestDetectRespectsNodeRestriction() {
	_, err := s.detector.Detect(context.Background(), "pve1", "pve2-only")
	s.Require().Error(err)
	s.Equal(ErrNotFound, AsOpError(err).Kind)

	profile, err := s.detector.Detect(context.Background(), "pve2", "pve2-only")
	s.Require().NoError(err)
	s.Equal("pve2-only", profile.Pool)
}

func (s *StorageDetectorSuite) TestAutoSelectSkipsPoolsWithoutImages() {
	profile, err := s.detector.AutoSelect(context.Background(), "pve1")
	s.Require().NoError(err)
	s.Equal("local-lvm", profile.Pool, "'local' holds no images content and must be skipped")
}

func (s *StorageDetectorSuite) TestAutoSelectSkipsDisabledPools() {
	disabled := 0
	s.client.pools = []proxmox.StoragePool{
		{Storage: "dead-pool", Type: "dir", Content: "images", Enabled: &disabled},
		{Storage: "live-pool", Type: "nfs", Content: "images"},
	}
	profile, err := s.detector.AutoSelect(context.Background(), "pve1")
	s.Require().NoError(err)
	s.Equal("live-pool", profile.Pool)
}

func (s *StorageDetectorSuite) TestAutoSelectNoCandidate() {
	s.client.pools = []proxmox.StoragePool{
		{Storage: "local", Type: "dir", Content: "iso,backup"},
	}
	_, err := s.detector.AutoSelect(context.Background(), "pve1")
	s.Require().Error(err)
	s.Equal(ErrNotFound, AsOpError(err).Kind)
}

func TestStorage(t *testing.T) {
	suite.Run(t, new(StorageSuite))
	suite.Run(t, new(StorageDetectorSuite))
}
