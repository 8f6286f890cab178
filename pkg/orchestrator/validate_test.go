package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/pve-tools/proxmox-mcp-server/pkg/proxmox"
)

type ValidatorSuite struct {
	suite.Suite
	validator *Validator
}

func (s *ValidatorSuite) SetupTest() {
	s.validator = NewValidator(NewResolver(&fakeClient{
		resources: []proxmox.ClusterResource{vmResource(100, "web-01", "pve1")},
	}))
}

func (s *ValidatorSuite) validate(req *OperationRequest) *OpError {
	err := s.validator.Validate(context.Background(), req)
	if err == nil {
		return nil
	}
	return AsOpError(err)
}

func (s *ValidatorSuite) TestValidCreatePasses() {
	err := s.validate(&OperationRequest{
		Kind:   OpCreate,
		Create: &CreateSpec{Node: "pve1", VMID: 150, Name: "vm", Cpus: 4, Memory: 8192, DiskSize: 50},
	})
	s.Nil(err)
}

func (s *ValidatorSuite) TestCreateBoundaryValues() {
	for _, spec := range []CreateSpec{
		{Node: "pve1", VMID: 150, Name: "low", Cpus: MinCpus, Memory: MinMemory, DiskSize: MinDiskGiB},
		{Node: "pve1", VMID: 150, Name: "high", Cpus: MaxCpus, Memory: MaxMemory, DiskSize: MaxDiskGiB},
	} {
		err := s.validate(&OperationRequest{Kind: OpCreate, Create: &spec})
		s.Nil(err, spec.Name)
	}
}

func (s *ValidatorSuite) TestCreateViolationsAreCollected() {
	err := s.validate(&OperationRequest{
		Kind:   OpCreate,
		Create: &CreateSpec{VMID: 1, Cpus: 0, Memory: 0, DiskSize: 0, DiskFormat: "vmdk"},
	})
	s.Require().NotNil(err)
	s.Equal(ErrValidation, err.Kind)
	// node, vmid, name, cpus, memory, disk_size and format all fail.
	s.Len(err.Violations, 7)
}

func (s *ValidatorSuite) TestTimeoutRange() {
	err := s.validate(&OperationRequest{
		Kind:           OpPower,
		Target:         "100",
		TimeoutSeconds: 601,
		Power:          &PowerSpec{Action: PowerStart},
	})
	s.Require().NotNil(err)
	s.Equal("timeout_seconds", err.Violations[0].Field)

	err = s.validate(&OperationRequest{
		Kind:           OpPower,
		Target:         "100",
		TimeoutSeconds: MaxTimeout,
		Power:          &PowerSpec{Action: PowerStart},
	})
	s.Nil(err)
}

func (s *ValidatorSuite) TestPowerUnknownAction() {
	err := s.validate(&OperationRequest{
		Kind:   OpPower,
		Target: "100",
		Power:  &PowerSpec{Action: "hibernate"},
	})
	s.Require().NotNil(err)
	s.Equal("action", err.Violations[0].Field)
}

func (s *ValidatorSuite) TestPowerMissingSelector() {
	err := s.validate(&OperationRequest{
		Kind:  OpPower,
		Power: &PowerSpec{Action: PowerStart},
	})
	s.Require().NotNil(err)
	s.Equal("selector", err.Violations[0].Field)
}

func (s *ValidatorSuite) TestSnapnameReserved() {
	err := s.validate(&OperationRequest{
		Kind:     OpSnapshotRollback,
		Target:   "100",
		Snapshot: &SnapshotSpec{Snapname: "current"},
	})
	s.Require().NotNil(err)
	s.Contains(err.Violations[0].Reason, "reserved")
}

func (s *ValidatorSuite) TestSnapnameCharacters() {
	for _, name := range []string{"has space", "has/slash", "has:colon"} {
		err := s.validate(&OperationRequest{
			Kind:     OpSnapshotCreate,
			Target:   "100",
			Snapshot: &SnapshotSpec{Snapname: name},
		})
		s.Require().NotNil(err, name)
		s.Equal("snapname", err.Violations[0].Field, name)
	}
}

func (s *ValidatorSuite) TestVmstateOnContainerIsUnsupportedNotInvalid() {
	err := s.validate(&OperationRequest{
		Kind:       OpSnapshotCreate,
		Target:     "100",
		ExpectKind: proxmox.KindContainer,
		Snapshot:   &SnapshotSpec{Snapname: "pre-upgrade", VMState: true},
	})
	s.Require().NotNil(err)
	s.Equal(ErrUnsupportedOption, err.Kind)
	s.Empty(err.Violations)
}

func (s *ValidatorSuite) TestBackupDeleteVolidMustBeQualified() {
	err := s.validate(&OperationRequest{
		Kind:   OpBackupDelete,
		Backup: &BackupSpec{Node: "pve1", VolID: "vzdump-qemu-100.vma.zst"},
	})
	s.Require().NotNil(err)
	s.Contains(err.Violations[0].Reason, "storage-qualified")
}

func (s *ValidatorSuite) TestBackupRestoreRequiresArchive() {
	err := s.validate(&OperationRequest{
		Kind:   OpBackupRestore,
		Backup: &BackupSpec{Node: "pve1", VMID: 300},
	})
	s.Require().NotNil(err)
	s.Equal("archive", err.Violations[0].Field)
}

func (s *ValidatorSuite) TestIsoDownloadURLScheme() {
	err := s.validate(&OperationRequest{
		Kind: OpIsoDownload,
		Iso:  &IsoSpec{Node: "pve1", Storage: "local", URL: "ftp://mirror/image.iso"},
	})
	s.Require().NotNil(err)
	s.Equal("url", err.Violations[0].Field)
}

func (s *ValidatorSuite) TestIsoChecksumAlgorithm() {
	err := s.validate(&OperationRequest{
		Kind: OpIsoDownload,
		Iso: &IsoSpec{
			Node: "pve1", Storage: "local", URL: "https://mirror/image.iso",
			Checksum: "abc", ChecksumAlgorithm: "crc32",
		},
	})
	s.Require().NotNil(err)
	s.Equal("checksum_algorithm", err.Violations[0].Field)
}

func (s *ValidatorSuite) TestUnknownOperationKind() {
	err := s.validate(&OperationRequest{Kind: "defragment"})
	s.Require().NotNil(err)
	s.Equal(ErrValidation, err.Kind)
}

func TestValidator(t *testing.T) {
	suite.Run(t, new(ValidatorSuite))
}
