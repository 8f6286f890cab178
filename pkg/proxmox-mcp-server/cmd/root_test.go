package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/pve-tools/proxmox-mcp-server/pkg/version"
)

type RootCmdSuite struct {
	suite.Suite
	out *bytes.Buffer
	err *bytes.Buffer
}

func (s *RootCmdSuite) SetupTest() {
	// Connection settings inherited from the environment would mask the
	// validation failures under test.
	for _, name := range []string{"PROXMOX_HOST", "PROXMOX_PORT", "PROXMOX_USER", "PROXMOX_TOKEN_NAME", "PROXMOX_TOKEN_VALUE", "PROXMOX_VERIFY_SSL"} {
		s.T().Setenv(name, "")
	}
	s.out = &bytes.Buffer{}
	s.err = &bytes.Buffer{}
}

func (s *RootCmdSuite) execute(args ...string) error {
	cmd := NewMCPServer(IOStreams{In: &bytes.Buffer{}, Out: s.out, ErrOut: s.err})
	cmd.SetOut(s.out)
	cmd.SetErr(s.err)
	cmd.SetArgs(args)
	return cmd.Execute()
}

func (s *RootCmdSuite) TestVersion() {
	s.Require().NoError(s.execute("--version"))
	s.Contains(s.out.String(), version.Version)
}

func (s *RootCmdSuite) TestInvalidListOutput() {
	err := s.execute("--list-output", "table")
	s.Require().Error(err)
	s.Contains(err.Error(), "invalid output name: table")
}

func (s *RootCmdSuite) TestInvalidToolset() {
	err := s.execute("--toolsets", "cluster,nope")
	s.Require().Error(err)
	s.Contains(err.Error(), `invalid toolset "nope"`)
}

func (s *RootCmdSuite) TestMissingProxmoxHost() {
	err := s.execute()
	s.Require().Error(err)
	s.Contains(err.Error(), "proxmox host is required")
}

func (s *RootCmdSuite) TestMissingTokenCredentials() {
	err := s.execute("--proxmox-host", "pve.example.com")
	s.Require().Error(err)
	s.Contains(err.Error(), "token")
}

func TestRootCmd(t *testing.T) {
	suite.Run(t, new(RootCmdSuite))
}
