package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
)

type BaseConfigSuite struct {
	suite.Suite
}

func (s *BaseConfigSuite) writeConfig(content string) string {
	s.T().Helper()
	tempDir := s.T().TempDir()
	path := filepath.Join(tempDir, "config.toml")
	err := os.WriteFile(path, []byte(content), 0644)
	if err != nil {
		s.T().Fatalf("Failed to write config file %s: %v", path, err)
	}
	return path
}

type ConfigSuite struct {
	BaseConfigSuite
}

func (s *ConfigSuite) TestReadConfigMissingFile() {
	config, err := Read("non-existent-config.toml", "")
	s.Run("returns error for missing file", func() {
		s.Require().NotNil(err, "Expected error for missing file, got nil")
		s.True(errors.Is(err, fs.ErrNotExist), "Expected ErrNotExist, got %v", err)
	})
	s.Run("returns nil config for missing file", func() {
		s.Nil(config, "Expected nil config for missing file")
	})
}

func (s *ConfigSuite) TestReadConfigInvalid() {
	invalidConfigPath := s.writeConfig(`
		list_output = "yaml"
		toolsets = ["cluster", "vm
	`)

	config, err := Read(invalidConfigPath, "")
	s.Run("returns error for invalid file", func() {
		s.Require().NotNil(err, "Expected error for invalid file, got nil")
	})
	s.Run("error message contains toml error", func() {
		s.Truef(strings.Contains(err.Error(), "toml"), "Expected toml decode error, got %v", err)
	})
	s.Run("returns nil config for invalid file", func() {
		s.Nil(config, "Expected nil config for invalid file")
	})
}

func (s *ConfigSuite) TestReadConfigValid() {
	validConfigPath := s.writeConfig(`
		log_level = 1
		port = "9999"
		list_output = "yaml"
		read_only = true
		disable_destructive = true

		toolsets = ["cluster", "vm", "container", "snapshot"]

		enabled_tools = ["get_nodes", "get_vms", "get_containers"]
		disabled_tools = ["delete_vm", "delete_backup"]

		[proxmox]
		host = "pve.example.com"
		port = 8007
		user = "api@pam"
		token_name = "mcp"
		token_value = "secret"
		verify_ssl = true

		[tasks]
		default_timeout_seconds = 120
	`)

	config, err := Read(validConfigPath, "")
	s.Require().NotNil(config)
	s.Run("reads and unmarshalls file", func() {
		s.Nil(err, "Expected nil error for valid file")
		s.Require().NotNil(config, "Expected non-nil config for valid file")
	})
	s.Run("log_level parsed correctly", func() {
		s.Equalf(1, config.LogLevel, "Expected LogLevel to be 1, got %d", config.LogLevel)
	})
	s.Run("port parsed correctly", func() {
		s.Equalf("9999", config.Port, "Expected Port to be 9999, got %s", config.Port)
	})
	s.Run("list_output parsed correctly", func() {
		s.Equalf("yaml", config.ListOutput, "Expected ListOutput to be yaml, got %s", config.ListOutput)
	})
	s.Run("read_only parsed correctly", func() {
		s.Truef(config.ReadOnly, "Expected ReadOnly to be true, got %v", config.ReadOnly)
	})
	s.Run("disable_destructive parsed correctly", func() {
		s.Truef(config.DisableDestructive, "Expected DisableDestructive to be true, got %v", config.DisableDestructive)
	})
	s.Run("toolsets", func() {
		s.Require().Lenf(config.Toolsets, 4, "Expected 4 toolsets, got %d", len(config.Toolsets))
		for _, toolset := range []string{"cluster", "vm", "container", "snapshot"} {
			s.Containsf(config.Toolsets, toolset, "Expected toolset %s to be present", toolset)
		}
	})
	s.Run("enabled_tools parsed correctly", func() {
		s.Lenf(config.EnabledTools, 3, "Expected 3 enabled tools, got %d", len(config.EnabledTools))
	})
	s.Run("disabled_tools parsed correctly", func() {
		s.Lenf(config.DisabledTools, 2, "Expected 2 disabled tools, got %d", len(config.DisabledTools))
	})
	s.Run("proxmox section parsed correctly", func() {
		s.Equal("pve.example.com", config.Proxmox.Host)
		s.Equal(8007, config.Proxmox.Port)
		s.Equal("api@pam", config.Proxmox.User)
		s.Equal("mcp", config.Proxmox.TokenName)
		s.Equal("secret", config.Proxmox.TokenValue)
		s.True(config.Proxmox.VerifySSL)
	})
	s.Run("tasks section parsed correctly", func() {
		s.Equal(120, config.Tasks.DefaultTimeoutSeconds)
	})
}

func (s *ConfigSuite) TestReadConfigDefaults() {
	config, err := Read(s.writeConfig(``), "")
	s.Require().Nil(err)
	s.Run("list_output defaults to pretty", func() {
		s.Equal("pretty", config.ListOutput)
	})
	s.Run("proxmox port defaults to 8006", func() {
		s.Equal(8006, config.Proxmox.Port)
	})
	s.Run("task timeout defaults to 300 seconds", func() {
		s.Equal(300, config.Tasks.DefaultTimeoutSeconds)
	})
	s.Run("default toolsets enabled", func() {
		s.Equal([]string{"cluster", "vm", "container"}, config.Toolsets)
	})
}

func (s *ConfigSuite) TestReadConfigEnvOverrides() {
	s.T().Setenv("PROXMOX_HOST", "env.example.com")
	s.T().Setenv("PROXMOX_TOKEN_VALUE", "env-secret")
	config, err := Read(s.writeConfig(`
		[proxmox]
		host = "file.example.com"
		user = "root@pam"
		token_name = "mcp"
		token_value = "file-secret"
	`), "")
	s.Require().Nil(err)
	s.Run("environment wins over file", func() {
		s.Equal("env.example.com", config.Proxmox.Host)
		s.Equal("env-secret", config.Proxmox.TokenValue)
	})
	s.Run("file values without env override survive", func() {
		s.Equal("root@pam", config.Proxmox.User)
	})
}

func (s *ConfigSuite) TestProxmoxValidate() {
	s.Run("missing host fails", func() {
		err := ProxmoxConfig{User: "u", TokenName: "t", TokenValue: "v"}.Validate()
		s.NotNil(err)
	})
	s.Run("missing token fails", func() {
		err := ProxmoxConfig{Host: "h", User: "u"}.Validate()
		s.NotNil(err)
	})
	s.Run("complete config passes", func() {
		err := ProxmoxConfig{Host: "h", User: "u", TokenName: "t", TokenValue: "v"}.Validate()
		s.Nil(err)
	})
}

type DropInConfigSuite struct {
	BaseConfigSuite
}

func (s *DropInConfigSuite) writeDropIn(dir, name, content string) {
	s.T().Helper()
	err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644)
	if err != nil {
		s.T().Fatalf("Failed to write drop-in config %s: %v", name, err)
	}
}

func (s *DropInConfigSuite) TestDropInMergeOrder() {
	mainConfig := s.writeConfig(`
		list_output = "json"
		[proxmox]
		host = "main.example.com"
	`)
	dropInDir := s.T().TempDir()
	s.writeDropIn(dropInDir, "10-output.toml", `list_output = "yaml"`)
	s.writeDropIn(dropInDir, "20-output.toml", `list_output = "pretty"`)
	s.writeDropIn(dropInDir, ".hidden.toml", `list_output = "json"`)
	s.writeDropIn(dropInDir, "notes.txt", `list_output = "json"`)

	config, err := Read(mainConfig, dropInDir)
	s.Require().Nil(err)
	s.Run("later drop-ins win", func() {
		s.Equal("pretty", config.ListOutput)
	})
	s.Run("dotfiles and non-toml files are ignored", func() {
		s.Equal("main.example.com", config.Proxmox.Host)
	})
}

func (s *DropInConfigSuite) TestDropInMissingDirectory() {
	config, err := Read(s.writeConfig(``), filepath.Join(s.T().TempDir(), "missing"))
	s.Run("missing drop-in directory is not an error", func() {
		s.Nil(err)
		s.NotNil(config)
	})
}

func TestConfig(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func TestDropInConfig(t *testing.T) {
	suite.Run(t, new(DropInConfigSuite))
}
