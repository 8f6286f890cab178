package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"k8s.io/klog/v2"
)

// StaticConfig is the configuration for the server.
// It allows to configure server specific settings and tools to be enabled or disabled.
type StaticConfig struct {
	LogLevel   int    `toml:"log_level,omitzero"`
	Port       string `toml:"port,omitempty"`
	ListOutput string `toml:"list_output,omitempty"`
	// When true, expose only tools annotated with readOnlyHint=true
	ReadOnly bool `toml:"read_only,omitempty"`
	// When true, disable tools annotated with destructiveHint=true
	DisableDestructive bool     `toml:"disable_destructive,omitempty"`
	Toolsets           []string `toml:"toolsets,omitempty"`
	EnabledTools       []string `toml:"enabled_tools,omitempty"`
	DisabledTools      []string `toml:"disabled_tools,omitempty"`

	// APIKey, when set, is required in the X-API-Key header on the REST surface.
	APIKey string `toml:"api_key,omitempty"`

	Proxmox ProxmoxConfig `toml:"proxmox"`
	Tasks   TaskConfig    `toml:"tasks"`

	// Internal: the config.toml directory, to help resolve relative file paths
	configDirPath string
}

// ProxmoxConfig is the connection configuration for the Proxmox VE API.
type ProxmoxConfig struct {
	Host       string `toml:"host,omitempty"`
	Port       int    `toml:"port,omitzero"`
	User       string `toml:"user,omitempty"`
	TokenName  string `toml:"token_name,omitempty"`
	TokenValue string `toml:"token_value,omitempty"`
	VerifySSL  bool   `toml:"verify_ssl,omitempty"`
}

// Validate checks that the connection configuration is complete enough to
// authenticate against a Proxmox API endpoint.
func (p ProxmoxConfig) Validate() error {
	if p.Host == "" {
		return fmt.Errorf("proxmox host is required")
	}
	if p.User == "" || p.TokenName == "" || p.TokenValue == "" {
		return fmt.Errorf("proxmox API token credentials (user, token_name, token_value) are required")
	}
	return nil
}

// TaskConfig tunes asynchronous task tracking.
type TaskConfig struct {
	// DefaultTimeoutSeconds bounds task tracking when a tool call gives no
	// explicit timeout.
	DefaultTimeoutSeconds int `toml:"default_timeout_seconds,omitzero"`
}

type ReadConfigOpt func(cfg *StaticConfig)

// WithDirPath returns a ReadConfigOpt that sets the config directory path.
func WithDirPath(path string) ReadConfigOpt {
	return func(cfg *StaticConfig) {
		cfg.configDirPath = path
	}
}

// Read reads the toml file, applies drop-in configs from configDir (if provided),
// and returns the StaticConfig with any opts applied.
// Loading order: defaults → main config file → drop-in files (lexically sorted) → environment
func Read(configPath string, configDir string, opts ...ReadConfigOpt) (*StaticConfig, error) {
	// Start with defaults
	cfg := Default()

	// Get the absolute dir path for the main config file
	var dirPath string
	if configPath != "" {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path to config file: %w", err)
		}
		dirPath = filepath.Dir(absPath)

		// Load main config file
		klog.V(2).Infof("Loading main config from: %s", configPath)
		if err := mergeConfigFile(cfg, configPath, append(opts, WithDirPath(dirPath))...); err != nil {
			return nil, fmt.Errorf("failed to load main config file %s: %w", configPath, err)
		}
	}

	// Load drop-in config files if directory is specified
	if configDir != "" {
		if err := loadDropInConfigs(cfg, configDir, append(opts, WithDirPath(dirPath))...); err != nil {
			return nil, fmt.Errorf("failed to load drop-in configs from %s: %w", configDir, err)
		}
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// mergeConfigFile reads a config file and merges its values into the target config.
// Values present in the file will overwrite existing values in cfg.
// Values not present in the file will remain unchanged in cfg.
func mergeConfigFile(cfg *StaticConfig, filePath string, opts ...ReadConfigOpt) error {
	configData, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}

	if _, err := toml.NewDecoder(bytes.NewReader(configData)).Decode(cfg); err != nil {
		return fmt.Errorf("failed to decode TOML: %w", err)
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return nil
}

// loadDropInConfigs loads and merges config files from a drop-in directory.
// Files are processed in lexical (alphabetical) order.
// Only files with .toml extension are processed; dotfiles are ignored.
func loadDropInConfigs(cfg *StaticConfig, dropInDir string, opts ...ReadConfigOpt) error {
	// Check if directory exists
	info, err := os.Stat(dropInDir)
	if err != nil {
		if os.IsNotExist(err) {
			klog.V(2).Infof("Drop-in config directory does not exist, skipping: %s", dropInDir)
			return nil
		}
		return fmt.Errorf("failed to stat drop-in directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("drop-in config path is not a directory: %s", dropInDir)
	}

	// Get all .toml files in the directory
	files, err := getSortedConfigFiles(dropInDir)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		klog.V(2).Infof("No drop-in config files found in: %s", dropInDir)
		return nil
	}

	klog.V(2).Infof("Loading %d drop-in config file(s) from: %s", len(files), dropInDir)

	// Merge each file in order
	for _, file := range files {
		klog.V(3).Infof("  - Merging drop-in config: %s", filepath.Base(file))
		if err := mergeConfigFile(cfg, file, opts...); err != nil {
			return fmt.Errorf("failed to merge drop-in config %s: %w", file, err)
		}
	}

	return nil
}

// getSortedConfigFiles returns a sorted list of .toml files in the specified directory.
// Dotfiles (starting with '.') and non-.toml files are ignored.
// Files are sorted lexically (alphabetically) by filename.
func getSortedConfigFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		// Skip directories
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		// Skip dotfiles
		if strings.HasPrefix(name, ".") {
			klog.V(4).Infof("Skipping dotfile: %s", name)
			continue
		}

		// Only process .toml files
		if !strings.HasSuffix(name, ".toml") {
			klog.V(4).Infof("Skipping non-.toml file: %s", name)
			continue
		}

		files = append(files, filepath.Join(dir, name))
	}

	// Sort lexically
	sort.Strings(files)

	return files, nil
}

// ReadToml reads the toml data and returns the StaticConfig, with any opts applied
func ReadToml(configData []byte, opts ...ReadConfigOpt) (*StaticConfig, error) {
	config := Default()
	if _, err := toml.NewDecoder(bytes.NewReader(configData)).Decode(config); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		opt(config)
	}

	return config, nil
}

// applyEnvOverrides lets credentials come from the environment so token
// values can stay out of config files.
func (c *StaticConfig) applyEnvOverrides() {
	if v := os.Getenv("PROXMOX_HOST"); v != "" {
		c.Proxmox.Host = v
	}
	if v := os.Getenv("PROXMOX_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Proxmox.Port = port
		}
	}
	if v := os.Getenv("PROXMOX_USER"); v != "" {
		c.Proxmox.User = v
	}
	if v := os.Getenv("PROXMOX_TOKEN_NAME"); v != "" {
		c.Proxmox.TokenName = v
	}
	if v := os.Getenv("PROXMOX_TOKEN_VALUE"); v != "" {
		c.Proxmox.TokenValue = v
	}
	if v := os.Getenv("PROXMOX_VERIFY_SSL"); v != "" {
		if verify, err := strconv.ParseBool(v); err == nil {
			c.Proxmox.VerifySSL = verify
		}
	}
}
