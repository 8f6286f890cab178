package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"k8s.io/klog/v2"
	"k8s.io/klog/v2/textlogger"

	"github.com/pve-tools/proxmox-mcp-server/pkg/config"
	internalhttp "github.com/pve-tools/proxmox-mcp-server/pkg/http"
	"github.com/pve-tools/proxmox-mcp-server/pkg/mcp"
	"github.com/pve-tools/proxmox-mcp-server/pkg/output"
	"github.com/pve-tools/proxmox-mcp-server/pkg/proxmox"
	"github.com/pve-tools/proxmox-mcp-server/pkg/toolsets"
	"github.com/pve-tools/proxmox-mcp-server/pkg/version"
)

const examples = `
# show this help
proxmox-mcp-server -h

# shows version information
proxmox-mcp-server --version

# start STDIO server
proxmox-mcp-server --proxmox-host pve.example.com

# start a streamable HTTP and SSE server on port 8080
proxmox-mcp-server --port 8080 --config /etc/proxmox-mcp-server/config.toml

# start with a config directory of drop-in TOML fragments
proxmox-mcp-server --config-dir /etc/proxmox-mcp-server/conf.d
`

const (
	flagVersion            = "version"
	flagLogLevel           = "log-level"
	flagConfig             = "config"
	flagConfigDir          = "config-dir"
	flagPort               = "port"
	flagProxmoxHost        = "proxmox-host"
	flagToolsets           = "toolsets"
	flagListOutput         = "list-output"
	flagReadOnly           = "read-only"
	flagDisableDestructive = "disable-destructive"
)

// IOStreams bundles the standard streams so tests can capture output.
type IOStreams struct {
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer
}

type MCPServerOptions struct {
	Version            bool
	LogLevel           int
	Port               string
	ProxmoxHost        string
	Toolsets           []string
	ListOutput         string
	ReadOnly           bool
	DisableDestructive bool

	ConfigPath   string
	ConfigDir    string
	StaticConfig *config.StaticConfig

	IOStreams
}

func NewMCPServerOptions(streams IOStreams) *MCPServerOptions {
	return &MCPServerOptions{
		IOStreams:    streams,
		StaticConfig: config.Default(),
	}
}

func NewMCPServer(streams IOStreams) *cobra.Command {
	o := NewMCPServerOptions(streams)
	cmd := &cobra.Command{
		Use:     "proxmox-mcp-server [command] [options]",
		Short:   "Proxmox VE Model Context Protocol (MCP) server",
		Long:    "Proxmox VE Model Context Protocol (MCP) server\n\nExposes Proxmox VE cluster, guest, snapshot, backup and ISO management as MCP tools and a REST API.",
		Example: examples,
		RunE: func(c *cobra.Command, args []string) error {
			if err := o.Complete(c); err != nil {
				return err
			}
			if err := o.Validate(); err != nil {
				return err
			}
			return o.Run()
		},
	}

	cmd.Flags().BoolVar(&o.Version, flagVersion, o.Version, "Print version information and quit")
	cmd.Flags().IntVar(&o.LogLevel, flagLogLevel, o.LogLevel, "Set the log level (from 0 to 9)")
	cmd.Flags().StringVar(&o.ConfigPath, flagConfig, o.ConfigPath, "Path of the config file.")
	cmd.Flags().StringVar(&o.ConfigDir, flagConfigDir, o.ConfigDir, "Path of a directory with drop-in TOML config fragments, merged in lexical order after the main config file.")
	cmd.Flags().StringVar(&o.Port, flagPort, o.Port, "Start a streamable HTTP and SSE HTTP server on the specified port (e.g. 8080). When omitted the server speaks MCP over STDIO.")
	cmd.Flags().StringVar(&o.ProxmoxHost, flagProxmoxHost, o.ProxmoxHost, "Proxmox VE API host. Overrides the config file and the PROXMOX_HOST environment variable.")
	cmd.Flags().StringSliceVar(&o.Toolsets, flagToolsets, o.Toolsets, "Comma-separated list of MCP toolsets to use (available toolsets: "+strings.Join(toolsets.ToolsetNames(), ", ")+"). Defaults to "+strings.Join(o.StaticConfig.Toolsets, ", ")+".")
	cmd.Flags().StringVar(&o.ListOutput, flagListOutput, o.ListOutput, "Output format for resource list operations (one of: "+strings.Join(output.Names, ", ")+"). Defaults to "+o.StaticConfig.ListOutput+".")
	cmd.Flags().BoolVar(&o.ReadOnly, flagReadOnly, o.ReadOnly, "If true, only tools annotated with readOnlyHint=true are exposed")
	cmd.Flags().BoolVar(&o.DisableDestructive, flagDisableDestructive, o.DisableDestructive, "If true, tools annotated with destructiveHint=true are disabled")

	return cmd
}

func (m *MCPServerOptions) Complete(cmd *cobra.Command) error {
	// Read is called even without a config path so that environment
	// overrides (PROXMOX_HOST and friends) always apply.
	cnf, err := config.Read(m.ConfigPath, m.ConfigDir)
	if err != nil {
		return err
	}
	m.StaticConfig = cnf

	m.loadFlags(cmd)

	m.initializeLogging()

	return nil
}

func (m *MCPServerOptions) loadFlags(cmd *cobra.Command) {
	if cmd.Flag(flagLogLevel).Changed {
		m.StaticConfig.LogLevel = m.LogLevel
	}
	if cmd.Flag(flagPort).Changed {
		m.StaticConfig.Port = m.Port
	}
	if cmd.Flag(flagProxmoxHost).Changed {
		m.StaticConfig.Proxmox.Host = m.ProxmoxHost
	}
	if cmd.Flag(flagListOutput).Changed {
		m.StaticConfig.ListOutput = m.ListOutput
	}
	if cmd.Flag(flagReadOnly).Changed {
		m.StaticConfig.ReadOnly = m.ReadOnly
	}
	if cmd.Flag(flagDisableDestructive).Changed {
		m.StaticConfig.DisableDestructive = m.DisableDestructive
	}
	if cmd.Flag(flagToolsets).Changed {
		m.StaticConfig.Toolsets = m.Toolsets
	}
}

func (m *MCPServerOptions) initializeLogging() {
	flagSet := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(flagSet)
	if m.StaticConfig.Port == "" {
		// disable klog output for stdio mode
		// this is needed to avoid klog writing to stderr and breaking the protocol
		_ = flagSet.Parse([]string{"-logtostderr=false", "-alsologtostderr=false", "-stderrthreshold=FATAL"})
		return
	}
	loggerOptions := []textlogger.ConfigOption{textlogger.Output(m.Out)}
	if m.StaticConfig.LogLevel >= 0 {
		loggerOptions = append(loggerOptions, textlogger.Verbosity(m.StaticConfig.LogLevel))
		_ = flagSet.Parse([]string{"--v", strconv.Itoa(m.StaticConfig.LogLevel)})
	}
	logger := textlogger.NewLogger(textlogger.NewConfig(loggerOptions...))
	klog.SetLoggerWithOptions(logger)
}

func (m *MCPServerOptions) Validate() error {
	if m.Version {
		return nil
	}
	if output.FromString(m.StaticConfig.ListOutput) == nil {
		return fmt.Errorf("invalid output name: %s, valid names are: %s", m.StaticConfig.ListOutput, strings.Join(output.Names, ", "))
	}
	if err := toolsets.Validate(m.StaticConfig.Toolsets); err != nil {
		return err
	}
	return m.StaticConfig.Proxmox.Validate()
}

func (m *MCPServerOptions) Run() error {
	if m.Version {
		_, _ = fmt.Fprintf(m.Out, "%s\n", version.Version)
		return nil
	}

	klog.V(1).Info("Starting proxmox-mcp-server")
	klog.V(1).Infof(" - Config: %s", m.ConfigPath)
	klog.V(1).Infof(" - Proxmox host: %s:%d", m.StaticConfig.Proxmox.Host, m.StaticConfig.Proxmox.Port)
	klog.V(1).Infof(" - Toolsets: %s", strings.Join(m.StaticConfig.Toolsets, ", "))
	klog.V(1).Infof(" - ListOutput: %s", m.StaticConfig.ListOutput)
	klog.V(1).Infof(" - Read-only mode: %t", m.StaticConfig.ReadOnly)
	klog.V(1).Infof(" - Disable destructive tools: %t", m.StaticConfig.DisableDestructive)

	client := proxmox.NewRESTClient(proxmox.RESTClientConfig{
		Host:       m.StaticConfig.Proxmox.Host,
		Port:       m.StaticConfig.Proxmox.Port,
		User:       m.StaticConfig.Proxmox.User,
		TokenName:  m.StaticConfig.Proxmox.TokenName,
		TokenValue: m.StaticConfig.Proxmox.TokenValue,
		VerifySSL:  m.StaticConfig.Proxmox.VerifySSL,
	})

	ctx := context.Background()
	if backendVersion, err := client.Version(ctx); err != nil {
		klog.Warningf("Proxmox VE API not reachable at startup: %v", err)
	} else {
		klog.V(1).Infof(" - Proxmox VE version: %s", backendVersion)
	}

	mcpServer, err := mcp.NewServer(mcp.Configuration{StaticConfig: m.StaticConfig}, client)
	if err != nil {
		return fmt.Errorf("failed to initialize MCP server: %w", err)
	}

	m.watchConfig(mcpServer)

	if m.StaticConfig.Port != "" {
		return internalhttp.Serve(ctx, mcpServer, client, m.StaticConfig)
	}

	if err := mcpServer.ServeStdio(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

// watchConfig reloads the server configuration when the config file or any
// drop-in fragment changes on disk.
func (m *MCPServerOptions) watchConfig(mcpServer *mcp.Server) {
	paths := make([]string, 0, 2)
	if m.ConfigPath != "" {
		paths = append(paths, m.ConfigPath)
	}
	if m.ConfigDir != "" {
		paths = append(paths, m.ConfigDir)
	}
	if len(paths) == 0 {
		return
	}
	config.NewWatcher(paths...).Watch(func() error {
		cnf, err := config.Read(m.ConfigPath, m.ConfigDir)
		if err != nil {
			return err
		}
		return mcpServer.ReloadConfiguration(cnf)
	})
}
