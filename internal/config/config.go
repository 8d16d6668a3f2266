package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joweeba/dTOOL/internal/mcp"
	"github.com/joweeba/dTOOL/internal/sanitize"
	"github.com/joweeba/dTOOL/pkg/toolcore"
)

// ParallelTasks is max_parallel_tasks's value: either a positive task count
// or the literal string "unlimited". Floor is 1; zero decodes as "unset" so
// applyDefaults can tell it apart from an explicit value.
type ParallelTasks struct {
	value     int
	unlimited bool
}

// Limit returns the effective worker count, with math.MaxInt32 standing in
// for "unlimited".
func (p ParallelTasks) Limit() int {
	if p.unlimited {
		return math.MaxInt32
	}
	return p.value
}

func (p ParallelTasks) Unlimited() bool { return p.unlimited }

func (p ParallelTasks) isZero() bool { return !p.unlimited && p.value == 0 }

func (p *ParallelTasks) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!str" {
		if strings.EqualFold(strings.TrimSpace(node.Value), "unlimited") {
			*p = ParallelTasks{unlimited: true}
			return nil
		}
		return fmt.Errorf("config: max_parallel_tasks %q is not a number or \"unlimited\"", node.Value)
	}

	var asInt int
	if err := node.Decode(&asInt); err != nil {
		return fmt.Errorf("config: max_parallel_tasks must be a positive integer or \"unlimited\"")
	}
	if asInt < 1 {
		return fmt.Errorf("config: max_parallel_tasks must be at least 1, got %d", asInt)
	}
	*p = ParallelTasks{value: asInt}
	return nil
}

func (p ParallelTasks) MarshalYAML() (any, error) {
	if p.unlimited {
		return "unlimited", nil
	}
	return p.value, nil
}

// Config is the full set of recognized options. Fields decode from YAML
// (or JSON5, via LoadRaw's format sniffing); Load applies defaults and a
// handful of environment-variable overrides on top.
type Config struct {
	SandboxMode          string   `yaml:"sandbox_mode"`
	WorkingDirectory     string   `yaml:"working_directory"`
	SandboxWritableRoots []string `yaml:"sandbox_writable_roots"`

	TimeoutSecs        int           `yaml:"timeout_secs"`
	MaxParallelTasks   ParallelTasks `yaml:"max_parallel_tasks"`
	MaxOutputSizeBytes int           `yaml:"max_output_size_bytes"`

	// TraceRedact/MetricsRedact default on. A nil pointer after decode means
	// "not set in the file"; Load resolves it to true unless TRACE_REDACT /
	// METRICS_REDACT is present in the environment and parses as false.
	TraceRedact   *bool `yaml:"trace_redact"`
	MetricsRedact *bool `yaml:"metrics_redact"`

	MCPServers map[string]*mcp.ServerConfig `yaml:"mcp_servers"`

	ApprovalAllowlistPath string `yaml:"approval_allowlist_path"`
	ConfigHotReload       bool   `yaml:"config_hot_reload"`

	// policyPath is not itself a recognized option; it is threaded through
	// by the caller (the approval policy file path) so hot-reload can watch
	// it alongside ApprovalAllowlistPath. See WatchPaths.
	policyPath string
}

// Defaults applied when a config file leaves the corresponding option unset.
const (
	DefaultTimeoutSecs        = 60
	DefaultMaxParallelTasks   = 64
	DefaultMaxOutputSizeBytes = sanitize.DefaultMaxOutputBytes
)

// Load reads, merges ($include), and decodes the config file at path,
// applying defaults and environment-variable overrides. policyPath is the
// approval policy file to additionally watch when hot-reload is enabled; it
// has no YAML key of its own.
func Load(path, policyPath string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, err
	}
	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}
	cfg.policyPath = policyPath
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.SandboxMode) == "" {
		c.SandboxMode = "ReadOnly"
	}
	if c.TimeoutSecs <= 0 {
		c.TimeoutSecs = DefaultTimeoutSecs
	}
	if c.MaxParallelTasks.isZero() {
		c.MaxParallelTasks = ParallelTasks{value: DefaultMaxParallelTasks}
	}
	if c.MaxOutputSizeBytes <= 0 {
		c.MaxOutputSizeBytes = DefaultMaxOutputSizeBytes
	}
	for id, server := range c.MCPServers {
		if server != nil && server.ID == "" {
			server.ID = id
		}
	}
}

// SandboxModeValue parses SandboxMode into toolcore's enum, accepting both
// the PascalCase option values ("ReadOnly", "WorkspaceWrite",
// "DangerFullAccess") and toolcore.SandboxMode.String()'s hyphenated form.
func (c *Config) SandboxModeValue() (toolcore.SandboxMode, error) {
	switch strings.ToLower(strings.ReplaceAll(c.SandboxMode, "-", "")) {
	case "", "readonly":
		return toolcore.SandboxReadOnly, nil
	case "workspacewrite":
		return toolcore.SandboxWorkspaceWrite, nil
	case "dangerfullaccess":
		return toolcore.SandboxDangerFullAccess, nil
	default:
		return 0, fmt.Errorf("config: unrecognized sandbox_mode %q", c.SandboxMode)
	}
}

// TraceRedactEnabled resolves the TraceRedact flag: file value, else
// TRACE_REDACT env var, else the default (on).
func (c *Config) TraceRedactEnabled() bool {
	return resolveRedactFlag(c.TraceRedact, "TRACE_REDACT")
}

// MetricsRedactEnabled resolves the MetricsRedact flag: file value, else
// METRICS_REDACT env var, else the default (on).
func (c *Config) MetricsRedactEnabled() bool {
	return resolveRedactFlag(c.MetricsRedact, "METRICS_REDACT")
}

func resolveRedactFlag(fileValue *bool, envVar string) bool {
	if fileValue != nil {
		return *fileValue
	}
	if raw, ok := os.LookupEnv(envVar); ok {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			return parsed
		}
	}
	return true
}

// WatchPaths returns the file paths hot-reload should watch: the approval
// allowlist and the policy file, skipping either when empty.
func (c *Config) WatchPaths() []string {
	var paths []string
	if c.ApprovalAllowlistPath != "" {
		paths = append(paths, c.ApprovalAllowlistPath)
	}
	if c.policyPath != "" {
		paths = append(paths, c.policyPath)
	}
	return paths
}
