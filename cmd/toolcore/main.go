// Package main provides the CLI entry point for toolcore, a sandboxed
// tool-execution core for coding agents: shell/file/patch/search built-ins,
// MCP remote tools, approval-gated scheduling, and the observability
// surface around them.
//
// # Basic Usage
//
// Run a single turn, reading a pending-calls AgentState as JSON on stdin
// and writing the resulting AgentState as JSON on stdout:
//
//	toolcore run --config toolcore.yaml < turn.json
//
// Serve Prometheus metrics:
//
//	toolcore serve --config toolcore.yaml --addr :9090
//
// # Environment Variables
//
//   - TOOLCORE_CONFIG: Path to configuration file (default: toolcore.yaml)
//   - TRACE_REDACT / METRICS_REDACT: override trace_redact/metrics_redact
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP/gRPC collector endpoint
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joweeba/dTOOL/internal/approval"
	"github.com/joweeba/dTOOL/internal/config"
	"github.com/joweeba/dTOOL/internal/mcp"
	"github.com/joweeba/dTOOL/internal/observability"
	"github.com/joweeba/dTOOL/internal/orchestrator"
	"github.com/joweeba/dTOOL/internal/remote"
	"github.com/joweeba/dTOOL/internal/sandbox"
	"github.com/joweeba/dTOOL/internal/scheduler"
	"github.com/joweeba/dTOOL/internal/tools/builtin"
	"github.com/joweeba/dTOOL/pkg/toolcore"
)

var (
	version = "dev"
	commit  = "none"
)

// main is the entry point for the toolcore CLI. It sets up the root
// command and all subcommands, then executes based on CLI args.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	var configPath, policyPath string

	root := &cobra.Command{
		Use:     "toolcore",
		Short:   "Sandboxed tool-execution core for coding agents",
		Version: fmt.Sprintf("%s (%s)", version, commit),
	}
	root.PersistentFlags().StringVar(&configPath, "config", envOr("TOOLCORE_CONFIG", "toolcore.yaml"), "path to configuration file")
	root.PersistentFlags().StringVar(&policyPath, "policy", "", "path to the approval policy file")

	root.AddCommand(buildRunCmd(&configPath, &policyPath))
	root.AddCommand(buildServeCmd(&configPath, &policyPath))
	return root
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// turnRequest is the CLI's JSON wire shape for one turn. It carries the
// subset of AgentState a caller can express in a file: the orchestrator
// supplies ExecPolicy/ApprovalCallback/StreamCallback/MCPClient itself.
type turnRequest struct {
	SessionID            string              `json:"session_id"`
	TurnCount            int                 `json:"turn_count"`
	PendingToolCalls     []toolcore.ToolCall `json:"pending_tool_calls"`
	WorkingDirectory     string              `json:"working_directory"`
	SandboxMode          string              `json:"sandbox_mode"`
	SandboxWritableRoots []string            `json:"sandbox_writable_roots"`
}

type turnResponse struct {
	SessionID        string                `json:"session_id"`
	TurnCount        int                   `json:"turn_count"`
	ToolResults      []toolcore.ToolResult `json:"tool_results"`
	PendingToolCalls []toolcore.ToolCall   `json:"pending_tool_calls"`
}

func buildRunCmd(configPath, policyPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run a single turn, reading an AgentState as JSON on stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			var req turnRequest
			if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
				return fmt.Errorf("decode turn request: %w", err)
			}

			env, err := newEnvironment(*configPath, *policyPath)
			if err != nil {
				return err
			}
			defer env.Close()

			mode, err := env.cfg.SandboxModeValue()
			if err != nil {
				return err
			}
			if req.SandboxMode != "" {
				overrideCfg := config.Config{SandboxMode: req.SandboxMode}
				mode, err = overrideCfg.SandboxModeValue()
				if err != nil {
					return err
				}
			}

			state := toolcore.AgentState{
				SessionID:            req.SessionID,
				TurnCount:            req.TurnCount,
				PendingToolCalls:     req.PendingToolCalls,
				WorkingDirectory:     firstNonEmpty(req.WorkingDirectory, env.cfg.WorkingDirectory),
				SandboxMode:          mode,
				SandboxWritableRoots: req.SandboxWritableRoots,
				MCPClient:            env.remoteRegistry,
			}

			next := env.orchestrator.RunTurn(cmd.Context(), state)

			resp := turnResponse{
				SessionID:        next.SessionID,
				TurnCount:        next.TurnCount,
				ToolResults:      next.ToolResults,
				PendingToolCalls: next.PendingToolCalls,
			}
			return json.NewEncoder(os.Stdout).Encode(resp)
		},
	}
}

func buildServeCmd(configPath, policyPath *string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the Prometheus metrics endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnvironment(*configPath, *policyPath)
			if err != nil {
				return err
			}
			defer env.Close()

			mux := http.NewServeMux()
			mux.Handle("/metrics", env.metrics.Handler())
			slog.Info("serving metrics", "addr", addr)
			return http.ListenAndServe(addr, mux)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":9090", "address to serve /metrics on")
	return cmd
}

// maxParallelForScheduler maps ParallelTasks onto scheduler.Config's own
// convention, where 0 (not math.MaxInt32) means unbounded.
func maxParallelForScheduler(p config.ParallelTasks) int {
	if p.Unlimited() {
		return 0
	}
	return p.Limit()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// environment bundles the long-lived pieces assembled once per process from
// config.Config: the sandbox executor, built-in tool registry, approval
// pipeline defaults, optional remote-tool registry, and observability
// instruments.
type environment struct {
	cfg            *config.Config
	orchestrator   *orchestrator.Orchestrator
	metrics        *observability.Metrics
	remoteRegistry *remote.Registry
	pruner         *approval.Pruner
	watcher        *config.Watcher
	shutdownTracer func(context.Context) error
}

func newEnvironment(configPath, policyPath string) (*environment, error) {
	cfg, err := config.Load(configPath, policyPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	mode, err := cfg.SandboxModeValue()
	if err != nil {
		return nil, err
	}

	executor := sandbox.NewExecutor(
		sandbox.WithMode(mode),
		sandbox.WithWorkspaceRoot(cfg.WorkingDirectory),
		sandbox.WithWritableRoots(cfg.SandboxWritableRoots...),
	)
	registry := builtin.NewRegistry(cfg.WorkingDirectory, executor, cfg.MaxOutputSizeBytes)

	store := approval.NewStore(cfg.ApprovalAllowlistPath)
	checker := approval.NewChecker()
	manager := approval.NewManager(store)
	pruner := approval.NewPruner(manager, 15*time.Minute)
	if _, err := pruner.Start("@every 1m"); err != nil {
		return nil, fmt.Errorf("start approval pruner: %w", err)
	}

	var remoteRegistry *remote.Registry
	if len(cfg.MCPServers) > 0 {
		servers := make([]*mcp.ServerConfig, 0, len(cfg.MCPServers))
		for _, server := range cfg.MCPServers {
			servers = append(servers, server)
		}
		remoteRegistry = remote.NewRegistry(servers, slog.Default())
	}

	metrics := observability.NewMetrics(observability.MetricsOptions{DisableRedaction: !cfg.MetricsRedactEnabled()})

	tracer, shutdownTracer := observability.NewTracer(observability.TraceConfig{ServiceName: "toolcore"})

	orch := orchestrator.New(orchestrator.Options{
		Registry:        registry,
		DefaultPolicy:   checker,
		DefaultCallback: manager,
		Config: scheduler.Config{
			MaxParallelTasks: maxParallelForScheduler(cfg.MaxParallelTasks),
			PerToolTimeout:   time.Duration(cfg.TimeoutSecs) * time.Second,
			MaxOutputBytes:   cfg.MaxOutputSizeBytes,
		},
		Metrics: metrics,
		Tracer:  tracer,
	})

	var watcher *config.Watcher
	if cfg.ConfigHotReload {
		watcher = config.NewWatcher(slog.Default())
	}

	return &environment{
		cfg:            cfg,
		orchestrator:   orch,
		metrics:        metrics,
		remoteRegistry: remoteRegistry,
		pruner:         pruner,
		watcher:        watcher,
		shutdownTracer: shutdownTracer,
	}, nil
}

func (e *environment) Close() {
	if e.pruner != nil {
		e.pruner.Stop()
	}
	if e.watcher != nil {
		_ = e.watcher.Close()
	}
	if e.shutdownTracer != nil {
		_ = e.shutdownTracer(context.Background())
	}
}
