package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/joweeba/dTOOL/internal/mcp"
	"github.com/joweeba/dTOOL/internal/retry"
)

// callRetryConfig is the fixed bounded-retry schedule for remote tool
// calls: 3 attempts, 100/200/400ms exponential backoff, no jitter.
// Deliberately not retry.DefaultConfig() (which defaults Jitter:true).
var callRetryConfig = retry.Config{
	MaxAttempts:  3,
	InitialDelay: 100 * time.Millisecond,
	Factor:       2,
	Jitter:       false,
}

// Registry is the shared handle to every configured remote-tool server. It
// implements toolcore.RemoteClient. A server's transport connection is
// established lazily on first use and collapsed across concurrent callers
// via singleflight, so a burst of calls before the first connect completes
// never spawns duplicate subprocesses or handshakes.
type Registry struct {
	logger *slog.Logger

	mu      sync.RWMutex
	configs map[string]*mcp.ServerConfig
	clients map[string]*mcp.Client

	connectGroup singleflight.Group
}

// NewRegistry builds a Registry over the given server configs, keyed by
// ServerConfig.ID.
func NewRegistry(servers []*mcp.ServerConfig, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	configs := make(map[string]*mcp.ServerConfig, len(servers))
	for _, s := range servers {
		configs[s.ID] = s
	}
	return &Registry{
		logger:  logger.With("component", "remote"),
		configs: configs,
		clients: make(map[string]*mcp.Client),
	}
}

// CallTool implements toolcore.RemoteClient. name resolution (parsing the
// mcp__<server>__<tool> qualified name) is the caller's responsibility;
// CallTool takes the already-split server and tool names.
func (r *Registry) CallTool(ctx context.Context, server, tool string, args []byte) (string, bool, error) {
	client, err := r.connect(ctx, server)
	if err != nil {
		return "", false, err
	}

	var arguments map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &arguments); err != nil {
			return "", false, fmt.Errorf("remote: decode arguments: %w", err)
		}
	}

	result, callErr := retry.DoWithValue(ctx, callRetryConfig, func() (*mcp.ToolCallResult, error) {
		res, err := client.CallTool(ctx, tool, arguments)
		if err != nil {
			return nil, err
		}
		return res, nil
	})
	if callErr.Err != nil {
		return "", false, fmt.Errorf("remote: call %s on %s: %w", tool, server, callErr.Err)
	}

	output := joinContent(result.Content)
	return output, !result.IsError, nil
}

// connect returns the connected client for serverID, establishing the
// connection on first use. Concurrent callers for the same server share a
// single in-flight Connect via singleflight.
func (r *Registry) connect(ctx context.Context, serverID string) (*mcp.Client, error) {
	r.mu.RLock()
	if client, ok := r.clients[serverID]; ok && client.Connected() {
		r.mu.RUnlock()
		return client, nil
	}
	r.mu.RUnlock()

	cfg, ok := r.configs[serverID]
	if !ok {
		return nil, fmt.Errorf("remote: server %q not configured", serverID)
	}

	v, err, _ := r.connectGroup.Do(serverID, func() (any, error) {
		r.mu.RLock()
		if existing, ok := r.clients[serverID]; ok && existing.Connected() {
			r.mu.RUnlock()
			return existing, nil
		}
		r.mu.RUnlock()

		client := mcp.NewClient(cfg, r.logger)
		if err := client.Connect(ctx); err != nil {
			return nil, fmt.Errorf("remote: connect %q: %w", serverID, err)
		}

		r.mu.Lock()
		r.clients[serverID] = client
		r.mu.Unlock()
		return client, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*mcp.Client), nil
}

// Close disconnects every established client.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for id, client := range r.clients {
		if err := client.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("remote: close %q: %w", id, err)
		}
		delete(r.clients, id)
	}
	return firstErr
}
