package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// WebsocketTransport implements the MCP transport over a persistent
// ws://wss:// connection, for servers that advertise one instead of
// spawning a subprocess or accepting plain HTTP POSTs.
type WebsocketTransport struct {
	config *ServerConfig
	logger *slog.Logger

	tokenSource oauth2.TokenSource

	mu   sync.Mutex
	conn *websocket.Conn

	pending   map[int64]chan *JSONRPCResponse
	pendingMu sync.Mutex
	nextID    atomic.Int64

	events   chan *JSONRPCNotification
	requests chan *JSONRPCRequest

	connected atomic.Bool
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewWebsocketTransport creates a new websocket transport.
func NewWebsocketTransport(cfg *ServerConfig) *WebsocketTransport {
	t := &WebsocketTransport{
		config:   cfg,
		logger:   slog.Default().With("mcp_server", cfg.ID, "transport", "websocket"),
		pending:  make(map[int64]chan *JSONRPCResponse),
		events:   make(chan *JSONRPCNotification, 100),
		requests: make(chan *JSONRPCRequest, 100),
		stopChan: make(chan struct{}),
	}
	if cfg.OAuth2 != nil {
		cc := &clientcredentials.Config{
			ClientID:     cfg.OAuth2.ClientID,
			ClientSecret: cfg.OAuth2.ClientSecret,
			TokenURL:     cfg.OAuth2.TokenURL,
			Scopes:       cfg.OAuth2.Scopes,
		}
		t.tokenSource = cc.TokenSource(context.Background())
	}
	return t
}

// Connect dials the websocket endpoint and starts the read loop.
func (t *WebsocketTransport) Connect(ctx context.Context) error {
	if t.config.URL == "" {
		return fmt.Errorf("URL is required for websocket transport")
	}

	header := http.Header{}
	for k, v := range t.config.Headers {
		header.Set(k, v)
	}
	if t.tokenSource != nil {
		tok, err := t.tokenSource.Token()
		if err != nil {
			return fmt.Errorf("refresh oauth2 token: %w", err)
		}
		header.Set("Authorization", "Bearer "+tok.AccessToken)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, t.config.URL, header)
	if err != nil {
		return fmt.Errorf("dial websocket: %w", err)
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	t.connected.Store(true)
	t.logger.Info("websocket transport connected", "url", t.config.URL)

	t.wg.Add(1)
	go t.readLoop()

	return nil
}

// Close tears down the websocket connection.
func (t *WebsocketTransport) Close() error {
	t.connected.Store(false)
	close(t.stopChan)

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}

	t.wg.Wait()
	return nil
}

func (t *WebsocketTransport) writeJSON(v any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return fmt.Errorf("not connected")
	}
	return t.conn.WriteJSON(v)
}

// Call sends a request and waits for its matching response.
func (t *WebsocketTransport) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if !t.connected.Load() {
		return nil, fmt.Errorf("not connected")
	}

	id := t.nextID.Add(1)
	req := JSONRPCRequest{JSONRPC: "2.0", ID: id, Method: method}
	if params != nil {
		paramsJSON, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		req.Params = paramsJSON
	}

	respChan := make(chan *JSONRPCResponse, 1)
	t.pendingMu.Lock()
	t.pending[id] = respChan
	t.pendingMu.Unlock()
	defer func() {
		t.pendingMu.Lock()
		delete(t.pending, id)
		t.pendingMu.Unlock()
	}()

	if err := t.writeJSON(req); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	timeout := t.config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	select {
	case resp := <-respChan:
		if resp.Error != nil {
			return nil, fmt.Errorf("MCP error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return resp.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, fmt.Errorf("request timeout after %v", timeout)
	case <-t.stopChan:
		return nil, fmt.Errorf("transport closed")
	}
}

// Notify sends a notification with no expected response.
func (t *WebsocketTransport) Notify(ctx context.Context, method string, params any) error {
	if !t.connected.Load() {
		return fmt.Errorf("not connected")
	}
	notif := JSONRPCNotification{JSONRPC: "2.0", Method: method}
	if params != nil {
		paramsJSON, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
		notif.Params = paramsJSON
	}
	return t.writeJSON(notif)
}

// Events returns the notification channel.
func (t *WebsocketTransport) Events() <-chan *JSONRPCNotification {
	return t.events
}

// Requests returns the channel of server-initiated requests.
func (t *WebsocketTransport) Requests() <-chan *JSONRPCRequest {
	return t.requests
}

// Respond answers a server-initiated request.
func (t *WebsocketTransport) Respond(ctx context.Context, id any, result any, rpcErr *JSONRPCError) error {
	if !t.connected.Load() {
		return fmt.Errorf("not connected")
	}
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: id, Error: rpcErr}
	if rpcErr == nil && result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		resp.Result = data
	}
	return t.writeJSON(resp)
}

// Connected reports whether the websocket is currently open.
func (t *WebsocketTransport) Connected() bool {
	return t.connected.Load()
}

func (t *WebsocketTransport) readLoop() {
	defer t.wg.Done()
	defer t.connected.Store(false)

	for {
		t.mu.Lock()
		conn := t.conn
		t.mu.Unlock()
		if conn == nil {
			return
		}

		var envelope struct {
			JSONRPC string          `json:"jsonrpc"`
			ID      any             `json:"id"`
			Method  string          `json:"method"`
			Params  json.RawMessage `json:"params,omitempty"`
			Result  json.RawMessage `json:"result,omitempty"`
			Error   *JSONRPCError   `json:"error,omitempty"`
		}
		if err := conn.ReadJSON(&envelope); err != nil {
			select {
			case <-t.stopChan:
				return
			default:
				t.logger.Debug("websocket read error", "error", err)
				return
			}
		}

		switch {
		case envelope.Method != "" && envelope.ID != nil:
			req := &JSONRPCRequest{JSONRPC: envelope.JSONRPC, ID: envelope.ID, Method: envelope.Method, Params: envelope.Params}
			select {
			case t.requests <- req:
			default:
				t.logger.Warn("request channel full, dropping")
			}
		case envelope.Method != "":
			notif := &JSONRPCNotification{JSONRPC: envelope.JSONRPC, Method: envelope.Method, Params: envelope.Params}
			select {
			case t.events <- notif:
			default:
				t.logger.Warn("notification channel full, dropping")
			}
		case envelope.ID != nil:
			t.dispatchResponse(envelope.ID, &JSONRPCResponse{JSONRPC: envelope.JSONRPC, ID: envelope.ID, Result: envelope.Result, Error: envelope.Error})
		}
	}
}

func (t *WebsocketTransport) dispatchResponse(rawID any, resp *JSONRPCResponse) {
	var id int64
	switch v := rawID.(type) {
	case float64:
		id = int64(v)
	case int64:
		id = v
	case int:
		id = int64(v)
	default:
		t.logger.Warn("unexpected response ID type", "id", rawID)
		return
	}

	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	if ch, ok := t.pending[id]; ok {
		select {
		case ch <- resp:
		default:
		}
		delete(t.pending, id)
	}
}
