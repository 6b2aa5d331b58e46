package chainrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"
	"nhooyr.io/websocket"

	"vrankerd/internal/obsmetrics"
)

// WSClient is a JSON-RPC-over-WebSocket implementation of Client, dialing a
// Substrate node's standard runtime query surface (staking.*, session.*,
// council.*, democracy.*, chain.getBlock).
//
// nhooyr.io/websocket permits at most one concurrent reader and one
// concurrent writer per connection. ChainSnapshot fans multiple RPC calls
// out concurrently against a single WSClient (errgroup fan-out plus a
// bounded identity-enrichment pool), so WSClient serializes writes behind
// writeMu and runs a single dedicated read-pump goroutine that demultiplexes
// responses back to their caller by request id.
type WSClient struct {
	conn    *websocket.Conn
	url     string
	limiter *rate.Limiter
	metrics *obsmetrics.PipelineMetrics
	nextID  int64

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[int64]chan rpcResult
	readErr error

	pumpCancel context.CancelFunc
}

// Option configures a WSClient at Dial time.
type Option func(*WSClient)

// WithRateLimit bounds outbound request bursts against the node.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *WSClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithMetrics records every RPC failure against the pipeline's
// vranker_rpc_errors_total counter, segmented by method.
func WithMetrics(m *obsmetrics.PipelineMetrics) Option {
	return func(c *WSClient) {
		c.metrics = m
	}
}

// Dial opens a WebSocket connection to the given wsProviderUrl and starts
// its read-pump goroutine.
func Dial(ctx context.Context, url string, opts ...Option) (*WSClient, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc %s: %w", url, err)
	}
	c := &WSClient{
		conn:    conn,
		url:     url,
		limiter: rate.NewLimiter(rate.Inf, 0),
		pending: make(map[int64]chan rpcResult),
	}
	for _, opt := range opts {
		opt(c)
	}
	pumpCtx, cancel := context.WithCancel(context.Background())
	c.pumpCancel = cancel
	go c.readPump(pumpCtx)
	return c, nil
}

// Close releases the underlying WebSocket connection and stops the
// read-pump goroutine.
func (c *WSClient) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	if c.pumpCancel != nil {
		c.pumpCancel()
	}
	return c.conn.Close(websocket.StatusNormalClosure, "client closing")
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int64         `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResult struct {
	resp rpcResponse
	err  error
}

// readPump owns the connection's single reader. It decodes every inbound
// frame, looks up the pending call waiting on that frame's id, and hands
// the result off on that call's private channel. If the connection breaks,
// every still-pending call is woken with the read error.
func (c *WSClient) readPump(ctx context.Context) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			c.failAllPending(err)
			return
		}
		var resp rpcResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			// Malformed frame: nothing we can correlate it to. Drop it; the
			// caller awaiting the matching id will eventually see ctx
			// cancellation or a later failAllPending if the connection dies.
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- rpcResult{resp: resp}
		}
	}
}

func (c *WSClient) failAllPending(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readErr = err
	for id, ch := range c.pending {
		ch <- rpcResult{err: err}
		delete(c.pending, id)
	}
}

// call issues a single JSON-RPC method call and decodes the result into
// out. It blocks on the rate limiter before writing, then waits for the
// read-pump to deliver the response carrying the matching request id.
func (c *WSClient) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		c.recordError(method)
		return fmt.Errorf("rate limit wait for %s: %w", method, err)
	}

	id := atomic.AddInt64(&c.nextID, 1)
	req := rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	payload, err := json.Marshal(req)
	if err != nil {
		c.recordError(method)
		return fmt.Errorf("encode rpc request %s: %w", method, err)
	}

	resultCh := make(chan rpcResult, 1)
	c.mu.Lock()
	if c.readErr != nil {
		readErr := c.readErr
		c.mu.Unlock()
		c.recordError(method)
		return fmt.Errorf("chain rpc connection closed: %w", readErr)
	}
	c.pending[id] = resultCh
	c.mu.Unlock()

	c.writeMu.Lock()
	writeErr := c.conn.Write(ctx, websocket.MessageText, payload)
	c.writeMu.Unlock()
	if writeErr != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		c.recordError(method)
		return fmt.Errorf("write rpc request %s: %w", method, writeErr)
	}

	var result rpcResult
	select {
	case result = <-resultCh:
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		c.recordError(method)
		return fmt.Errorf("await rpc response %s: %w", method, ctx.Err())
	}

	if result.err != nil {
		c.recordError(method)
		return fmt.Errorf("read rpc response %s: %w", method, result.err)
	}
	if result.resp.Error != nil {
		c.recordError(method)
		return fmt.Errorf("rpc error %s: %d %s", method, result.resp.Error.Code, result.resp.Error.Message)
	}
	if out == nil || len(result.resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(result.resp.Result, out); err != nil {
		c.recordError(method)
		return fmt.Errorf("decode rpc response %s: %w", method, err)
	}
	return nil
}

func (c *WSClient) recordError(method string) {
	if c.metrics != nil {
		c.metrics.RecordRPCError(method)
	}
}
