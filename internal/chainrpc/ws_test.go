package chainrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"nhooyr.io/websocket"
)

// rpcEchoRequest is the shape the fake server decodes inbound frames into.
type rpcEchoRequest struct {
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// startFakeRPCServer runs a minimal JSON-RPC-over-WebSocket server. handler
// is invoked once per request in its own goroutine and its return value is
// marshaled as the response's result, so responses can complete and be
// written back out of request order — exercising id-based correlation on
// the client side. Returns a ws:// URL.
func startFakeRPCServer(t *testing.T, handler func(rpcEchoRequest) interface{}) string {
	t.Helper()
	var writeMu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusInternalError, "test server closing")

		ctx := r.Context()
		var wg sync.WaitGroup
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				break
			}
			var req rpcEchoRequest
			if err := json.Unmarshal(data, &req); err != nil {
				continue
			}
			wg.Add(1)
			go func(req rpcEchoRequest) {
				defer wg.Done()
				result := handler(req)
				resp := map[string]interface{}{"id": req.ID, "jsonrpc": "2.0", "result": result}
				payload, err := json.Marshal(resp)
				if err != nil {
					return
				}
				writeMu.Lock()
				_ = conn.Write(ctx, websocket.MessageText, payload)
				writeMu.Unlock()
			}(req)
		}
		wg.Wait()
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWSClientCorrelatesResponsesDeliveredOutOfOrder(t *testing.T) {
	// Every request's response is delayed inversely to its sequence: the
	// first request issued finishes last. A client that mismatched
	// responses to requests (instead of keying off id) would hand the
	// first caller the wrong account's identity.
	url := startFakeRPCServer(t, func(req rpcEchoRequest) interface{} {
		var params []string
		_ = json.Unmarshal(req.Params, &params)
		account := params[0]
		switch account {
		case "slow":
			time.Sleep(60 * time.Millisecond)
		case "fast":
			time.Sleep(5 * time.Millisecond)
		}
		return map[string]string{"display": account}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := Dial(ctx, url)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	var wg sync.WaitGroup
	results := make(map[string]string, 2)
	var mu sync.Mutex
	for _, account := range []string{"slow", "fast"} {
		account := account
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := client.Identity(ctx, account)
			if err != nil {
				t.Errorf("Identity(%s): %v", account, err)
				return
			}
			mu.Lock()
			results[account] = id.Display
			mu.Unlock()
		}()
	}
	wg.Wait()

	if results["slow"] != "slow" {
		t.Fatalf("slow request got mismatched response: %q", results["slow"])
	}
	if results["fast"] != "fast" {
		t.Fatalf("fast request got mismatched response: %q", results["fast"])
	}
}

func TestWSClientConcurrentFanOutAgainstSharedConnection(t *testing.T) {
	// Mirrors internal/rank.enrichIdentities: many concurrent callers share
	// one WSClient/connection. None may observe another's result or error.
	url := startFakeRPCServer(t, func(req rpcEchoRequest) interface{} {
		var params []string
		_ = json.Unmarshal(req.Params, &params)
		return map[string]string{"display": params[0]}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := Dial(ctx, url)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	const n = 32
	var wg sync.WaitGroup
	errs := make([]error, n)
	displays := make([]string, n)
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			account := "acct-" + string(rune('A'+i%26))
			id, err := client.Identity(ctx, account)
			errs[i] = err
			if err == nil {
				displays[i] = id.Display
			}
		}()
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("call %d failed: %v", i, errs[i])
		}
		want := "acct-" + string(rune('A'+i%26))
		if displays[i] != want {
			t.Fatalf("call %d got %q, want %q", i, displays[i], want)
		}
	}
}

func TestWSClientSurfacesRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusInternalError, "test server closing")
		ctx := r.Context()
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var req rpcEchoRequest
		_ = json.Unmarshal(data, &req)
		resp := map[string]interface{}{
			"id":      req.ID,
			"jsonrpc": "2.0",
			"error":   map[string]interface{}{"code": -32000, "message": "boom"},
		}
		payload, _ := json.Marshal(resp)
		_ = conn.Write(ctx, websocket.MessageText, payload)
	}))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := Dial(ctx, url)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	if _, err := client.Identity(ctx, "whoever"); err == nil {
		t.Fatalf("expected an rpc error to surface")
	}
}

func TestWSClientContextCancellationUnblocksPendingCall(t *testing.T) {
	// The server accepts the connection but never replies, so the call must
	// be released by ctx cancellation rather than hang forever.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusInternalError, "test server closing")
		<-r.Context().Done()
	}))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dialCancel()
	client, err := Dial(dialCtx, url)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	callCtx, callCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer callCancel()
	if _, err := client.Identity(callCtx, "whoever"); err == nil {
		t.Fatalf("expected the call to be unblocked by context deadline")
	}
}
