package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"
)

// HTTPProvider implements Provider for JSON-RPC 2.0 over HTTP.
type HTTPProvider struct {
	*healthTracker

	name       string
	endpoint   string
	httpClient *http.Client
	nextID     atomic.Uint64
}

// NewHTTPProvider creates a new HTTP-based RPC provider.
func NewHTTPProvider(name, endpoint string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		healthTracker: newHealthTracker(),
		name:          name,
		endpoint:      endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// GetName returns the provider's name.
func (p *HTTPProvider) GetName() string {
	return p.name
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      uint64 `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "unknown error"
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, msg)
}

type rpcResponse struct {
	ID     uint64    `json:"id"`
	Result any       `json:"result"`
	Error  *rpcError `json:"error"`
}

// Call makes a single JSON-RPC call. Error responses from the node are
// returned as errors but do not mark the provider unhealthy, except when
// they read as throttling.
func (p *HTTPProvider) Call(ctx context.Context, method string, params []any) (any, error) {
	if status := p.Monitor.CheckProviderStatus(); status == StatusThrottled {
		return nil, fmt.Errorf("provider throttled, retry after: %v", p.Monitor.GetRetryAfter())
	}
	if params == nil {
		params = []any{}
	}

	start := time.Now()
	body, err := p.post(ctx, rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      p.nextID.Add(1),
	})
	if err != nil {
		p.recordTransportFailure()
		return nil, err
	}

	var resp rpcResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		p.recordTransportFailure()
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != nil {
		if p.Monitor.DetectThrottlePattern(resp.Error.Message) {
			p.recordTransportFailure()
			return nil, fmt.Errorf("throttle in rpc error: %s", resp.Error.Message)
		}
		p.recordNodeError(time.Since(start))
		return nil, resp.Error
	}

	p.recordSuccess(time.Since(start))
	return resp.Result, nil
}

// Close cleans up resources.
func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// post sends payload and returns the body of a 200 response.
func (p *HTTPProvider) post(ctx context.Context, payload any) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, transportError("rpc call", err)
	}
	defer resp.Body.Close()

	// Rate limit detection
	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := resp.Header.Get("Retry-After")
		p.Monitor.RecordThrottle(http.StatusTooManyRequests, retryAfter)
		return nil, fmt.Errorf("rate limited (429), retry after: %s", retryAfter)
	}

	// IP blocked detection
	if resp.StatusCode == http.StatusForbidden {
		p.Monitor.RecordThrottle(http.StatusForbidden, "")
		return nil, fmt.Errorf("ip blocked (403)")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError("read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		if p.Monitor.DetectThrottlePattern(string(body)) {
			return nil, fmt.Errorf("throttle detected in response: %s", string(body))
		}
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// transportError makes deadline and network timeouts say "timeout"
// regardless of how the standard library phrases them.
func transportError(op string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%s: request timeout: %w", op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
