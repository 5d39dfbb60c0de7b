package rpc

import (
	"context"
	"time"

	"github.com/vietddude/swapquote/internal/core/domain"
	"github.com/vietddude/swapquote/internal/infra/rpc/routing"
	"github.com/vietddude/swapquote/internal/quoting/metrics"
)

// Client is the per-chain entry point application layers use.
type Client struct {
	chainID domain.ChainID
	router  routing.Router
	retry   routing.RetryConfig
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRetryConfig replaces DefaultRetryConfig.
func WithRetryConfig(cfg routing.RetryConfig) ClientOption {
	return func(c *Client) { c.retry = cfg }
}

// NewClient creates a new RPC client for one chain.
func NewClient(chainID domain.ChainID, router routing.Router, opts ...ClientOption) *Client {
	c := &Client{
		chainID: chainID,
		router:  router,
		retry:   routing.DefaultRetryConfig,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChainID returns the chain the client talks to.
func (c *Client) ChainID() domain.ChainID {
	return c.chainID
}

// Call makes an RPC call with retry and failover across the chain's providers.
func (c *Client) Call(ctx context.Context, method string, params []any) (any, error) {
	cfg := c.retry
	chainLabel := c.chainID.String()
	cfg.OnResult = func(providerName, method string, latency time.Duration, err error) {
		metrics.RPCCallsTotal.WithLabelValues(chainLabel, providerName, method).Inc()
		metrics.RPCLatency.WithLabelValues(chainLabel, providerName, method).Observe(latency.Seconds())
		if err != nil {
			metrics.RPCErrorsTotal.WithLabelValues(chainLabel, providerName, routing.ClassifyError(err).String()).Inc()
		}
	}

	return routing.CallWithRetryAndFailover(ctx, c.router, c.chainID, method, params, cfg)
}

// ProviderHealth returns the health of every provider keyed by name.
func (c *Client) ProviderHealth() map[string]HealthStatus {
	providers := c.router.GetAllProviders(c.chainID)
	out := make(map[string]HealthStatus, len(providers))
	for _, p := range providers {
		out[p.GetName()] = p.GetHealth()
	}
	return out
}

// Close releases every provider's resources.
func (c *Client) Close() error {
	for _, p := range c.router.GetAllProviders(c.chainID) {
		_ = p.Close()
	}
	return nil
}
