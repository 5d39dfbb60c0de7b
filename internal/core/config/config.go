package config

import (
	"time"

	"github.com/vietddude/swapquote/internal/core/domain"
	redisclient "github.com/vietddude/swapquote/internal/infra/redis"
	"github.com/vietddude/swapquote/internal/infra/storage/postgres"
	"github.com/vietddude/swapquote/internal/quoting/quoter"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Logging  LoggingConfig      `yaml:"logging"`
	Quoter   quoter.Options     `yaml:"quoter"`
	Chains   []ChainConfig      `yaml:"chains"`
	Redis    redisclient.Config `yaml:"redis"`
	Database postgres.Config    `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// QuoteTimeout bounds a single /quote request.
	QuoteTimeout time.Duration `yaml:"quote_timeout"`
	// HealthInterval is how often chain heads are probed.
	HealthInterval time.Duration `yaml:"health_interval"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ChainConfig holds settings for a specific blockchain.
type ChainConfig struct {
	ChainID          domain.ChainID   `yaml:"id"`
	Name             string           `yaml:"name"`
	QuoterAddress    string           `yaml:"quoter_address"`
	MulticallAddress string           `yaml:"multicall_address"`
	RPCTimeout       time.Duration    `yaml:"rpc_timeout"`
	Providers        []ProviderConfig `yaml:"providers"`

	// HeadCacheTTL is how long the chain head is reused between quotes.
	// Negative disables the cache.
	HeadCacheTTL time.Duration `yaml:"head_cache_ttl"`

	// Quoter overrides the global quoter options for this chain. After Load
	// it holds the fully merged options.
	Quoter quoter.Options `yaml:"quoter"`

	// ExhaustedGasShim forces the empty-result behaviour on persistent out
	// of gas on (true) or off (false). Unset keeps the built-in chain list.
	ExhaustedGasShim *bool `yaml:"exhausted_gas_shim"`
}

// ProviderConfig holds settings for an RPC provider.
type ProviderConfig struct {
	Name       string `yaml:"name"`
	URL        string `yaml:"url"`
	DailyQuota int    `yaml:"daily_quota"` // 0 = monitor default
}
