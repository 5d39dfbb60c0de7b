package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v2"

	"github.com/vietddude/swapquote/internal/core/domain"
	"github.com/vietddude/swapquote/internal/quoting/quoter"
)

// Canonical Uniswap deployments used when a chain leaves them unset.
const (
	DefaultQuoterAddress    = "0x61fFE014bA17989E743c5F6cB21bF9697530B21e"
	DefaultMulticallAddress = "0x1F98415757620B543A52E61c46B32eB19261F984"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, expanding ${ENV} references, and
// applies defaults.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.QuoteTimeout == 0 {
		cfg.Server.QuoteTimeout = 20 * time.Second
	}
	if cfg.Server.HealthInterval == 0 {
		cfg.Server.HealthInterval = 15 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Redis.QuoteTTL == 0 {
		cfg.Redis.QuoteTTL = 12 * time.Second
	}

	cfg.Quoter = quoter.DefaultOptions().Merge(cfg.Quoter)

	for i := range cfg.Chains {
		c := &cfg.Chains[i]
		if c.Name == "" {
			c.Name = c.ChainID.Name()
		}
		if c.QuoterAddress == "" {
			c.QuoterAddress = DefaultQuoterAddress
		}
		if c.MulticallAddress == "" {
			c.MulticallAddress = DefaultMulticallAddress
		}
		if c.RPCTimeout == 0 {
			c.RPCTimeout = 10 * time.Second
		}
		if c.HeadCacheTTL == 0 {
			c.HeadCacheTTL = time.Second
		}
		for j := range c.Providers {
			if c.Providers[j].Name == "" {
				c.Providers[j].Name = fmt.Sprintf("%s-%d", c.Name, j)
			}
		}
		c.Quoter = cfg.Quoter.Merge(c.Quoter)
	}
}

// Validate reports every configuration problem at once.
func (cfg *AppConfig) Validate() error {
	var errs []error
	seen := make(map[domain.ChainID]bool)

	for i, c := range cfg.Chains {
		if c.ChainID == 0 {
			errs = append(errs, fmt.Errorf("chains[%d]: id is required", i))
		}
		if seen[c.ChainID] {
			errs = append(errs, fmt.Errorf("chains[%d]: duplicate chain id %d", i, c.ChainID))
		}
		seen[c.ChainID] = true

		if !common.IsHexAddress(c.QuoterAddress) {
			errs = append(errs, fmt.Errorf("chains[%d]: invalid quoter_address %q", i, c.QuoterAddress))
		}
		if !common.IsHexAddress(c.MulticallAddress) {
			errs = append(errs, fmt.Errorf("chains[%d]: invalid multicall_address %q", i, c.MulticallAddress))
		}
		if len(c.Providers) == 0 {
			errs = append(errs, fmt.Errorf("chains[%d]: at least one provider is required", i))
		}
		for j, p := range c.Providers {
			if !strings.HasPrefix(p.URL, "http://") && !strings.HasPrefix(p.URL, "https://") {
				errs = append(errs, fmt.Errorf("chains[%d].providers[%d]: url must be http(s), got %q", i, j, p.URL))
			}
		}
		if rate := c.Quoter.Batch.MinSuccessRate; rate < 0 || rate > 1 {
			errs = append(errs, fmt.Errorf("chains[%d]: min_success_rate %v outside [0,1]", i, rate))
		}
	}
	return errors.Join(errs...)
}

// Chain returns the configuration for id.
func (cfg *AppConfig) Chain(id domain.ChainID) (ChainConfig, bool) {
	for _, c := range cfg.Chains {
		if c.ChainID == id {
			return c, true
		}
	}
	return ChainConfig{}, false
}
