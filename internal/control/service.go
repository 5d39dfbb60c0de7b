package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/singleflight"

	"github.com/vietddude/swapquote/internal/api"
	"github.com/vietddude/swapquote/internal/core/config"
	"github.com/vietddude/swapquote/internal/core/domain"
	"github.com/vietddude/swapquote/internal/core/worker"
	"github.com/vietddude/swapquote/internal/health"
	"github.com/vietddude/swapquote/internal/infra/chain"
	"github.com/vietddude/swapquote/internal/infra/chain/evm"
	redisclient "github.com/vietddude/swapquote/internal/infra/redis"
	"github.com/vietddude/swapquote/internal/infra/rpc"
	"github.com/vietddude/swapquote/internal/infra/storage"
	"github.com/vietddude/swapquote/internal/infra/storage/memory"
	"github.com/vietddude/swapquote/internal/infra/storage/postgres"
	"github.com/vietddude/swapquote/internal/quoting/quoter"
)

// QuoteCache stores quote results between requests.
type QuoteCache interface {
	Get(ctx context.Context, key redisclient.QuoteKey) (*domain.QuoteResult, bool, error)
	Set(ctx context.Context, key redisclient.QuoteKey, result *domain.QuoteResult) error
}

// chainRuntime holds the per-chain components.
type chainRuntime struct {
	cfg      config.ChainConfig
	client   *rpc.Client
	head     *evm.EVMAdapter
	provider *quoter.Provider
}

// Service is the main application struct wiring chains, storage, cache
// and the HTTP server.
type Service struct {
	cfg    *config.AppConfig
	chains map[domain.ChainID]*chainRuntime
	order  []domain.ChainID

	runs  storage.QuoteRunRepository
	cache QuoteCache
	group singleflight.Group

	db          *postgres.DB
	redisClient *redisclient.Client
	healthMon   *health.Monitor
	server      *api.Server
	log         *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithRunRepository replaces the repository chosen from the database config.
func WithRunRepository(repo storage.QuoteRunRepository) Option {
	return func(s *Service) { s.runs = repo }
}

// WithQuoteCache replaces the cache chosen from the redis config.
func WithQuoteCache(cache QuoteCache) Option {
	return func(s *Service) { s.cache = cache }
}

// NewService creates a Service with all dependencies initialized.
func NewService(ctx context.Context, cfg *config.AppConfig, opts ...Option) (*Service, error) {
	s := &Service{
		cfg:    cfg,
		chains: make(map[domain.ChainID]*chainRuntime),
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	// 1. Initialize Storage
	if s.runs == nil {
		if err := s.initStorage(ctx); err != nil {
			return nil, err
		}
	}

	// 2. Initialize Cache
	if s.cache == nil && cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(ctx, cfg.Redis)
		if err != nil {
			s.log.Warn("Failed to connect to Redis, quote cache disabled", "error", err)
		} else {
			s.redisClient = client
			s.cache = redisclient.NewQuoteCache(client, cfg.Redis)
			s.log.Info("Quote cache enabled", "ttl", cfg.Redis.QuoteTTL)
		}
	}

	// 3. Initialize Chains
	recorder := storage.NewRunRecorder(s.runs, s.log)
	for _, chainCfg := range cfg.Chains {
		rt, err := s.buildChain(chainCfg, recorder)
		if err != nil {
			return nil, fmt.Errorf("chain %s: %w", chainCfg.Name, err)
		}
		s.chains[chainCfg.ChainID] = rt
		s.order = append(s.order, chainCfg.ChainID)
	}

	// 4. Initialize Health Monitor and Server
	s.healthMon = health.NewMonitor(s, s.runs)
	s.server = api.NewServer(api.Config{
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		QuoteTimeout: cfg.Server.QuoteTimeout,
	}, s, s.runs, s.healthMon)

	return s, nil
}

func (s *Service) initStorage(ctx context.Context) error {
	if s.cfg.Database.URL == "" {
		s.runs = memory.NewRunRepo(0)
		s.log.Info("Using Memory storage")
		return nil
	}

	db, err := postgres.NewDB(ctx, s.cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to init db: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to migrate db: %w", err)
	}
	s.db = db
	s.runs = postgres.NewRunRepo(db)
	s.log.Info("Using PostgreSQL storage")
	return nil
}

func (s *Service) buildChain(chainCfg config.ChainConfig, recorder quoter.Recorder) (*chainRuntime, error) {
	chainID := chainCfg.ChainID

	router := rpc.NewRouter()
	for _, p := range chainCfg.Providers {
		provider := rpc.NewHTTPProvider(p.Name, p.URL, chainCfg.RPCTimeout)
		if p.DailyQuota > 0 {
			provider.Monitor.SetDailyLimit(p.DailyQuota)
		}
		router.AddProvider(chainID, provider)
	}

	// Reads retry on their own; quote batches are retried by the coordinator.
	client := rpc.NewClient(chainID, router)
	batchClient := rpc.NewClient(chainID, router, rpc.WithRetryConfig(rpc.RetryConfig{MaxAttempts: 1}))

	multicall := common.HexToAddress(chainCfg.MulticallAddress)
	head := evm.NewEVMAdapter(chainID, client, multicall)
	executor := evm.NewEVMAdapter(chainID, batchClient, multicall)

	var quoteHead chain.BlockNumberReader = head
	if chainCfg.HeadCacheTTL > 0 {
		quoteHead = chain.NewHeadCache(head, chainCfg.HeadCacheTTL)
	}

	provider := quoter.New(
		chainID,
		common.HexToAddress(chainCfg.QuoterAddress),
		evm.NewQuoterCodec(),
		executor,
		quoteHead,
		quoter.WithOptions(chainCfg.Quoter),
		quoter.WithExhaustedGasPolicy(gasPolicy(chainCfg.ExhaustedGasShim)),
		quoter.WithRecorder(recorder),
		quoter.WithLogger(s.log),
	)

	s.log.Info("Chain configured",
		"chain", chainCfg.Name,
		"chain_id", chainID,
		"providers", len(chainCfg.Providers),
		"max_calls_per_chunk", chainCfg.Quoter.Batch.MaxCallsPerChunk,
		"gas_limit_per_call", chainCfg.Quoter.Batch.GasLimitPerCall,
	)

	return &chainRuntime{cfg: chainCfg, client: client, head: head, provider: provider}, nil
}

func gasPolicy(shim *bool) quoter.ExhaustedGasPolicy {
	switch {
	case shim == nil:
		return quoter.DefaultExhaustedGasPolicy
	case *shim:
		return func(domain.ChainID) bool { return true }
	default:
		return quoter.NeverEmptyOnGas
	}
}

// Quote prices req, collapsing identical concurrent requests. Only requests
// pinned to an explicit block go through the cache; a head quote is always
// fresh.
func (s *Service) Quote(ctx context.Context, req domain.QuoteRequest) (*domain.QuoteResult, error) {
	rt, ok := s.chains[req.ChainID]
	if !ok {
		return nil, fmt.Errorf("chain %d: %w", req.ChainID, api.ErrUnknownChain)
	}

	key := redisclient.QuoteKey{
		ChainID:     req.ChainID,
		TradeType:   req.TradeType,
		Routes:      req.Routes,
		Amounts:     req.Amounts,
		BlockNumber: req.BlockNumber,
	}
	hash, err := key.Hash()
	if err != nil {
		return nil, err
	}

	cacheable := s.cache != nil && req.BlockNumber != 0
	if cacheable {
		if res, hit, err := s.cache.Get(ctx, key); err != nil {
			s.log.Warn("Quote cache lookup failed", "chain", rt.cfg.Name, "error", err)
		} else if hit {
			return res, nil
		}
	}

	v, err, _ := s.group.Do(hash, func() (any, error) {
		cfg := quoter.ProviderConfig{OptimisticCachedRoutes: req.Optimistic}
		if req.BlockNumber != 0 {
			cfg.BlockNumber = quoter.FixedBlock(req.BlockNumber)
		}
		return rt.provider.Quote(ctx, req.TradeType, req.Amounts, req.Routes, cfg)
	})
	if err != nil {
		return nil, err
	}
	res := v.(*domain.QuoteResult)

	// Empty results carry no block and are not worth caching.
	if cacheable && res.BlockNumber != 0 {
		if err := s.cache.Set(ctx, key, res); err != nil {
			s.log.Warn("Quote cache store failed", "chain", rt.cfg.Name, "error", err)
		}
	}
	return res, nil
}

// Chains returns the configured chains in config order.
func (s *Service) Chains() []domain.ChainID {
	return slices.Clone(s.order)
}

// GetLatestBlock returns the head of chainID.
func (s *Service) GetLatestBlock(ctx context.Context, chainID domain.ChainID) (uint64, error) {
	rt, ok := s.chains[chainID]
	if !ok {
		return 0, fmt.Errorf("chain %d: %w", chainID, api.ErrUnknownChain)
	}
	return rt.head.GetLatestBlock(ctx)
}

// ProviderHealth returns the provider health of chainID.
func (s *Service) ProviderHealth(chainID domain.ChainID) map[string]rpc.HealthStatus {
	rt, ok := s.chains[chainID]
	if !ok {
		return nil
	}
	return rt.client.ProviderHealth()
}

// Runs returns the quote run repository.
func (s *Service) Runs() storage.QuoteRunRepository {
	return s.runs
}

// Health returns the health monitor.
func (s *Service) Health() *health.Monitor {
	return s.healthMon
}

// Start starts the HTTP server and background tasks. It returns once they
// are running.
func (s *Service) Start(ctx context.Context) error {
	go func() {
		if err := s.server.Start(); err != nil {
			s.log.Error("HTTP server failed", "error", err)
		}
	}()

	go s.healthMon.Start(ctx, s.cfg.Server.HealthInterval)
	go worker.NewRunPruner(s.cfg.Database.RetentionPeriod, s.runs, s.log).Start(ctx)

	if s.db != nil {
		s.db.StartMetricsCollector(ctx)
	}
	return nil
}

// Stop stops the server and releases connections.
func (s *Service) Stop(ctx context.Context) error {
	s.log.Info("Stopping service...")

	var errs []error
	if s.server != nil {
		errs = append(errs, s.server.Stop(ctx))
	}
	errs = append(errs, s.Close())
	return errors.Join(errs...)
}

// Close releases chain, cache and database connections. One-shot commands
// that never call Start use it directly.
func (s *Service) Close() error {
	for _, id := range s.order {
		_ = s.chains[id].client.Close()
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
