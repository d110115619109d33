// Package service wires the stores, the ledger and the grant coordinator into
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/okian/podium/internal/adapters/mq/queue"
	"github.com/okian/podium/internal/adapters/mq/worker"
	"github.com/okian/podium/internal/adapters/repository"
	"github.com/okian/podium/internal/adapters/repository/redisledger"
	"github.com/okian/podium/internal/adapters/repository/sqlstore"
	"github.com/okian/podium/internal/config"
	"github.com/okian/podium/internal/domain/aggregate"
	"github.com/okian/podium/internal/domain/grant"
	"github.com/okian/podium/internal/domain/ledger"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/internal/domain/ranking"
	"github.com/okian/podium/pkg/logger"
	"github.com/okian/podium/pkg/metrics"
)

const stopTimeout = 30 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

// Service implements the API dependencies for the leaderboard.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	// Core components
	scores   repository.Store
	ledger   ledger.Ledger
	agg      *aggregate.Aggregator
	coord    *grant.Coordinator
	releases *queue.InMemoryQueue
	pool     *worker.Pool

	// closers run in reverse order on Stop; injected components are not closed
	closers []func() error
	// owned backends were built from config and are dropped once closed
	ownScores bool
	ownLedger bool

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig sets the configuration. Defaults to config.New().
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithScoreStore injects a score store instead of building one from config.
func WithScoreStore(store repository.Store) Option {
	return func(s *Service) { s.scores = store }
}

// WithLedger injects a ledger instead of building one from config.
func WithLedger(l ledger.Ledger) Option {
	return func(s *Service) { s.ledger = l }
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service.
func New(opts ...Option) *Service {
	s := &Service{cfg: config.New()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the configured backends and starts the release workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	cfg := s.cfg

	s.logger.Info(ctx, "starting leaderboard service...",
		logger.String("score_store", cfg.ScoreStore),
		logger.String("ledger", cfg.Ledger),
		logger.Any("streams", cfg.Streams),
	)

	if err := s.openScoreStore(ctx); err != nil {
		s.closeAll(ctx)
		return err
	}
	if err := s.openLedger(ctx); err != nil {
		s.closeAll(ctx)
		return err
	}
	if cfg.SeedFile != "" {
		if err := s.seed(ctx, cfg.SeedFile); err != nil {
			s.closeAll(ctx)
			return err
		}
	}

	s.agg = aggregate.New(s.scores, aggregate.WithLogger(s.logger.Named("aggregate")))

	s.releases = queue.NewInMemoryQueue(queue.WithCapacity(cfg.ReleaseQueueSize))
	s.pool = worker.NewPool(cfg.ReleaseWorkers, s.releases, s.ledger,
		worker.WithMaxAttempts(cfg.ReleaseMaxAttempts),
		worker.WithBackoff(cfg.ReleaseBackoff),
		worker.WithAttemptTimeout(cfg.ReleaseTimeout),
		worker.WithLogger(s.logger.Named("release-worker")),
	)
	// workers outlive the start request
	s.pool.Start(context.WithoutCancel(ctx))

	s.coord = grant.New(s.agg, s.ledger, s.scores,
		grant.WithStreams(cfg.Streams...),
		grant.WithDefaultStream(cfg.DefaultStream),
		grant.WithEligibleTopN(cfg.EligibleTopN),
		grant.WithTimeout(cfg.GrantTimeout),
		grant.WithReleaseTimeout(cfg.ReleaseTimeout),
		grant.WithCompensator(s.releases),
		grant.WithLogger(s.logger.Named("grant")),
	)

	s.started = true
	s.logger.Info(ctx, "leaderboard service started",
		logger.String("default_stream", s.coord.DefaultStream()),
		logger.Int("eligible_top_n", cfg.EligibleTopN),
		logger.Int("release_workers", s.pool.Size()),
	)
	return nil
}

func (s *Service) openScoreStore(ctx context.Context) error {
	if s.scores != nil {
		return nil
	}
	cfg := s.cfg
	switch cfg.ScoreStore {
	case config.StoreMemory:
		s.scores = repository.NewMemoryStore(repository.WithStreams(cfg.Streams...))
	case config.StoreSQLite, config.StorePostgres:
		driver := sqlstore.DriverSQLite
		if cfg.ScoreStore == config.StorePostgres {
			driver = sqlstore.DriverPostgres
		}
		store, err := sqlstore.Open(ctx, driver, cfg.DatabaseDSN,
			sqlstore.WithStreams(cfg.Streams...),
			sqlstore.WithCreateStreamTables(cfg.CreateStreamTables),
		)
		if err != nil {
			return fmt.Errorf("open score store: %w", err)
		}
		s.scores = store
	default:
		return fmt.Errorf("%w: unknown score_store %q", config.ErrInvalidConfig, cfg.ScoreStore)
	}
	s.ownScores = true
	s.closers = append(s.closers, s.scores.Close)
	return nil
}

func (s *Service) openLedger(ctx context.Context) error {
	if s.ledger != nil {
		return nil
	}
	cfg := s.cfg
	switch cfg.Ledger {
	case config.LedgerMemory:
		s.ledger = ledger.NewInMemoryLedger()
	case config.LedgerSQL:
		store, ok := s.scores.(*sqlstore.Store)
		if !ok {
			return fmt.Errorf("%w: ledger sql requires a sql score store", config.ErrInvalidConfig)
		}
		// shares the score store connection; closed with it
		s.ledger = sqlstore.NewLedger(store.DB())
	case config.LedgerRedis:
		l, err := redisledger.Dial(ctx, cfg.RedisAddr, cfg.RedisDB, redisledger.WithKeyPrefix(cfg.RedisKeyPrefix))
		if err != nil {
			return fmt.Errorf("open redis ledger: %w", err)
		}
		s.ledger = l
		s.closers = append(s.closers, l.Close)
	default:
		return fmt.Errorf("%w: unknown ledger %q", config.ErrInvalidConfig, cfg.Ledger)
	}
	s.ownLedger = true
	return nil
}

func (s *Service) seed(ctx context.Context, path string) error {
	f, err := repository.LoadSeed(path)
	if err != nil {
		return err
	}
	n, err := repository.Seed(ctx, s.scores, f, time.Now())
	if err != nil {
		return fmt.Errorf("seed %s: %w", path, err)
	}
	s.logger.Info(ctx, "seeded score records", logger.String("file", path), logger.Int("records", n))
	return nil
}

func (s *Service) closeAll(ctx context.Context) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Warn(ctx, "error closing backend", logger.Error(err))
		}
	}
	s.closers = nil

	// a later Start reopens from config instead of reusing closed handles
	if s.ownLedger {
		s.ledger, s.ownLedger = nil, false
	}
	if s.ownScores {
		s.scores, s.ownScores = nil, false
	}
}

// Stop drains the release workers and closes owned backends.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping leaderboard service...")

	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "release pool shutdown failed", logger.Error(err))
		}
		if n := s.releases.Len(ctx); n > 0 {
			s.logger.Warn(ctx, "release jobs left unprocessed", logger.Int("jobs", n))
		}
	}
	s.closeAll(ctx)

	s.started = false
	s.logger.Info(ctx, "leaderboard service stopped")
}

// Streams returns the configured stream names.
func (s *Service) Streams() []string { return slices.Clone(s.cfg.Streams) }

// Limits returns the default and maximum leaderboard sizes.
func (s *Service) Limits() (defaultLimit, maxLimit int) {
	return s.cfg.DefaultLeaderboardLimit, s.cfg.MaxLeaderboardLimit
}

// Leaderboard ranks players across streams (all known streams when empty) and
// returns at most limit entries. limit < 1 selects the default; larger values
// are capped at the maximum.
func (s *Service) Leaderboard(ctx context.Context, streams []string, limit int) ([]model.LeaderboardEntry, error) {
	const op = "service.leaderboard"
	metrics.RecordLeaderboardRequest()

	coord, agg := s.components()
	if agg == nil {
		metrics.RecordLeaderboardError()
		return nil, model.NewKind(op, model.ErrDataSource)
	}

	if len(streams) == 0 {
		streams = coord.Streams()
	}
	known := coord.Streams()
	for _, name := range streams {
		if !slices.Contains(known, name) {
			return nil, model.WrapKind(op, model.ErrInputValidation, fmt.Errorf("%w: %q", grant.ErrUnknownStream, name))
		}
	}

	def, maxLimit := s.Limits()
	switch {
	case limit < 1:
		limit = def
	case limit > maxLimit:
		limit = maxLimit
	}

	aggs, err := agg.Aggregate(ctx, streams)
	if err != nil {
		metrics.RecordLeaderboardError()
		return nil, model.Wrap(op, err)
	}
	metrics.UpdatePlayersRanked(len(aggs))
	return ranking.TopN(aggs, limit), nil
}

// GrantBonus grants the configured bonus to a top player once per key.
func (s *Service) GrantBonus(ctx context.Context, playerID, sessionID, streamID string) (grant.Result, error) {
	coord, _ := s.components()
	if coord == nil {
		return grant.Result{State: grant.StateFailedDataSource}, model.NewKind("service.grant", model.ErrDataSource)
	}
	return coord.GrantBonus(ctx, grant.Request{
		PlayerID:  playerID,
		SessionID: sessionID,
		StreamID:  streamID,
		Amount:    s.cfg.BonusAmount,
	})
}

// Ready pings the score store and the ledger.
func (s *Service) Ready(ctx context.Context) error {
	s.mu.RLock()
	started, scores, l := s.started, s.scores, s.ledger
	s.mu.RUnlock()

	if !started {
		return model.NewKind("service.ready", model.ErrDataSource)
	}
	if err := scores.Ping(ctx); err != nil {
		return model.WrapKind("service.ready", model.ErrDataSource, fmt.Errorf("score store: %w", err))
	}
	if p, ok := l.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return model.WrapKind("service.ready", model.ErrDataSource, fmt.Errorf("ledger: %w", err))
		}
	}
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":      s.started,
		"streams":      slices.Clone(s.cfg.Streams),
		"scoreStore":   s.cfg.ScoreStore,
		"ledger":       s.cfg.Ledger,
		"eligibleTopN": s.cfg.EligibleTopN,
		"bonusAmount":  s.cfg.BonusAmount,
	}

	if s.started {
		queueLen := s.releases.Len(context.Background())
		stats["defaultStream"] = s.coord.DefaultStream()
		stats["releaseQueueLength"] = queueLen
		stats["releaseWorkers"] = s.pool.Size()
		if sized, ok := s.ledger.(interface{ Size() int64 }); ok {
			stats["ledgerEntries"] = sized.Size()
		}
		metrics.UpdateQueueSize(queueLen)
	}

	return stats
}

func (s *Service) components() (*grant.Coordinator, *aggregate.Aggregator) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil
	}
	return s.coord, s.agg
}
