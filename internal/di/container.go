// Package di wires the platform's components into one Container,
// following the teacher's dependency-injection convention of a single
// struct built in dependency order by one constructor.
package di

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/arbitrage-platform/internal/ai"
	"github.com/aristath/arbitrage-platform/internal/aicache"
	"github.com/aristath/arbitrage-platform/internal/cache"
	"github.com/aristath/arbitrage-platform/internal/config"
	"github.com/aristath/arbitrage-platform/internal/database"
	"github.com/aristath/arbitrage-platform/internal/distribution"
	"github.com/aristath/arbitrage-platform/internal/enhancement"
	"github.com/aristath/arbitrage-platform/internal/events"
	"github.com/aristath/arbitrage-platform/internal/fundmonitor"
	"github.com/aristath/arbitrage-platform/internal/infra"
	"github.com/aristath/arbitrage-platform/internal/ingestion"
	"github.com/aristath/arbitrage-platform/internal/migration"
	"github.com/aristath/arbitrage-platform/internal/modules/cleanup"
	"github.com/aristath/arbitrage-platform/internal/modules/settings"
	"github.com/aristath/arbitrage-platform/internal/objectstore"
	"github.com/aristath/arbitrage-platform/internal/reliability"
	"github.com/aristath/arbitrage-platform/internal/repository"
	"github.com/aristath/arbitrage-platform/internal/scheduler"
	"github.com/aristath/arbitrage-platform/internal/stream"
	"github.com/aristath/arbitrage-platform/internal/txn"
)

// Container holds every constructed component, built once at startup
// and handed to the HTTP server and scheduler.
type Container struct {
	ConfigDB   *database.DB
	PlatformDB *database.DB
	CacheDB    *database.DB

	ObjectStore objectstore.Store
	EventBus    *events.Bus
	Events      *events.Manager

	Cache   *cache.Cache
	AICache *aicache.AICache

	AICoordinator *ai.Coordinator
	Enhancer      *enhancement.Enhancer
	StreamProc    *stream.Processor

	TxnCoordinator *txn.Coordinator
	Ingestion      *ingestion.Manager

	TransactionLogRepo  *repository.TransactionLogRepository
	FundSnapshotRepo    *repository.FundSnapshotRepository
	MigrationRepo       *repository.MigrationRepository
	AnalyticsRepo       *repository.DistributionAnalyticsRepository
	AIInteractionRepo   *repository.AIInteractionRepository

	Distribution *distribution.Engine
	FundMonitor  *fundmonitor.Monitor
	Migration    *migration.Manager
	Infra        *infra.Coordinator

	SettingsRepo *settings.Repository
	Settings     *settings.Service

	Hub *WebSocketHub

	Scheduler *scheduler.Scheduler

	log zerolog.Logger
}

// Build constructs every component in dependency order.
func Build(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	c := &Container{log: log}

	var err error
	if c.ConfigDB, err = database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "config.db"), Profile: database.ProfileStandard, Name: "config",
	}); err != nil {
		return nil, err
	}
	if c.PlatformDB, err = database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "platform.db"), Profile: database.ProfileStandard, Name: "platform",
	}); err != nil {
		return nil, err
	}
	if c.CacheDB, err = database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "cache.db"), Profile: database.ProfileCache, Name: "cache",
	}); err != nil {
		return nil, err
	}
	if err = c.PlatformDB.Migrate(repository.Schema); err != nil {
		return nil, err
	}
	if err = c.ConfigDB.Migrate(settings.Schema); err != nil {
		return nil, err
	}

	if c.ObjectStore, err = objectstore.NewFilesystemStore(cfg.ObjectStoreDir); err != nil {
		return nil, err
	}
	c.EventBus = events.NewBus()
	c.Events = events.NewManager(c.EventBus, log)

	cacheStore, err := cache.NewSQLiteStore(c.CacheDB)
	if err != nil {
		return nil, err
	}
	if c.Cache, err = cache.New(cacheStore, cache.DefaultCompressionConfig()); err != nil {
		return nil, err
	}
	c.AICache = aicache.New(c.Cache)

	aiCfg := ai.DefaultCoordinatorConfig()
	if c.AICoordinator, err = ai.NewCoordinator(aiCfg, c.AICache, ai.NewFeatureEmbeddingEngine(), ai.NewStaticModelRouter(), ai.NewPersonalizationEngine(), log); err != nil {
		return nil, err
	}

	streamCfg := stream.DefaultConfig()
	if c.StreamProc, err = stream.NewProcessor(streamCfg, log); err != nil {
		return nil, err
	}

	enhanceCfg := enhancement.DefaultConfig()
	if c.Enhancer, err = enhancement.New(enhanceCfg, c.AICoordinator,
		NewStaticAccessResolver(enhancement.AccessStandard),
		NewStreamPriceSeries(c.StreamProc),
		NewStreamPairReliability(c.StreamProc),
		log,
	); err != nil {
		return nil, err
	}

	txnCfg := txn.DefaultConfig()
	if c.TxnCoordinator, err = txn.New(txnCfg, c.PlatformDB, c.ObjectStore, log); err != nil {
		return nil, err
	}

	ingestCfg := ingestion.DefaultConfig()
	if c.Ingestion, err = ingestion.New(ingestCfg, c.ObjectStore, c.Events, log); err != nil {
		return nil, err
	}

	c.TransactionLogRepo = repository.NewTransactionLogRepository(c.PlatformDB, log)
	c.FundSnapshotRepo = repository.NewFundSnapshotRepository(c.PlatformDB, log)
	c.MigrationRepo = repository.NewMigrationRepository(c.PlatformDB, log)
	c.AnalyticsRepo = repository.NewDistributionAnalyticsRepository(c.PlatformDB, log)
	c.AIInteractionRepo = repository.NewAIInteractionRepository(c.PlatformDB, log)

	c.Hub = NewWebSocketHub(log)
	distCfg := distribution.DefaultConfig()
	if c.Distribution, err = distribution.New(distCfg, c.Cache,
		NewStaticSessionService(nil), c.Hub, c.AnalyticsRepo, c.Events, nil, log,
	); err != nil {
		return nil, err
	}

	fundCfg := fundmonitor.DefaultConfig()
	// ExchangeAdapter is a venue REST/WebSocket client, which is out of
	// scope beyond a thin adapter surface; noopExchangeAdapter stands
	// in until an operator supplies a real one per venue.
	if c.FundMonitor, err = fundmonitor.New(fundCfg, c.Cache,
		fundmonitor.NewYahooPriceOracle(3, log), noopExchangeAdapter{}, c.FundSnapshotRepo, log,
	); err != nil {
		return nil, err
	}

	migCfg := migration.DefaultConfig()
	if c.Migration, err = migration.New(migCfg, log); err != nil {
		return nil, err
	}

	infraCfg := infra.DefaultConfig()
	infraCfg.DataDir = cfg.DataDir
	if c.Infra, err = infra.New(infraCfg, log); err != nil {
		return nil, err
	}
	for _, reg := range []infra.ServiceRegistration{
		{Name: "config_db", Priority: 1, AutoRecovery: true, HealthCheck: c.ConfigDB.HealthCheck},
		{Name: "platform_db", Priority: 1, AutoRecovery: true, HealthCheck: c.PlatformDB.HealthCheck},
		{Name: "cache_db", Priority: 2, AutoRecovery: true, HealthCheck: c.CacheDB.HealthCheck},
	} {
		if err := c.Infra.Register(reg); err != nil {
			return nil, err
		}
	}

	c.SettingsRepo = settings.NewRepository(c.ConfigDB.Conn(), log)
	c.Settings = settings.NewService(c.SettingsRepo, log)

	c.Scheduler = scheduler.New(log)
	retention := cleanup.NewRetentionJob(c.TransactionLogRepo, c.FundSnapshotRepo, 30*24*time.Hour, log)
	if err := c.Scheduler.Register("0 3 * * *", retention); err != nil {
		return nil, err
	}
	if err := c.Scheduler.Register("*/5 * * * *", scheduler.NewMigrationSafetyPollJob(c.Migration, log)); err != nil {
		return nil, err
	}
	if err := c.Scheduler.Register("*/2 * * * *", scheduler.NewRolloutPersistenceJob(c.Migration, c.MigrationRepo, log)); err != nil {
		return nil, err
	}
	if err := c.Scheduler.Register("*/1 * * * *", scheduler.NewIngestionFlushJob(c.Ingestion, log)); err != nil {
		return nil, err
	}
	if err := c.Scheduler.Register("0 * * * *", reliability.NewHourlyBackupJob(reliability.NewBackupService(
		map[string]*database.DB{"config": c.ConfigDB, "platform": c.PlatformDB, "cache": c.CacheDB},
		cfg.DataDir, filepath.Join(cfg.DataDir, "backups"), log,
	))); err != nil {
		return nil, err
	}

	return c, nil
}

// noopExchangeAdapter reports every account as empty. Concrete venue
// clients are out of scope beyond a thin adapter surface; an operator
// wires a real fundmonitor.ExchangeAdapter per supported venue here.
type noopExchangeAdapter struct{}

func (noopExchangeAdapter) FetchRawBalances(_ context.Context, _, _ string) ([]byte, error) {
	return []byte(`{}`), nil
}

// Close releases every resource the container opened.
func (c *Container) Close() error {
	var firstErr error
	for _, db := range []*database.DB{c.ConfigDB, c.PlatformDB, c.CacheDB} {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
