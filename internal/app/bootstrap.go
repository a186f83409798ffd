package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/benbjohnson/clock"

	"github.com/btorressz/idxflow-orderflow/config"
	"github.com/btorressz/idxflow-orderflow/internal/app/dto"
	"github.com/btorressz/idxflow-orderflow/internal/domain/model"
	"github.com/btorressz/idxflow-orderflow/internal/domain/repository"
	"github.com/btorressz/idxflow-orderflow/internal/domain/service"
	"github.com/btorressz/idxflow-orderflow/internal/domain/useCases"
	ws "github.com/btorressz/idxflow-orderflow/internal/handlers/websocket"
	redisrepo "github.com/btorressz/idxflow-orderflow/internal/infrastructure/cache"
	"github.com/btorressz/idxflow-orderflow/internal/infrastructure/ledger"
	"github.com/btorressz/idxflow-orderflow/internal/infrastructure/metrics"
	"github.com/btorressz/idxflow-orderflow/internal/infrastructure/queue"
	"github.com/btorressz/idxflow-orderflow/internal/infrastructure/storage"
	"github.com/btorressz/idxflow-orderflow/internal/lib/logger/sl"
)

// Processor defines the common interface for both standard and Kafka event processors
type Processor interface {
	Run(ctx context.Context) error
}

// AppContext holds all app dependencies
type AppContext struct {
	log            *slog.Logger
	Config         *config.Config
	Metrics        *metrics.Metrics
	Store          repository.StateStore
	Ledger         *ledger.MemoryLedger
	Staking        *service.StakingService
	History        *service.HistoryService
	Broadcaster    *ws.WebSocketBroadcaster
	EventProcessor Processor
	KafkaConsumer  *queue.KafkaConsumer
	KafkaProducer  *queue.KafkaProducer
	SwapProducer   *service.SwapProducerUseCase
	SwapCh         chan *dto.SwapDTO

	redis      *redisrepo.RedisRepository
	clickhouse *storage.ClickHouseRepository
}

// NewApp initializes the app context with all dependencies
func NewApp(ctx context.Context, log *slog.Logger, cfg *config.Config) (*AppContext, error) {
	app := &AppContext{
		log:     log,
		Config:  cfg,
		Metrics: metrics.New(),
	}

	store, balances, err := openStateStore(cfg)
	if err != nil {
		return nil, err
	}
	app.Store = store
	log.Info("state store opened", slog.String("path", cfg.StateDBPath))

	// Optional write-through cache (Redis)
	var accountCache repository.AccountCache
	if cfg.RedisEnabled {
		redisRepo := redisrepo.NewRedisRepository(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTTL)
		if err := redisRepo.Ping(ctx); err != nil {
			log.Warn("redis unavailable, continuing without account cache", sl.Err(err))
			_ = redisRepo.Close()
		} else {
			app.redis = redisRepo
			accountCache = redisRepo
			log.Info("redis account cache initialized")
		}
	}

	// Optional audit log and swap archive (ClickHouse)
	var eventLog repository.EventPersistence
	var swapArchive repository.SwapPersistence
	if cfg.ClickhouseEnabled {
		clickhouseRepo, err := storage.NewClickHouseRepository(storage.ClickHouseConfig{
			Addr:     cfg.ClickhouseAddr,
			Username: cfg.ClickhouseUsername,
			Password: cfg.ClickhousePassword,
			Timeout:  cfg.ClickhouseTimeout,
		})
		if err != nil {
			log.Warn("clickhouse unavailable, continuing without audit log", sl.Err(err))
		} else {
			app.clickhouse = clickhouseRepo
			eventLog = clickhouseRepo
			swapArchive = clickhouseRepo
			log.Info("clickhouse audit log initialized")
		}
	}

	if err := app.openLedger(ctx, balances); err != nil {
		app.Cleanup(ctx)
		return nil, err
	}

	app.Broadcaster = ws.NewWebSocketBroadcaster(log)

	app.Staking = service.NewStakingService(log, service.Dependencies{
		Store:           store,
		Ledger:          app.Ledger,
		Clock:           clock.New(),
		Cache:           accountCache,
		Events:          eventLog,
		Broadcaster:     app.Broadcaster,
		Metrics:         app.Metrics,
		TransferTimeout: cfg.TransferTimeout,
	})
	if err := app.Staking.Restore(ctx); err != nil {
		app.Cleanup(ctx)
		return nil, fmt.Errorf("failed to restore state: %w", err)
	}
	if cfg.AutoInitialize {
		if err := app.autoInitialize(ctx); err != nil {
			app.Cleanup(ctx)
			return nil, err
		}
	}

	app.History = service.NewHistoryService(eventLog, swapArchive)

	recorder, err := NewSwapRecorder(log, app.Staking, swapArchive, app.Metrics, cfg.DedupCacheSize)
	if err != nil {
		app.Cleanup(ctx)
		return nil, err
	}

	if cfg.KafkaEnabled {
		kafkaConfig := queue.KafkaConfig{
			Brokers:       cfg.KafkaBrokers,
			Topic:         cfg.KafkaTopic,
			ConsumerGroup: cfg.KafkaConsumerGroup,
			BatchSize:     cfg.KafkaBatchSize,
			BatchTimeout:  cfg.KafkaBatchTimeout,
		}
		app.KafkaConsumer = queue.NewKafkaConsumer(log, kafkaConfig)
		app.KafkaProducer = queue.NewKafkaProducer(kafkaConfig)
		app.SwapProducer = service.NewSwapProducerUseCase(log, app.KafkaProducer)
		app.EventProcessor = NewKafkaEventProcessor(log, app.KafkaConsumer, recorder)
		log.Info("kafka swap feed configured", slog.String("topic", cfg.KafkaTopic))
	} else {
		app.SwapCh = make(chan *dto.SwapDTO, cfg.EventBufferSize)
		app.EventProcessor = NewEventProcessor(log, app.SwapCh, recorder)
		log.Info("kafka disabled, using direct channel")
	}

	return app, nil
}

// openStateStore returns the state store and, when state is durable, the
// store that keeps ledger balances next to it.
func openStateStore(cfg *config.Config) (repository.StateStore, repository.BalanceStore, error) {
	if cfg.StateDBPath == "" {
		return storage.NewMemoryStore(), nil, nil
	}
	store, err := storage.NewLevelDBStore(cfg.StateDBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open state store: %w", err)
	}
	return store, store, nil
}

// openLedger loads the ledger and seeds it when it holds no balances yet.
func (a *AppContext) openLedger(ctx context.Context, balances repository.BalanceStore) error {
	if balances == nil {
		a.Ledger = ledger.NewMemoryLedger()
	} else {
		l, err := ledger.NewPersistentLedger(ctx, balances)
		if err != nil {
			return err
		}
		a.Ledger = l
	}

	if !a.Ledger.Empty() {
		a.log.Info("ledger balances restored")
		return nil
	}

	if a.Config.RewardVaultFunds > 0 {
		if err := a.Ledger.FundVault(ctx, model.RewardVault, a.Config.RewardVaultFunds); err != nil {
			return fmt.Errorf("failed to fund reward vault: %w", err)
		}
	}
	for owner, amount := range a.Config.DemoBalances {
		if err := a.Ledger.Mint(ctx, owner, amount); err != nil {
			return fmt.Errorf("failed to seed balance of %s: %w", owner, err)
		}
	}
	a.log.Info("ledger seeded",
		slog.Uint64("reward_vault", a.Config.RewardVaultFunds),
		slog.Int("demo_balances", len(a.Config.DemoBalances)),
	)
	return nil
}

func (a *AppContext) autoInitialize(ctx context.Context) error {
	_, err := a.Staking.Initialize(ctx, useCases.InitParams{
		Authority:     a.Config.Authority,
		RewardRate:    a.Config.RewardRate,
		EpochDuration: a.Config.EpochDuration,
		MinVolume:     a.Config.MinVolume,
	})
	switch {
	case err == nil:
		a.log.Info("protocol initialized",
			slog.String("authority", a.Config.Authority),
			slog.Uint64("reward_rate", a.Config.RewardRate),
			slog.Duration("epoch_duration", a.Config.EpochDuration),
		)
		return nil
	case errors.Is(err, service.ErrAlreadyInitialized):
		a.log.Info("protocol already initialized, keeping restored parameters")
		return nil
	default:
		return fmt.Errorf("failed to initialize protocol: %w", err)
	}
}

// Feed hands swaps to the volume feed: Kafka when enabled, the direct channel otherwise.
func (a *AppContext) Feed(ctx context.Context, swaps []*model.Swap) error {
	if a.SwapProducer != nil {
		return a.SwapProducer.Execute(ctx, swaps...)
	}
	for _, swap := range swaps {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case a.SwapCh <- dto.FromModel(swap):
		}
	}
	return nil
}

// Cleanup performs graceful shutdown of all components
func (a *AppContext) Cleanup(ctx context.Context) {
	if a.KafkaConsumer != nil {
		a.log.Info("closing kafka consumer")
		if err := a.KafkaConsumer.Close(); err != nil {
			a.log.Error("error closing kafka consumer", sl.Err(err))
		}
	}

	if a.KafkaProducer != nil {
		a.log.Info("closing kafka producer")
		if err := a.KafkaProducer.Close(); err != nil {
			a.log.Error("error closing kafka producer", sl.Err(err))
		}
	}

	if a.clickhouse != nil {
		if err := a.clickhouse.Close(); err != nil {
			a.log.Error("error closing clickhouse", sl.Err(err))
		}
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Error("error closing redis", sl.Err(err))
		}
	}

	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.log.Error("error closing state store", sl.Err(err))
		}
	}

	a.log.Info("all resources cleaned up")
}
