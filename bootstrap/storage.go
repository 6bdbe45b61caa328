package bootstrap

import (
	"context"
	"fmt"
	"os"
	"time"

	"bidhouse/config"
	"bidhouse/core"
	"bidhouse/storage"

	"go.uber.org/zap"
)

// StorageComponents holds every store the service talks to. SQLite always
// opens (users live there regardless of backend); the Mongo backend replaces
// the auction and bid metadata stores only. ClickHouse and Redis are
// optional and nil when disabled or degraded.
type StorageComponents struct {
	SQLite     *storage.SQLite
	Mongo      *storage.MongoDB
	ClickHouse *storage.ClickHouse
	Redis      *core.RedisCache

	Auctions storage.AuctionStorage
	Bids     storage.BidStorage
	Users    *storage.SQLiteUserStorage

	// Archive is nil when the ClickHouse archive is disabled or degraded;
	// the API substitutes storage.DisabledArchive.
	Archive *storage.ClickHouseSecurityEventStorage
}

// InitSQLite opens the metadata database, printing a classified fatal
// banner when the path is unusable.
func InitSQLite(dirs DataDirectories, sugar *zap.SugaredLogger) (*storage.SQLite, error) {
	sqlite, err := storage.NewSQLite(dirs.SQLite, sugar)
	if err != nil {
		errMsg := ClassifySQLiteError(err, dirs.SQLite)
		fmt.Fprintf(os.Stderr, "\n========================================\n")
		fmt.Fprintf(os.Stderr, "FATAL: SQLite Initialization Failed\n")
		fmt.Fprintf(os.Stderr, "========================================\n")
		fmt.Fprintf(os.Stderr, "%s\n", errMsg)
		fmt.Fprintf(os.Stderr, "========================================\n\n")
		return nil, fmt.Errorf("failed to initialize SQLite: %w", err)
	}

	sugar.Info("SQLite initialized successfully")
	return sqlite, nil
}

// InitMongo connects to the MongoDB metadata backend. Unlike the optional
// subsystems this is never degraded: when the operator selected mongodb as
// the backend there is nothing to fall back to.
func InitMongo(cfg *config.Config, sugar *zap.SugaredLogger) (*storage.MongoDB, error) {
	mongoCfg := cfg.Storage.MongoDB
	mongo, err := storage.NewMongoDB(mongoCfg.URI, mongoCfg.Database, mongoCfg.MaxPoolSize, sugar)
	if err != nil {
		errMsg := ClassifyConnectionError(err, "MongoDB", mongoCfg.URI)
		fmt.Fprintf(os.Stderr, "\n========================================\n")
		fmt.Fprintf(os.Stderr, "FATAL: MongoDB Connection Failed\n")
		fmt.Fprintf(os.Stderr, "========================================\n")
		fmt.Fprintf(os.Stderr, "%s\n", errMsg)
		fmt.Fprintf(os.Stderr, "========================================\n\n")
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	sugar.Infow("MongoDB backend initialized", "database", mongoCfg.Database)
	return mongo, nil
}

// InitClickHouse initializes the ClickHouse connection with retry logic.
func InitClickHouse(cfg *config.Config, sugar *zap.SugaredLogger) (*storage.ClickHouse, error) {
	const maxRetries = 3
	retryDelays := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}

	chCfg := cfg.Storage.ClickHouse
	opts := storage.ClickHouseOptions{
		Addr:        chCfg.Addr,
		Database:    chCfg.Database,
		Username:    chCfg.Username,
		Password:    chCfg.Password,
		TLS:         chCfg.TLS,
		MaxPoolSize: chCfg.MaxPoolSize,
	}

	var clickhouse *storage.ClickHouse
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			sugar.Infow("Retrying ClickHouse connection",
				"attempt", attempt,
				"max_retries", maxRetries,
				"delay", retryDelays[attempt-1])
			time.Sleep(retryDelays[attempt-1])
		}

		clickhouse, lastErr = storage.NewClickHouse(opts, sugar)
		if lastErr == nil {
			break
		}

		sugar.Warnw("ClickHouse connection attempt failed",
			"attempt", attempt+1,
			"error", lastErr)
	}

	if lastErr != nil {
		errMsg := ClassifyConnectionError(lastErr, "ClickHouse", chCfg.Addr)
		fmt.Fprintf(os.Stderr, "\n========================================\n")
		fmt.Fprintf(os.Stderr, "FATAL: ClickHouse Connection Failed\n")
		fmt.Fprintf(os.Stderr, "========================================\n")
		fmt.Fprintf(os.Stderr, "%s\n", errMsg)
		fmt.Fprintf(os.Stderr, "========================================\n\n")
		return nil, fmt.Errorf("failed to connect to ClickHouse after %d attempts: %w", maxRetries+1, lastErr)
	}

	sugar.Info("Connected to ClickHouse successfully")

	// Ensure tables exist before workers start queueing inserts
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := clickhouse.CreateTablesIfNotExist(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "\n========================================\n")
		fmt.Fprintf(os.Stderr, "FATAL: ClickHouse Schema Setup Failed\n")
		fmt.Fprintf(os.Stderr, "========================================\n")
		fmt.Fprintf(os.Stderr, "Failed to create/verify ClickHouse tables: %v\n", err)
		fmt.Fprintf(os.Stderr, "\nRemediation:\n")
		fmt.Fprintf(os.Stderr, "  - Check ClickHouse has sufficient permissions\n")
		fmt.Fprintf(os.Stderr, "  - Verify the database '%s' exists\n", chCfg.Database)
		fmt.Fprintf(os.Stderr, "  - Check ClickHouse logs for detailed error\n")
		fmt.Fprintf(os.Stderr, "========================================\n\n")
		return nil, fmt.Errorf("failed to ensure ClickHouse tables: %w", err)
	}

	return clickhouse, nil
}

// InitRedis connects the shared cache used by the chain clock and the
// distributed rate limiter.
func InitRedis(cfg *config.Config, sugar *zap.SugaredLogger) (*core.RedisCache, error) {
	redisCfg := cfg.Redis
	cache := core.NewRedisCache(redisCfg.Addr, redisCfg.Password, redisCfg.DB, redisCfg.PoolSize, sugar)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cache.Ping(ctx); err != nil {
		_ = cache.Close()
		errMsg := ClassifyConnectionError(err, "Redis", redisCfg.Addr)
		sugar.Warnw("Redis ping failed", "addr", redisCfg.Addr, "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", errMsg)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	sugar.Infow("Redis cache initialized", "addr", redisCfg.Addr, "db", redisCfg.DB)
	return cache, nil
}

// InitStorage opens every configured store and assembles the interfaces the
// service layer consumes. Optional subsystems honor the startup mode:
// strict propagates their errors, graceful logs and runs without them.
func InitStorage(ctx context.Context, cfg *config.Config, dirs DataDirectories, sugar *zap.SugaredLogger) (*StorageComponents, error) {
	sc := &StorageComponents{}

	sqlite, err := InitSQLite(dirs, sugar)
	if err != nil {
		return nil, err
	}
	sc.SQLite = sqlite
	sc.Users = storage.NewSQLiteUserStorage(sqlite, sugar)

	switch cfg.Storage.Backend {
	case config.BackendMongoDB:
		mongo, err := InitMongo(cfg, sugar)
		if err != nil {
			sc.CloseAll(sugar)
			return nil, err
		}
		sc.Mongo = mongo
		sc.Auctions = storage.NewMongoAuctionStorage(mongo, sugar)
		sc.Bids = storage.NewMongoBidStorage(mongo, sugar)
	default:
		sc.Auctions = storage.NewSQLiteAuctionStorage(sqlite, sugar)
		sc.Bids = storage.NewSQLiteBidStorage(sqlite, sugar)
	}

	if cfg.Storage.ClickHouse.Enabled {
		clickhouse, err := InitClickHouse(cfg, sugar)
		if err != nil {
			if !cfg.IsGracefulMode() {
				sc.CloseAll(sugar)
				return nil, err
			}
			sugar.Warnw("Continuing without the ClickHouse archive (graceful mode)", "error", err)
		} else {
			sc.ClickHouse = clickhouse
			chCfg := cfg.Storage.ClickHouse
			sc.Archive = storage.NewClickHouseSecurityEventStorage(ctx, clickhouse, storage.ArchiveOptions{
				BatchSize:     chCfg.BatchSize,
				FlushInterval: chCfg.FlushInterval,
				QueueSize:     chCfg.QueueSize,
				DedupWindow:   chCfg.DedupWindow,
			}, sugar)
			sc.Archive.Start(chCfg.Workers)
		}
	} else {
		sugar.Info("ClickHouse archive disabled by configuration")
	}

	if cfg.Redis.Enabled {
		redis, err := InitRedis(cfg, sugar)
		if err != nil {
			if !cfg.IsGracefulMode() {
				sc.CloseAll(sugar)
				return nil, err
			}
			sugar.Warnw("Continuing without Redis (graceful mode)", "error", err)
		} else {
			sc.Redis = redis
		}
	} else {
		sugar.Info("Redis disabled by configuration; caches stay in-process")
	}

	return sc, nil
}

// CloseAll releases every open store. Safe to call on partially initialized
// components; used both by the failure paths above and by Shutdown.
func (sc *StorageComponents) CloseAll(sugar *zap.SugaredLogger) {
	if sc.Archive != nil {
		if err := sc.Archive.Stop(); err != nil {
			sugar.Errorw("Archive shutdown timed out", "error", err)
		}
		sc.Archive = nil
	}
	if sc.ClickHouse != nil {
		if err := sc.ClickHouse.Close(); err != nil {
			sugar.Errorw("Failed to close ClickHouse connection", "error", err)
		}
		sc.ClickHouse = nil
	}
	if sc.Redis != nil {
		if err := sc.Redis.Close(); err != nil {
			sugar.Errorw("Failed to close Redis connection", "error", err)
		}
		sc.Redis = nil
	}
	if sc.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := sc.Mongo.Close(ctx); err != nil {
			sugar.Errorw("Failed to close MongoDB connection", "error", err)
		}
		cancel()
		sc.Mongo = nil
	}
	if sc.SQLite != nil {
		if err := sc.SQLite.Close(); err != nil {
			sugar.Errorw("Failed to close SQLite", "error", err)
		}
		sc.SQLite = nil
	}
}
