package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"bidhouse/api"
	"bidhouse/chain"
	"bidhouse/config"
	"bidhouse/core"
	"bidhouse/csrf"
	"bidhouse/notify"
	"bidhouse/service"
	"bidhouse/storage"

	"go.uber.org/zap"
)

// countdownInterval is how often the websocket broadcaster pushes auction
// countdowns. The chain clock cache absorbs the extra reads.
const countdownInterval = 1 * time.Second

// App represents the bidhouse service with all its components.
type App struct {
	// Configuration
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	// Storage
	Storage *StorageComponents

	// Domain components
	Clock    *chain.Clock
	Service  *service.AuctionService
	Sweeper  *service.Sweeper
	Hub      *api.Hub
	Protect  *csrf.Protection
	Notifier *notify.Notifier
	Sink     core.SecuritySink

	// Services
	APIServer *api.API

	// Lifecycle
	ethSources []*chain.EthSource
	logLevel   zap.AtomicLevel
	cancel     context.CancelFunc
	serviceWg  *sync.WaitGroup
}

// NewApp creates a new application instance and initializes all components.
func NewApp(ctx context.Context) (*App, error) {
	app := &App{
		serviceWg: &sync.WaitGroup{},
	}

	// Initialize logger
	logger, sugar, level, err := InitLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.Logger = logger
	app.Sugar = sugar
	app.logLevel = level

	sugar.Info("bidhouse starting...")

	// Load configuration. BIDHOUSE_CONFIG points at an explicit file;
	// otherwise the default search paths apply.
	cfg, err := InitConfig(sugar, os.Getenv("BIDHOUSE_CONFIG"))
	if err != nil {
		return nil, err
	}
	app.Config = cfg
	app.Logger, app.Sugar = ApplyLoggingConfig(logger, level, cfg.Logging)
	sugar = app.Sugar

	// Pre-flight checks
	sugar.Info("Running pre-flight checks...")
	dirs := DataDirectoriesFromConfig(cfg)
	if err := EnsureDataDirectories(dirs, sugar); err != nil {
		return nil, fmt.Errorf("pre-flight check failed: %w", err)
	}

	// Initialize storage
	storageComponents, err := InitStorage(ctx, cfg, dirs, sugar)
	if err != nil {
		return nil, err
	}
	app.Storage = storageComponents

	// Outbound notifications
	if cfg.Notify.Enabled {
		app.Notifier = notify.NewNotifier(cfg.Notify, sugar)
		sugar.Infow("Notifier initialized", "min_severity", cfg.Notify.MinSeverity)
	}

	// Security sink composition: every event reaches the log and metrics;
	// the archive and notifier join when configured.
	sinks := []core.SecuritySink{core.NewLogSink(sugar), core.MetricsSink{}}
	if app.Storage.Archive != nil {
		sinks = append(sinks, app.Storage.Archive)
	}
	if app.Notifier != nil {
		sinks = append(sinks, app.Notifier.Sink())
	}
	app.Sink = core.NewMultiSink(sinks...)

	// Chain clock
	app.Clock = app.initChainClock(ctx, cfg, sugar)

	// Websocket hub must exist before the service so bid events have a
	// broadcaster from the first accepted bid.
	app.Hub = api.NewHub(sugar)

	// Auction service and end-time sweeper
	app.Service = service.NewAuctionService(
		app.Storage.Auctions,
		app.Storage.Bids,
		archiveOrDisabled(app.Storage.Archive),
		app.Clock,
		app.Hub,
		sugar,
		service.Options{
			MinDurationHours:    cfg.Auction.MinDurationHours,
			MaxDurationHours:    cfg.Auction.MaxDurationHours,
			DefaultGraceSeconds: cfg.Auction.DefaultGraceSeconds,
		},
	)
	app.Sweeper = service.NewSweeper(app.Storage.Auctions, app.Clock, app.Hub, sugar, cfg.Auction.SweepInterval)

	// CSRF protection shares the API's proxy trust policy so the source IP
	// on security events matches what the access log records.
	protect, err := csrf.New(csrf.Config{
		Secret:      cfg.CSRF.Secret,
		CookieName:  cfg.CSRF.CookieName,
		HeaderName:  cfg.CSRF.HeaderName,
		TokenLength: cfg.CSRF.TokenLength,
		SameSite:    cfg.CSRF.SameSiteMode(),
		Secure:      cfg.CSRF.Secure,
		HttpOnly:    cfg.CSRF.HttpOnly,
		MaxAge:      cfg.CSRF.MaxAge,
		Production:  cfg.IsProduction(),
	}, app.Sink, sugar, csrf.WithSourceIP(func(r *http.Request) string {
		return api.ClientIP(r, cfg.API.TrustProxy, cfg.API.TrustedProxyNetworks)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize CSRF protection: %w", err)
	}
	app.Protect = protect

	// API server (started later by Start)
	app.APIServer = api.NewAPI(
		cfg,
		app.Service,
		app.Storage.Users,
		archiveOrDisabled(app.Storage.Archive),
		app.Clock,
		app.Protect,
		app.Hub,
		app.Sink,
		app.Storage.Redis,
		sugar,
	)

	// First-run setup
	firstRunResult, err := app.runFirstRunSetup(ctx)
	if err != nil {
		sugar.Errorf("First-run setup encountered errors: %v", err)
	} else if firstRunResult.IsFirstRun {
		sugar.Infow("First-run setup completed",
			"admin_created", firstRunResult.AdminCreated,
			"admin_username", firstRunResult.AdminUsername)
	}

	return app, nil
}

// archiveOrDisabled hands consumers a usable EventArchive even when the
// ClickHouse archive never came up.
func archiveOrDisabled(archive *storage.ClickHouseSecurityEventStorage) storage.EventArchive {
	if archive == nil {
		return storage.DisabledArchive{}
	}
	return archive
}

// initChainClock dials the configured RPC endpoints and wraps them in the
// failover and caching layers. Chain connectivity is never fatal: with no
// usable endpoint the clock degrades to local time, exactly as it does at
// request time when an endpoint stops answering.
func (a *App) initChainClock(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) *chain.Clock {
	if cfg.Chain.RPCURL == "" {
		sugar.Warn("chain.rpc_url not configured; auction decisions will use local time only")
		return chain.NewClock(nil, sugar)
	}

	endpoints := append([]string{cfg.Chain.RPCURL}, cfg.Chain.FallbackRPCURLs...)
	sources := make([]chain.HeaderSource, 0, len(endpoints))
	for _, endpoint := range endpoints {
		source, err := chain.Dial(ctx, endpoint)
		if err != nil {
			sugar.Warnw("Failed to dial chain RPC endpoint", "endpoint", endpoint, "error", err)
			continue
		}
		a.ethSources = append(a.ethSources, source)
		sources = append(sources, source)
	}

	if len(sources) == 0 {
		sugar.Warn("No chain RPC endpoint reachable; auction decisions will use local time only")
		return chain.NewClock(nil, sugar)
	}

	var inner chain.HeaderSource = sources[0]
	if len(sources) > 1 {
		inner = chain.NewFailoverSource(sugar, sources...)
	}

	cacheOpts := []chain.CachedSourceOption{chain.WithTTL(cfg.Chain.CacheTTL)}
	if a.Storage.Redis != nil {
		cacheOpts = append(cacheOpts, chain.WithRedis(a.Storage.Redis, cfg.Chain.RPCURL))
	}

	sugar.Infow("Chain clock initialized",
		"primary", cfg.Chain.RPCURL,
		"fallbacks", len(sources)-1,
		"cache_ttl", cfg.Chain.CacheTTL)

	return chain.NewClock(chain.NewCachedSource(inner, sugar, cacheOpts...), sugar)
}

// Start starts all application services.
func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	// Hub first: both the sweeper and the service broadcast through it.
	a.Hub.Start(runCtx)

	a.Storage.SQLite.StartMetricsCollection(runCtx, 30*time.Second)

	a.serviceWg.Add(1)
	go func() {
		defer a.serviceWg.Done()
		a.Sweeper.Run(runCtx)
	}()
	a.Sugar.Infow("Auction sweeper started", "interval", a.Config.Auction.SweepInterval)

	a.serviceWg.Add(1)
	go func() {
		defer a.serviceWg.Done()
		a.APIServer.BroadcastCountdowns(runCtx, countdownInterval)
	}()

	a.startAPIServer()
	return nil
}

// startAPIServer serves HTTP in a goroutine under the service WaitGroup.
func (a *App) startAPIServer() {
	a.serviceWg.Add(1)
	go func() {
		defer a.serviceWg.Done()
		a.Sugar.Infof("API server started on %s", a.Config.API.ListenAddr())

		var err error
		if a.Config.API.TLS {
			err = a.APIServer.StartTLS()
		} else {
			err = a.APIServer.Start()
		}

		if err != nil && err.Error() != "http: Server closed" {
			a.Sugar.Errorf("API server error: %v", err)
		}
	}()
}

// WaitForShutdown blocks until a shutdown signal is received.
func (a *App) WaitForShutdown() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}

// Shutdown gracefully shuts down all components.
func (a *App) Shutdown() {
	a.Sugar.Info("Shutting down...")

	// Phase 1 - Stop accepting requests
	a.Sugar.Info("Phase 1: Stopping API server...")
	if a.APIServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.APIServer.Stop(ctx); err != nil {
			a.Sugar.Errorw("Failed to stop API server", "error", err)
		}
		cancel()
	}

	// Phase 2 - Cancel background services (sweeper, countdowns, hub loop)
	a.Sugar.Info("Phase 2: Cancelling background services...")
	if a.cancel != nil {
		a.cancel()
	}
	if a.Hub != nil {
		a.Hub.Stop()
	}

	// Phase 3 - Wait for service goroutines
	a.Sugar.Info("Phase 3: Waiting for service goroutines to complete...")
	done := make(chan struct{})
	go func() {
		a.serviceWg.Wait()
		close(done)
	}()
	select {
	case <-done:
		a.Sugar.Info("All service goroutines stopped successfully")
	case <-time.After(15 * time.Second): // 5s API timeout + 10s buffer
		a.Sugar.Warn("Service goroutine shutdown timed out")
	}

	// Phase 4 - Stop the notifier after producers are gone
	a.Sugar.Info("Phase 4: Stopping notifier...")
	if a.Notifier != nil {
		a.Notifier.Stop()
	}

	// Phase 5 - Flush the archive and close stores
	a.Sugar.Info("Phase 5: Closing storage...")
	if a.Storage != nil {
		a.Storage.CloseAll(a.Sugar)
	}

	// Phase 6 - Release chain RPC clients
	a.Sugar.Info("Phase 6: Closing chain RPC clients...")
	for _, source := range a.ethSources {
		source.Close()
	}

	a.Sugar.Info("Shutdown complete")
	a.Logger.Sync()
}

// FirstRunResult contains information about first-run initialization.
type FirstRunResult struct {
	IsFirstRun    bool
	AdminCreated  bool
	AdminUsername string
	AdminPassword string
}

// runFirstRunSetup seeds the first admin account. A configured admin
// credential (already bcrypt-hashed at config load) is stored as-is;
// otherwise a random password is generated and printed exactly once.
func (a *App) runFirstRunSetup(ctx context.Context) (*FirstRunResult, error) {
	result := &FirstRunResult{}

	var userCount int
	err := a.Storage.SQLite.ReadDB.QueryRow("SELECT COUNT(*) FROM users").Scan(&userCount)
	if err != nil || userCount == 0 {
		result.IsFirstRun = true
	}

	if !result.IsFirstRun {
		return result, nil
	}

	a.Sugar.Info("========================================")
	a.Sugar.Info("FIRST RUN DETECTED - Running initial setup")
	a.Sugar.Info("========================================")

	if !a.Config.Auth.Enabled {
		a.Sugar.Warn("Authentication disabled; skipping admin account creation")
		return result, nil
	}

	adminUsername := a.Config.Auth.AdminUsername
	if adminUsername == "" {
		adminUsername = "admin"
	}

	setupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if a.Config.Auth.HashedAdminPassword != "" {
		adminUser := &storage.User{
			Username: adminUsername,
			Password: a.Config.Auth.HashedAdminPassword,
			Roles:    []string{storage.RoleAdmin},
		}
		if err := a.Storage.Users.CreateUserWithHash(setupCtx, adminUser); err != nil {
			return result, fmt.Errorf("failed to create configured admin user: %w", err)
		}
		result.AdminCreated = true
		result.AdminUsername = adminUsername
		a.Sugar.Infow("Admin account created from configured credentials", "username", adminUsername)
		return result, nil
	}

	adminPassword, err := GenerateSecurePassword(24)
	if err != nil {
		return result, fmt.Errorf("failed to generate admin password: %w", err)
	}

	adminUser := &storage.User{
		Username:           adminUsername,
		Password:           adminPassword,
		Roles:              []string{storage.RoleAdmin},
		MustChangePassword: true,
	}

	if err := a.Storage.Users.CreateUser(setupCtx, adminUser); err != nil {
		return result, fmt.Errorf("failed to create admin user: %w", err)
	}

	result.AdminCreated = true
	result.AdminUsername = adminUsername
	result.AdminPassword = adminPassword

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "========================================\n")
	fmt.Fprintf(os.Stderr, "     DEFAULT ADMIN CREDENTIALS\n")
	fmt.Fprintf(os.Stderr, "========================================\n")
	fmt.Fprintf(os.Stderr, "  Username: %s\n", adminUsername)
	fmt.Fprintf(os.Stderr, "  Password: %s\n", adminPassword)
	fmt.Fprintf(os.Stderr, "========================================\n")
	fmt.Fprintf(os.Stderr, "  IMPORTANT: This password will NOT be\n")
	fmt.Fprintf(os.Stderr, "  shown again! Store it securely now.\n")
	fmt.Fprintf(os.Stderr, "========================================\n\n")

	a.Sugar.Info("First-run setup completed")
	return result, nil
}
