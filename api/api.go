// Package api exposes the auction service over HTTP: REST handlers for
// auctions and bids, JWT authentication with optional TOTP, CSRF enforcement
// on mutating routes, multi-tier rate limiting, and the websocket hub that
// streams countdowns and accepted bids to connected clients.
//
//	@title			Bidhouse API
//	@version		1.0
//	@description	API for managing bidhouse auctions, bids, chain time, and the security event archive
//
// @license.name	MIT
// @license.url	https://opensource.org/licenses/MIT
//
// @host		localhost:8081
// @BasePath	/
// @securityDefinitions.apikey	BearerAuth
// @in							header
// @name						Authorization
// @description				JWT bearer token, also accepted as the auth cookie
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	"bidhouse/chain"
	"bidhouse/config"
	"bidhouse/core"
	"bidhouse/csrf"
	"bidhouse/service"
	"bidhouse/storage"
)

// TimeSource yields the chain reading served by the time endpoints and the
// countdown broadcaster. Satisfied by *chain.Clock.
type TimeSource interface {
	Now(ctx context.Context) chain.Reading
}

// API is the HTTP server. Construct with NewAPI, run with Start or StartTLS,
// and shut down with Stop. All request-scoped state lives in contexts; the
// only mutable fields are the revoked-token set and the rate limiter state,
// both safe for concurrent use.
type API struct {
	config *config.Config
	logger *zap.SugaredLogger
	router *mux.Router
	server *http.Server

	service *service.AuctionService
	users   storage.UserStorage
	archive storage.EventArchive
	clock   TimeSource
	protect *csrf.Protection
	sink    core.SecuritySink
	hub     *Hub

	limiters *Limiters

	// tokenBlacklist maps revoked JWT IDs to their expiry time. Entries are
	// swept by a background goroutine once the token would have expired
	// anyway.
	tokenBlacklist sync.Map

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewAPI wires the router, middleware chain, and background maintenance.
//
// PANICS on nil cfg, svc, users, clock, protect, hub, or logger: those are
// wiring errors. A nil archive degrades to DisabledArchive (queries return
// ErrArchiveDisabled); a nil sink discards security events; a nil redis keeps
// rate limiting purely in memory.
func NewAPI(
	cfg *config.Config,
	svc *service.AuctionService,
	users storage.UserStorage,
	archive storage.EventArchive,
	clock TimeSource,
	protect *csrf.Protection,
	hub *Hub,
	sink core.SecuritySink,
	redis *core.RedisCache,
	logger *zap.SugaredLogger,
) *API {
	if cfg == nil {
		panic("NewAPI: config is required")
	}
	if svc == nil {
		panic("NewAPI: auction service is required")
	}
	if users == nil {
		panic("NewAPI: user storage is required")
	}
	if clock == nil {
		panic("NewAPI: time source is required")
	}
	if protect == nil {
		panic("NewAPI: csrf protection is required")
	}
	if hub == nil {
		panic("NewAPI: websocket hub is required")
	}
	if logger == nil {
		panic("NewAPI: logger is required")
	}
	if archive == nil {
		archive = storage.DisabledArchive{}
	}
	if sink == nil {
		sink = core.NopSink{}
	}

	a := &API{
		config:  cfg,
		logger:  logger,
		router:  mux.NewRouter(),
		service: svc,
		users:   users,
		archive: archive,
		clock:   clock,
		protect: protect,
		sink:    sink,
		hub:     hub,
		stopCh:  make(chan struct{}),
	}
	a.limiters = newLimiters(cfg.API.RateLimit, redis, logger)

	a.setupRoutes()

	a.server = &http.Server{
		Addr:              cfg.API.ListenAddr(),
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go a.cleanupTokenBlacklist()

	return a
}

// setupRoutes registers the middleware chain and every route. Middleware
// order matters: panic recovery wraps everything, tracing assigns request
// IDs before anything logs, and the global rate limit runs before routing
// so floods never reach a handler.
func (a *API) setupRoutes() {
	a.router.Use(a.panicRecoveryMiddleware)
	a.router.Use(a.requestIDMiddleware)
	a.router.Use(a.securityHeadersMiddleware)
	a.router.Use(a.corsMiddleware)
	a.router.Use(a.globalRateLimitMiddleware)

	// Operational endpoints stay outside /api/v1: no CSRF, no auth.
	a.router.HandleFunc("/health", a.healthHandler).Methods("GET")
	a.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	a.router.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	// Every /api/v1 route passes the api rate tier first, then CSRF: safe
	// methods mint the cookie, mutating methods must present the
	// double-submit pair. Floods are rejected before they mint anything.
	api := a.router.PathPrefix("/api/v1").Subrouter()
	api.Use(a.apiRateLimitMiddleware)
	api.Use(a.protect.Middleware)

	// Auth.
	api.HandleFunc("/auth/login", a.loginRateLimit(a.loginHandler)).Methods("POST")
	api.HandleFunc("/auth/logout", a.requireAuth(a.logoutHandler)).Methods("POST")
	api.HandleFunc("/auth/status", a.authStatusHandler).Methods("GET")
	api.HandleFunc("/auth/csrf", a.csrfTokenHandler).Methods("GET")
	api.HandleFunc("/auth/mfa/enable", a.requireAuth(a.enableMFAHandler)).Methods("POST")
	api.HandleFunc("/auth/mfa/verify", a.requireAuth(a.verifyMFAHandler)).Methods("POST")
	api.HandleFunc("/auth/mfa/disable", a.requireAuth(a.disableMFAHandler)).Methods("POST")

	// Chain time.
	api.HandleFunc("/time", a.chainTimeHandler).Methods("GET")
	api.HandleFunc("/time/probe", a.requireAdmin(a.probeTimeHandler)).Methods("POST")

	// Auctions. Export and import are registered before the {id} routes so
	// the literal paths win the match.
	api.HandleFunc("/auctions/export", a.exportAuctionsHandler).Methods("GET")
	api.HandleFunc("/auctions/import", a.requireAdmin(a.importAuctionsHandler)).Methods("POST")
	api.HandleFunc("/auctions", a.listAuctionsHandler).Methods("GET")
	api.HandleFunc("/auctions", a.requireAdmin(a.createAuctionHandler)).Methods("POST")
	api.HandleFunc("/auctions/{id}", a.getAuctionHandler).Methods("GET")
	api.HandleFunc("/auctions/{id}", a.requireAdmin(a.updateAuctionHandler)).Methods("PUT")
	api.HandleFunc("/auctions/{id}", a.requireAdmin(a.cancelAuctionHandler)).Methods("DELETE")
	api.HandleFunc("/auctions/{id}/status", a.auctionStatusHandler).Methods("GET")
	api.HandleFunc("/auctions/{id}/bids", a.listBidsHandler).Methods("GET")
	api.HandleFunc("/auctions/{id}/bids", a.requireAuth(a.bidRateLimit(a.placeBidHandler))).Methods("POST")
	api.HandleFunc("/auctions/{id}/attempts", a.requireAdmin(a.listBidAttemptsHandler)).Methods("GET")

	// Security event archive.
	api.HandleFunc("/security/events", a.requireAdmin(a.listSecurityEventsHandler)).Methods("GET")
	api.HandleFunc("/security/events/summary", a.requireAdmin(a.securityEventSummaryHandler)).Methods("GET")

	// Websocket upgrade. GET passes CSRF untouched; auth happens per
	// message type, and the hub only ever pushes.
	api.HandleFunc("/ws", a.serveWS).Methods("GET")
}

// Start runs the HTTP server until Stop or a listener error.
func (a *API) Start() error {
	a.logger.Infow("Starting API server", "addr", a.server.Addr, "tls", false)
	return a.server.ListenAndServe()
}

// StartTLS runs the HTTPS server with the configured certificate.
func (a *API) StartTLS() error {
	a.logger.Infow("Starting API server", "addr", a.server.Addr, "tls", true)
	return a.server.ListenAndServeTLS(a.config.API.CertFile, a.config.API.KeyFile)
}

// Stop gracefully shuts the server down, stopping background maintenance
// first so nothing races the listener teardown. Safe to call more than once.
func (a *API) Stop(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		close(a.stopCh)
		a.limiters.Close()
		err = a.server.Shutdown(ctx)
	})
	return err
}

// Router exposes the configured handler for tests and embedding.
func (a *API) Router() http.Handler {
	return a.router
}
