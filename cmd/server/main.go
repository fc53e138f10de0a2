// Package main is the entry point for the DeFi airdrop feed, an HTTP service
// that scrapes, derives and caches airdrop and protocol data and serves
// filtered views of it to dashboards and automation workflows.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourorg/defi-airdrop-feed/internal/acquire"
	"github.com/yourorg/defi-airdrop-feed/internal/cache"
	"github.com/yourorg/defi-airdrop-feed/internal/circuitbreaker"
	"github.com/yourorg/defi-airdrop-feed/internal/config"
	"github.com/yourorg/defi-airdrop-feed/internal/export"
	"github.com/yourorg/defi-airdrop-feed/internal/fetch"
	"github.com/yourorg/defi-airdrop-feed/internal/metrics"
	"github.com/yourorg/defi-airdrop-feed/internal/model"
	"github.com/yourorg/defi-airdrop-feed/internal/otel"
	"github.com/yourorg/defi-airdrop-feed/internal/security"
)

const version = "1.0.0"

// startTime records when the service was initialized for uptime reporting
var startTime = time.Now()

// RecordStore is the cached record set the views read from
type RecordStore interface {
	Get(ctx context.Context, force bool) ([]model.Record, error)
	Peek() ([]model.Record, bool)
	PeekLastRefreshTime() (time.Time, bool)
	Size() int
	TTL() time.Duration
}

// PageDebugger reports the structure of the listing page
type PageDebugger interface {
	Debug(ctx context.Context) (fetch.PageInfo, error)
}

// MarketSource serves the market-data views
type MarketSource interface {
	Metrics(ctx context.Context, search string) ([]model.TokenMetrics, error)
	TopTokens(ctx context.Context) ([]model.TokenMetrics, error)
	Profiles(ctx context.Context) ([]model.TokenProfile, error)
}

// Deps are the collaborators a Server is built from. Only Records is
// required.
type Deps struct {
	Records  RecordStore
	Listing  PageDebugger
	Market   MarketSource
	Breakers *circuitbreaker.Group
	Exporter *export.Exporter
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	// Stage names the acquisition stage behind the current records
	Stage func() string
}

// Server represents the HTTP server instance
type Server struct {
	config    config.Config
	deps      Deps
	rateLimit *rate.Limiter
	server    *http.Server
}

// main is the entry point for the application
func main() {
	cfg, err := config.Load("")
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	setupLogging(cfg.Log)

	shutdownTracer := otel.InitTracer(cfg.Telemetry.OtelEndpoint, cfg.Telemetry.ServiceName)
	defer shutdownTracer()

	deps, err := buildDeps(cfg, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	if err != nil {
		logrus.Fatalf("Failed to initialize: %v", err)
	}

	NewServer(cfg, deps).Start()
}

// buildDeps wires the sources, the acquisition chain, the cache and the
// exporter from configuration.
func buildDeps(cfg config.Config, reg prometheus.Registerer, gatherer prometheus.Gatherer) (Deps, error) {
	var m *metrics.Metrics
	if cfg.Server.EnableMetrics {
		m = metrics.New(reg)
	}

	transport := fetch.NewHTTPClient(cfg.Transport)
	listing := fetch.NewListingAdapter(transport, cfg.Sources.ListingURL)
	stats := fetch.NewStatsAdapter(transport, cfg.Sources.StatsURL, cfg.Stats)
	market := fetch.NewMarketAdapter(transport, cfg.Sources.MarketURL, cfg.Market)

	breakers := circuitbreaker.NewGroup(cfg.Breaker).WithTripCallback(func(name, _ string) {
		m.SetBreakerState(name, int(circuitbreaker.StateOpen))
	})

	orchestrator := acquire.New(listing, stats,
		acquire.WithPolicy(cfg.Policy),
		acquire.WithBreakers(breakers),
		acquire.WithMetrics(m),
	)
	records := cache.New(orchestrator,
		cache.WithTTL(cfg.Cache.TTL),
		cache.WithMetrics(m),
	)

	var exporter *export.Exporter
	if cfg.Export.Enabled() {
		signer, err := security.NewSigner(cfg.Signing.PrivateKey)
		if err != nil {
			return Deps{}, err
		}
		exporter = export.New(cfg.Export, signer)
		records.OnRefresh(exporter.Enqueue)
	}

	return Deps{
		Records:  records,
		Listing:  listing,
		Market:   market,
		Breakers: breakers,
		Exporter: exporter,
		Metrics:  m,
		Gatherer: gatherer,
		Stage:    orchestrator.LastStage,
	}, nil
}

// NewServer creates a new server instance
func NewServer(cfg config.Config, deps Deps) *Server {
	if deps.Records == nil {
		logrus.Fatal("No record store configured")
	}

	s := &Server{
		config:    cfg,
		deps:      deps,
		rateLimit: rate.NewLimiter(rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst),
	}

	logrus.WithFields(logrus.Fields{
		"port":       cfg.Server.Port,
		"cache_ttl":  cfg.Cache.TTL,
		"rate_limit": cfg.RateLimit.RPS,
		"burst":      cfg.RateLimit.Burst,
		"metrics":    deps.Metrics != nil,
		"export":     deps.Exporter != nil,
	}).Info("Server initialized")
	return s
}

// Start begins the HTTP server and blocks until SIGINT or SIGTERM, then
// shuts down gracefully.
func (s *Server) Start() {
	s.server = &http.Server{
		Addr:         ":" + s.config.Server.Port,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.config.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("Server starting on port %s", s.config.Server.Port)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Error starting server: %v", err)
		}
	}()

	if s.deps.Exporter != nil {
		s.deps.Exporter.Start()
	}
	if s.config.Server.WarmUp {
		go s.warmUp()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server shutdown failed: %v", err)
	}
	if s.deps.Exporter != nil {
		s.deps.Exporter.Stop(ctx)
	}

	logrus.Info("Server stopped")
}

// warmUp fills the cache once at startup. A failure only delays the first
// fill until the next request.
func (s *Server) warmUp() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.RequestTimeout)
	defer cancel()

	records, err := s.deps.Records.Get(ctx, true)
	if err != nil {
		logrus.Warnf("Initial cache load failed: %v", err)
		return
	}
	logrus.Infof("Initial cache loaded with %d records", len(records))
}
