// Package main serves the airdrop feed as MCP tools over stdio, for use by
// assistant clients. It shares the acquisition chain and cache with the HTTP
// server but runs without the HTTP surface.
package main

import (
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/defi-airdrop-feed/internal/acquire"
	"github.com/yourorg/defi-airdrop-feed/internal/cache"
	"github.com/yourorg/defi-airdrop-feed/internal/circuitbreaker"
	"github.com/yourorg/defi-airdrop-feed/internal/config"
	"github.com/yourorg/defi-airdrop-feed/internal/fetch"
)

const (
	serverName = "defillama-airdrops"
	version    = "1.0.0"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	setupLogging(cfg.Log)

	transport := fetch.NewHTTPClient(cfg.Transport)
	listing := fetch.NewListingAdapter(transport, cfg.Sources.ListingURL)
	stats := fetch.NewStatsAdapter(transport, cfg.Sources.StatsURL, cfg.Stats)

	orchestrator := acquire.New(listing, stats,
		acquire.WithPolicy(cfg.Policy),
		acquire.WithBreakers(circuitbreaker.NewGroup(cfg.Breaker)),
	)
	records := cache.New(orchestrator, cache.WithTTL(cfg.Cache.TTL))

	s := NewMCPServer(NewTools(records, listing))

	logrus.Info("MCP airdrop server running on stdio")
	if err := server.ServeStdio(s); err != nil {
		logrus.Fatalf("MCP server stopped: %v", err)
	}
}

// NewMCPServer creates an MCP server exposing tools
func NewMCPServer(tools *Tools) *server.MCPServer {
	s := server.NewMCPServer(serverName, version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	tools.Register(s)
	return s
}

// setupLogging configures the global logger. Output stays on stderr since
// stdout carries the protocol.
func setupLogging(cfg config.LogConfig) {
	logrus.SetOutput(os.Stderr)
	if strings.ToLower(cfg.Format) == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}
