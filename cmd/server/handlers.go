package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yourorg/defi-airdrop-feed/internal/aggregate"
	"github.com/yourorg/defi-airdrop-feed/internal/circuitbreaker"
	"github.com/yourorg/defi-airdrop-feed/internal/model"
	"github.com/yourorg/defi-airdrop-feed/internal/query"
)

const internalError = "internal server error"

// Handler returns the router wrapped in the middleware chain
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("/circuit", s.handleCircuitStatus)

	mux.HandleFunc("GET /api/airdrops", s.handleAirdrops)
	mux.HandleFunc("POST /api/airdrops/filter", s.handleFilter)
	mux.HandleFunc("GET /api/airdrops/best", s.handleBest)
	mux.HandleFunc("GET /api/debug", s.handleDebug)
	mux.HandleFunc("GET /n8n/best-airdrops", s.handleN8N)

	mux.HandleFunc("GET /airdrops", s.handleAirdropList)
	mux.HandleFunc("GET /airdrops/names", s.handleNames)
	mux.HandleFunc("GET /protocols", s.handleProtocols)
	mux.HandleFunc("GET /data/complete", s.handleComplete)

	mux.HandleFunc("GET /dexscreener/profiles", s.handleProfiles)
	mux.HandleFunc("GET /dexscreener/tokens", s.handleTokens)
	mux.HandleFunc("GET /dexscreener/metrics", s.handleMarketMetrics)
	mux.HandleFunc("GET /dexscreener/combined", s.handleCombined)

	return withRequestID(withCORS(s.config.Server.CORSOrigin, s.withObservability(s.withRateLimit(mux))))
}

// records reads the cache within the request budget
func (s *Server) records(r *http.Request, force bool) ([]model.Record, error) {
	ctx, cancel := s.requestContext(r)
	defer cancel()
	return s.deps.Records.Get(ctx, force)
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.config.Server.RequestTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), s.config.Server.RequestTimeout)
}

// handleHealth is a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "online",
		"version":    version,
		"timestamp":  timestamp(time.Now()),
		"lastUpdate": s.lastUpdate(),
		"cacheSize":  s.deps.Records.Size(),
	})
}

// handleStatus provides detailed service status information
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	cacheStatus := map[string]interface{}{
		"size":       s.deps.Records.Size(),
		"ttl":        s.deps.Records.TTL().String(),
		"lastUpdate": s.lastUpdate(),
	}
	if s.deps.Stage != nil {
		cacheStatus["stage"] = s.deps.Stage()
	}

	status := map[string]interface{}{
		"status":  "operational",
		"uptime":  time.Since(startTime).String(),
		"version": version,
		"cache":   cacheStatus,
		"configuration": map[string]interface{}{
			"rate_limit_rps":   s.config.RateLimit.RPS,
			"rate_limit_burst": s.config.RateLimit.Burst,
			"metrics":          s.deps.Metrics != nil,
		},
	}
	if records, ok := s.deps.Records.Peek(); ok {
		status["summary"] = aggregate.Summarize(records)
	}
	if s.deps.Breakers != nil {
		status["circuit_breakers"] = s.deps.Breakers.Snapshot()
	}
	if s.deps.Exporter != nil {
		status["export"] = s.deps.Exporter.Status()
	}

	writeJSON(w, http.StatusOK, status)
}

// handleMetrics exposes Prometheus metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.deps.Metrics == nil || s.deps.Gatherer == nil {
		http.Error(w, "Metrics disabled", http.StatusServiceUnavailable)
		return
	}
	promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

// handleCircuitStatus allows viewing and resetting the circuit breakers
func (s *Server) handleCircuitStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Breakers == nil {
		http.Error(w, "Circuit breaker not enabled", http.StatusServiceUnavailable)
		return
	}

	response := map[string]interface{}{}
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		action := r.URL.Query().Get("action")
		if action != "reset" {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown action %q", action), nil)
			return
		}
		s.deps.Breakers.ResetAll()
		for _, st := range s.deps.Breakers.Snapshot() {
			s.deps.Metrics.SetBreakerState(st.Name, int(circuitbreaker.StateClosed))
		}
		response["message"] = "Circuit breakers reset"
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response["breakers"] = s.deps.Breakers.Snapshot()
	writeJSON(w, http.StatusOK, response)
}

// handleAirdrops serves the full record set with optional filters
func (s *Server) handleAirdrops(w http.ResponseWriter, r *http.Request) {
	records, err := s.records(r, queryBool(r, "forceRefresh"))
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, internalError, err)
		return
	}

	records = query.Filter(records, query.Criteria{
		OnlyActive: queryBool(r, "onlyActive"),
		Chain:      r.URL.Query().Get("chain"),
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"total":      len(records),
		"lastUpdate": s.lastUpdate(),
		"data":       records,
	})
}

// flexNumber decodes a JSON number or a numeric string
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s", b)
	}
	*n = flexNumber(f)
	return nil
}

// filterRequest is the body of POST /api/airdrops/filter
type filterRequest struct {
	MinValue   flexNumber `json:"minValue,omitempty"`
	Status     string     `json:"status,omitempty"`
	Chain      string     `json:"chain,omitempty"`
	SearchTerm string     `json:"searchTerm,omitempty"`
}

// handleFilter applies the criteria posted in the body
func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeAPIError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	records, err := s.records(r, false)
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, internalError, err)
		return
	}

	records = query.Filter(records, query.Criteria{
		Status:     req.Status,
		Chain:      req.Chain,
		SearchTerm: req.SearchTerm,
		MinValue:   float64(req.MinValue),
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"total":   len(records),
		"filters": req,
		"data":    records,
	})
}

// handleBest serves active and TBD records ordered by sortBy
func (s *Server) handleBest(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid query", err)
		return
	}
	sortBy := r.URL.Query().Get("sortBy")
	if sortBy == "" {
		sortBy = query.SortByValue
	}

	records, err := s.records(r, false)
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, internalError, err)
		return
	}

	best := query.Limit(query.Sort(query.Filter(records, query.Criteria{OnlyBest: true}), sortBy), limit)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"total":    len(best),
		"criteria": map[string]interface{}{"limit": limit, "sortBy": sortBy},
		"data":     best,
	})
}

// handleDebug reports the structure of the listing page
func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	if s.deps.Listing == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "debug unavailable", nil)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	info, err := s.deps.Listing.Debug(ctx)
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, "debug failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"debug":     info,
		"timestamp": timestamp(time.Now()),
	})
}

// handleN8N serves the compact best-of view for automation workflows
func (s *Server) handleN8N(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 5)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid query", err)
		return
	}

	records, err := s.records(r, false)
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, internalError, nil)
		return
	}

	best := query.Limit(query.Sort(query.Filter(records, query.Criteria{OnlyBest: true}), query.SortByValue), limit)
	simplified := query.Simplify(best)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"count":    len(simplified),
		"updated":  s.lastUpdate(),
		"airdrops": simplified,
	})
}

// handleAirdropList serves bare records ordered by value
func (s *Server) handleAirdropList(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	records, err := s.records(r, false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, internalError, err)
		return
	}

	records = query.Filter(records, query.Criteria{
		OnlyBest: queryBool(r, "active"),
		Chain:    r.URL.Query().Get("chain"),
	})
	writeJSON(w, http.StatusOK, query.Limit(query.Sort(records, query.SortByValue), limit))
}

// handleNames serves the names of the best records
func (s *Server) handleNames(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	records, err := s.records(r, false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, internalError, err)
		return
	}

	best := query.Sort(query.Filter(records, query.Criteria{OnlyBest: true}), query.SortByValue)
	writeJSON(w, http.StatusOK, query.Names(query.Limit(best, limit)))
}

// handleProtocols serves the protocol-statistics projection ordered by TVL
func (s *Server) handleProtocols(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	minTVL, err := queryFloat(r, "minTvl")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	records, err := s.records(r, false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, internalError, err)
		return
	}

	records = query.Filter(records, query.Criteria{
		Category: r.URL.Query().Get("category"),
		MinTVL:   minTVL,
	})
	writeJSON(w, http.StatusOK, query.Protocols(query.Limit(query.Sort(records, query.SortByTVL), limit)))
}

// handleComplete serves the selected fields of the top records by TVL
func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	records, err := s.records(r, false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, internalError, err)
		return
	}

	top := query.Limit(query.Sort(records, query.SortByTVL), limit)
	writeJSON(w, http.StatusOK, query.Fields(top, r.URL.Query().Get("fields")))
}

// handleProfiles serves the latest token profiles
func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	if !s.requireMarket(w) {
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	profiles, err := s.deps.Market.Profiles(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, internalError, err)
		return
	}
	writeJSON(w, http.StatusOK, query.Limit(nonNil(profiles), limit))
}

// handleTokens serves the top tokens by 24h volume
func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	if !s.requireMarket(w) {
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	tokens, err := s.deps.Market.TopTokens(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, internalError, err)
		return
	}
	writeJSON(w, http.StatusOK, query.Limit(nonNil(tokens), limit))
}

// handleMarketMetrics serves pair metrics for the seed tokens or a search
func (s *Server) handleMarketMetrics(w http.ResponseWriter, r *http.Request) {
	if !s.requireMarket(w) {
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	metrics, err := s.deps.Market.Metrics(ctx, r.URL.Query().Get("search"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, internalError, err)
		return
	}
	sorted := query.SortMetrics(metrics, r.URL.Query().Get("sortBy"))
	writeJSON(w, http.StatusOK, nonNil(query.Limit(sorted, limit)))
}

// handleCombined joins records, top tokens and profiles in one response
func (s *Server) handleCombined(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	src := aggregate.Sources{
		Airdrops: func(ctx context.Context) ([]model.Record, error) {
			return s.deps.Records.Get(ctx, false)
		},
	}
	if s.deps.Market != nil {
		src.Tokens = s.deps.Market.TopTokens
		src.Profiles = s.deps.Market.Profiles
	}

	writeJSON(w, http.StatusOK, aggregate.Combine(ctx, src))
}

func (s *Server) requireMarket(w http.ResponseWriter) bool {
	if s.deps.Market == nil {
		writeError(w, http.StatusServiceUnavailable, "market data unavailable", nil)
		return false
	}
	return true
}

// nonNil keeps empty lists encoding as [] rather than null
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
