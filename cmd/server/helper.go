package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/defi-airdrop-feed/internal/config"
)

// setupLogging configures the global logger
func setupLogging(cfg config.LogConfig) {
	switch strings.ToLower(cfg.Format) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	logrus.Info("Logging configured")
}

// writeJSON encodes v with the given status code
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Warnf("Failed to encode response: %v", err)
	}
}

// apiError is the error body of the /api and /n8n routes
type apiError struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeAPIError writes the enveloped error shape
func writeAPIError(w http.ResponseWriter, status int, msg string, err error) {
	body := apiError{Error: msg}
	if err != nil {
		body.Message = err.Error()
		logrus.Warnf("%s: %v", msg, err)
	}
	writeJSON(w, status, body)
}

// writeError writes the bare error shape of the plain routes
func writeError(w http.ResponseWriter, status int, msg string, err error) {
	if err != nil {
		logrus.Warnf("%s: %v", msg, err)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

// queryBool reports whether the parameter is literally "true"
func queryBool(r *http.Request, key string) bool {
	return r.URL.Query().Get(key) == "true"
}

// queryInt parses an integer parameter, returning def when it is absent
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return n, nil
}

// queryFloat parses a float parameter, returning 0 when it is absent
func queryFloat(r *http.Request, key string) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return f, nil
}

// timestamp formats t as RFC3339 in UTC
func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// lastUpdate returns the last refresh time, or nil before the first refresh
func (s *Server) lastUpdate() *string {
	at, ok := s.deps.Records.PeekLastRefreshTime()
	if !ok {
		return nil
	}
	v := timestamp(at)
	return &v
}
