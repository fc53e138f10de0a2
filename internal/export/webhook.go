// Package export pushes refreshed record sets to a downstream webhook in
// signed batches.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/defi-airdrop-feed/internal/model"
	"github.com/yourorg/defi-airdrop-feed/internal/security"
)

// Headers set on every batch request
const (
	SignatureHeader = "X-Signature"
	SignerHeader    = "X-Signer"
)

// Config holds configuration for the webhook exporter
type Config struct {
	URL       string        `toml:"url" json:"url"`
	APIKey    string        `toml:"api_key" json:"-"`
	BatchSize int           `toml:"batch_size" json:"batch_size"`
	Interval  time.Duration `toml:"interval" json:"interval"`
	Timeout   time.Duration `toml:"timeout" json:"timeout"`
	RetryMax  int           `toml:"retry_max" json:"retry_max"`
}

// DefaultConfig returns an exporter config with no URL, which disables it
func DefaultConfig() Config {
	return Config{
		BatchSize: 10,
		Interval:  time.Minute,
		Timeout:   10 * time.Second,
		RetryMax:  2,
	}
}

// Enabled reports whether a webhook URL is configured
func (c Config) Enabled() bool { return c.URL != "" }

// Snapshot is one refreshed record set
type Snapshot struct {
	TakenAt string         `json:"taken_at"`
	Count   int            `json:"count"`
	Records []model.Record `json:"records"`
}

type batch struct {
	Snapshots  []Snapshot `json:"snapshots"`
	ExportTime string     `json:"export_time"`
	Count      int        `json:"count"`
}

// Status is the exporter state reported by /status
type Status struct {
	Enabled      bool   `json:"enabled"`
	BatchSize    int    `json:"batch_size"`
	Interval     string `json:"interval"`
	CurrentBatch int    `json:"current_batch"`
	Exported     int    `json:"exported"`
	LastExport   string `json:"last_export,omitempty"`
	LastError    string `json:"last_error,omitempty"`
	Signer       string `json:"signer,omitempty"`
}

// Exporter batches snapshots and posts them to the webhook
type Exporter struct {
	config Config
	client *retryablehttp.Client
	signer *security.Signer
	now    func() time.Time

	mu         sync.Mutex
	pending    []Snapshot
	lastExport time.Time
	lastErr    string
	exported   int

	// sendMu serializes posts so batches arrive in order
	sendMu sync.Mutex

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an exporter. A nil signer sends unsigned batches. Call Start to
// begin periodic exports.
func New(cfg Config, signer *security.Signer) *Exporter {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = cfg.Timeout
	client.Logger = nil

	return &Exporter{
		config: cfg,
		client: client,
		signer: signer,
		now:    time.Now,
	}
}

// Start runs the periodic export loop until Stop is called
func (e *Exporter) Start() {
	if !e.config.Enabled() || e.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})

	go func() {
		defer close(e.done)
		ticker := time.NewTicker(e.config.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := e.Flush(ctx); err != nil {
					logrus.Errorf("Periodic snapshot export failed: %v", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	logrus.WithFields(logrus.Fields{
		"url":        e.config.URL,
		"interval":   e.config.Interval,
		"batch_size": e.config.BatchSize,
	}).Info("Snapshot exporter started")
}

// Enqueue adds a snapshot of records to the pending batch. A full batch is
// exported immediately in the background.
func (e *Exporter) Enqueue(records []model.Record) {
	if !e.config.Enabled() || len(records) == 0 {
		return
	}

	e.mu.Lock()
	e.pending = append(e.pending, Snapshot{
		TakenAt: e.now().UTC().Format(time.RFC3339),
		Count:   len(records),
		Records: records,
	})
	full := len(e.pending) >= e.config.BatchSize
	e.mu.Unlock()

	if full {
		go func() {
			if err := e.Flush(context.Background()); err != nil {
				logrus.Errorf("Snapshot export failed: %v", err)
			}
		}()
	}
}

// Flush posts every pending snapshot. On failure the snapshots are dropped
// and the error is kept for Status.
func (e *Exporter) Flush(ctx context.Context) error {
	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	e.mu.Lock()
	if len(e.pending) == 0 {
		e.mu.Unlock()
		return nil
	}
	snapshots := e.pending
	e.pending = nil
	e.mu.Unlock()

	err := e.post(ctx, snapshots)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.lastErr = err.Error()
		return err
	}
	e.lastErr = ""
	e.lastExport = e.now()
	e.exported += len(snapshots)
	logrus.Infof("Exported %d snapshots to webhook", len(snapshots))
	return nil
}

func (e *Exporter) post(ctx context.Context, snapshots []Snapshot) error {
	body, err := json.Marshal(batch{
		Snapshots:  snapshots,
		ExportTime: e.now().UTC().Format(time.RFC3339),
		Count:      len(snapshots),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal snapshots: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, e.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	}
	if e.signer != nil {
		sig, err := e.signer.Sign(body)
		if err != nil {
			return err
		}
		req.Header.Set(SignatureHeader, sig)
		req.Header.Set(SignerHeader, e.signer.Address())
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned error status: %d", resp.StatusCode)
	}
	return nil
}

// Stop ends the export loop and flushes what is pending
func (e *Exporter) Stop(ctx context.Context) {
	if e.cancel != nil {
		e.cancel()
		<-e.done
		e.cancel = nil
	}
	if err := e.Flush(ctx); err != nil {
		logrus.Errorf("Final snapshot export failed: %v", err)
	}
}

// Status returns the current exporter state
func (e *Exporter) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Status{
		Enabled:      e.config.Enabled(),
		BatchSize:    e.config.BatchSize,
		Interval:     e.config.Interval.String(),
		CurrentBatch: len(e.pending),
		Exported:     e.exported,
		LastError:    e.lastErr,
	}
	if !e.lastExport.IsZero() {
		s.LastExport = e.lastExport.UTC().Format(time.RFC3339)
	}
	if e.signer != nil {
		s.Signer = e.signer.Address()
	}
	return s
}
