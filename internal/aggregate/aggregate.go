// Package aggregate builds views that combine several upstream sources.
package aggregate

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yourorg/defi-airdrop-feed/internal/model"
	"github.com/yourorg/defi-airdrop-feed/internal/normalize"
)

// Sources are the calls fanned out by Combine. A nil source contributes an
// empty list.
type Sources struct {
	Airdrops func(ctx context.Context) ([]model.Record, error)
	Tokens   func(ctx context.Context) ([]model.TokenMetrics, error)
	Profiles func(ctx context.Context) ([]model.TokenProfile, error)
}

// Combined joins the three sources
type Combined struct {
	Airdrops  []model.Record       `json:"airdrops"`
	Tokens    []model.TokenMetrics `json:"tokens"`
	Profiles  []model.TokenProfile `json:"profiles"`
	Timestamp string               `json:"timestamp"`
	Errors    map[string]string    `json:"errors,omitempty"`
}

// Combine runs the sources concurrently and waits for all of them. A failing
// source yields an empty list and an entry in Errors; it never fails the join.
func Combine(ctx context.Context, src Sources) Combined {
	out := Combined{
		Airdrops: []model.Record{},
		Tokens:   []model.TokenMetrics{},
		Profiles: []model.TokenProfile{},
	}

	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	fail := func(name string, err error) {
		logrus.WithField("source", name).Warnf("Combined view source failed: %v", err)
		mu.Lock()
		defer mu.Unlock()
		if out.Errors == nil {
			out.Errors = make(map[string]string)
		}
		out.Errors[name] = err.Error()
	}

	if src.Airdrops != nil {
		g.Go(func() error {
			records, err := src.Airdrops(ctx)
			if err != nil {
				fail("airdrops", err)
				return nil
			}
			if records != nil {
				out.Airdrops = records
			}
			return nil
		})
	}
	if src.Tokens != nil {
		g.Go(func() error {
			tokens, err := src.Tokens(ctx)
			if err != nil {
				fail("tokens", err)
				return nil
			}
			if tokens != nil {
				out.Tokens = tokens
			}
			return nil
		})
	}
	if src.Profiles != nil {
		g.Go(func() error {
			profiles, err := src.Profiles(ctx)
			if err != nil {
				fail("profiles", err)
				return nil
			}
			if profiles != nil {
				out.Profiles = profiles
			}
			return nil
		})
	}

	_ = g.Wait()
	out.Timestamp = time.Now().UTC().Format(time.RFC3339)
	return out
}

// Summary condenses a record set for status reporting
type Summary struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"byStatus"`
	ByChain  map[string]int `json:"byChain"`
	TotalTVL float64        `json:"totalTvl"`
	TVL      string         `json:"tvl"`
}

// Summarize counts records by status and chain and sums their parsed TVL.
func Summarize(records []model.Record) Summary {
	s := Summary{
		Total:    len(records),
		ByStatus: make(map[string]int),
		ByChain:  make(map[string]int),
	}
	for _, r := range records {
		s.ByStatus[normalize.OrDefault(r.Status, normalize.Unknown)]++
		s.ByChain[normalize.OrDefault(r.Chain, normalize.Unknown)]++
		s.TotalTVL += normalize.ParseMagnitude(r.TVL)
	}
	s.TVL = normalize.FormatMagnitude(&s.TotalTVL)
	return s
}
