package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/defi-airdrop-feed/internal/model"
)

// StatsOptions tunes the statistics adapter
type StatsOptions struct {
	// MinTVL is the exclusive TVL floor an entry must exceed
	MinTVL float64 `toml:"min_tvl"`
	// Limit truncates the filtered list, in upstream order
	Limit int `toml:"limit"`
	// ProtocolBaseURL prefixes synthesized protocol URLs
	ProtocolBaseURL string `toml:"protocol_base_url"`
}

// DefaultStatsOptions returns the floor of 1M, the top 50 and the
// DeFiLlama site as URL base.
func DefaultStatsOptions() StatsOptions {
	return StatsOptions{
		MinTVL:          1_000_000,
		Limit:           50,
		ProtocolBaseURL: "https://defillama.com",
	}
}

// protocolEntry matches one element of the protocols array
type protocolEntry struct {
	Name        optString       `json:"name"`
	Symbol      optString       `json:"symbol"`
	Slug        optString       `json:"slug"`
	Category    optString       `json:"category"`
	Chain       optString       `json:"chain"`
	Chains      json.RawMessage `json:"chains"`
	Description optString       `json:"description"`
	URL         optString       `json:"url"`
	Logo        optString       `json:"logo"`
	TVL         optFloat        `json:"tvl"`
	MCap        optFloat        `json:"mcap"`
	Change1d    optFloat        `json:"change_1d"`
	Change7d    optFloat        `json:"change_7d"`
	Change1m    optFloat        `json:"change_1m"`
	ListedAt    optInt          `json:"listedAt"`
}

// StatsAdapter reads the bulk protocol-statistics API.
type StatsAdapter struct {
	fetcher Fetcher
	url     string
	opts    StatsOptions
}

// NewStatsAdapter creates a statistics adapter.
func NewStatsAdapter(fetcher Fetcher, url string, opts StatsOptions) *StatsAdapter {
	return &StatsAdapter{
		fetcher: fetcher,
		url:     url,
		opts:    opts,
	}
}

// Name identifies the adapter in logs and metrics.
func (a *StatsAdapter) Name() string { return "statistics" }

// Fetch retrieves protocol statistics, keeping the first Limit entries whose
// TVL exceeds MinTVL.
func (a *StatsAdapter) Fetch(ctx context.Context) ([]model.ProtocolStat, error) {
	resp, err := a.fetcher.Fetch(ctx, a.url, jsonHeaders)
	if err != nil {
		return nil, fmt.Errorf("error fetching protocol statistics: %w", err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return nil, fmt.Errorf("error decoding protocol statistics: %w", err)
	}

	stats := make([]model.ProtocolStat, 0, a.opts.Limit)
	skipped := 0
	for _, item := range raw {
		if a.opts.Limit > 0 && len(stats) >= a.opts.Limit {
			break
		}

		var entry protocolEntry
		if err := json.Unmarshal(item, &entry); err != nil {
			skipped++
			continue
		}
		if entry.Name == "" || entry.TVL.Or(0) <= a.opts.MinTVL {
			continue
		}
		stats = append(stats, a.toStat(entry))
	}

	if skipped > 0 {
		logrus.Debugf("Skipped %d malformed protocol entries", skipped)
	}
	if len(stats) == 0 {
		return nil, fmt.Errorf("protocol statistics: %w", ErrNoRecords)
	}

	logrus.Debugf("Received %d protocol statistics", len(stats))
	return stats, nil
}

func (a *StatsAdapter) toStat(e protocolEntry) model.ProtocolStat {
	name := string(e.Name)

	stat := model.ProtocolStat{
		Name:        name,
		Symbol:      string(e.Symbol),
		Slug:        string(e.Slug),
		Category:    string(e.Category),
		Chain:       string(e.Chain),
		Chains:      decodeChains(e.Chains),
		Description: string(e.Description),
		URL:         string(e.URL),
		Logo:        string(e.Logo),
		TVL:         e.TVL.Ptr(),
		MCap:        e.MCap.Ptr(),
		Change1d:    e.Change1d.Ptr(),
		Change7d:    e.Change7d.Ptr(),
		Change1m:    e.Change1m.Ptr(),
		ListedAt:    e.ListedAt.Ptr(),
	}

	if stat.Symbol == "" || stat.Symbol == "-" {
		stat.Symbol = FallbackSymbol(name)
		stat.SymbolSynthesized = true
	}
	if stat.Slug == "" {
		stat.Slug = Slugify(name)
	}
	if stat.URL == "" {
		stat.URL = strings.TrimRight(a.opts.ProtocolBaseURL, "/") + "/protocol/" + stat.Slug
	}
	if stat.Chain == "" && len(stat.Chains) == 1 {
		stat.Chain = stat.Chains[0]
	}
	return stat
}

func decodeChains(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var items []optString
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	chains := make([]string, 0, len(items))
	for _, c := range items {
		if c != "" {
			chains = append(chains, string(c))
		}
	}
	return chains
}

// FallbackSymbol synthesizes a ticker from the first three characters of a
// protocol name.
func FallbackSymbol(name string) string {
	r := []rune(strings.TrimSpace(name))
	if len(r) > 3 {
		r = r[:3]
	}
	return strings.ToUpper(string(r))
}

// Slugify lower-cases name and joins its alphanumeric runs with hyphens.
func Slugify(name string) string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, "-")
}
