package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/defi-airdrop-feed/internal/model"
	"github.com/yourorg/defi-airdrop-feed/internal/normalize"
	"github.com/yourorg/defi-airdrop-feed/internal/types"
)

// MarketOptions tunes the market adapter
type MarketOptions struct {
	// SeedTokens are queried when no search term is given
	SeedTokens []string `toml:"seed_tokens"`
	// TopTokensQuery is the broader search merged into the top-tokens view
	TopTokensQuery string `toml:"top_tokens_query"`
	// MinVolume is the 24h volume floor for the top-tokens view
	MinVolume float64 `toml:"min_volume"`
	// TopLimit truncates the top-tokens view
	TopLimit int `toml:"top_limit"`
}

// DefaultMarketOptions seeds WETH, USDC and wrapped SOL.
func DefaultMarketOptions() MarketOptions {
	return MarketOptions{
		SeedTokens: []string{
			"0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
			"0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
			"So11111111111111111111111111111111111111112",
		},
		TopTokensQuery: "SOL",
		MinVolume:      100_000,
		TopLimit:       20,
	}
}

type txnBucket struct {
	Buys  optInt `json:"buys"`
	Sells optInt `json:"sells"`
}

func (b txnBucket) total() int {
	var n int64
	if v := b.Buys.Ptr(); v != nil {
		n += *v
	}
	if v := b.Sells.Ptr(); v != nil {
		n += *v
	}
	return int(n)
}

type pairToken struct {
	Address optString `json:"address"`
	Name    optString `json:"name"`
	Symbol  optString `json:"symbol"`
}

// pairEntry matches one trading pair of the market API
type pairEntry struct {
	ChainID     optString `json:"chainId"`
	DexID       optString `json:"dexId"`
	URL         optString `json:"url"`
	PairAddress optString `json:"pairAddress"`
	BaseToken   pairToken `json:"baseToken"`
	PriceUsd    optFloat  `json:"priceUsd"`
	Txns        struct {
		M5  txnBucket `json:"m5"`
		H1  txnBucket `json:"h1"`
		H6  txnBucket `json:"h6"`
		H24 txnBucket `json:"h24"`
	} `json:"txns"`
	Volume struct {
		M5  optFloat `json:"m5"`
		H1  optFloat `json:"h1"`
		H6  optFloat `json:"h6"`
		H24 optFloat `json:"h24"`
	} `json:"volume"`
	Liquidity struct {
		USD optFloat `json:"usd"`
	} `json:"liquidity"`
	FDV           optFloat `json:"fdv"`
	MarketCap     optFloat `json:"marketCap"`
	PairCreatedAt optInt   `json:"pairCreatedAt"`
}

type profileEntry struct {
	URL          optString `json:"url"`
	ChainID      optString `json:"chainId"`
	TokenAddress optString `json:"tokenAddress"`
	Icon         optString `json:"icon"`
	Description  optString `json:"description"`
	Links        []struct {
		Type  optString `json:"type"`
		Label optString `json:"label"`
		URL   optString `json:"url"`
	} `json:"links"`
}

// MarketAdapter reads token and pair data from the market API.
type MarketAdapter struct {
	fetcher Fetcher
	baseURL string
	opts    MarketOptions
}

// NewMarketAdapter creates a market adapter rooted at baseURL.
func NewMarketAdapter(fetcher Fetcher, baseURL string, opts MarketOptions) *MarketAdapter {
	return &MarketAdapter{
		fetcher: fetcher,
		baseURL: strings.TrimRight(baseURL, "/"),
		opts:    opts,
	}
}

// Name identifies the adapter in logs and metrics.
func (a *MarketAdapter) Name() string { return "market" }

// Metrics returns metrics for the seed tokens, or for search when non-empty.
func (a *MarketAdapter) Metrics(ctx context.Context, search string) ([]model.TokenMetrics, error) {
	var (
		pairs []pairEntry
		err   error
	)
	if strings.TrimSpace(search) == "" {
		pairs, err = a.seedPairs(ctx)
	} else {
		pairs, err = a.searchPairs(ctx, search)
	}
	if err != nil {
		return nil, err
	}

	metrics := make([]model.TokenMetrics, 0, len(pairs))
	for _, p := range pairs {
		metrics = append(metrics, toMetrics(p))
	}
	if len(metrics) == 0 {
		return nil, fmt.Errorf("market pairs: %w", ErrNoRecords)
	}
	return metrics, nil
}

// TopTokens merges the seed pairs with a broader search, drops pairs under
// the volume floor and returns the most traded ones.
func (a *MarketAdapter) TopTokens(ctx context.Context) ([]model.TokenMetrics, error) {
	seed, seedErr := a.seedPairs(ctx)
	if seedErr != nil {
		logrus.Warnf("Seed token lookup failed: %v", seedErr)
	}
	broad, searchErr := a.searchPairs(ctx, a.opts.TopTokensQuery)
	if searchErr != nil {
		logrus.Warnf("Top token search failed: %v", searchErr)
	}
	if seedErr != nil && searchErr != nil {
		return nil, fmt.Errorf("top tokens: %w", searchErr)
	}

	seen := make(map[string]bool)
	var ranked []model.TokenMetrics
	for _, p := range append(seed, broad...) {
		key := strings.ToLower(string(p.PairAddress))
		if key != "" {
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		if p.Volume.H24.Or(0) < a.opts.MinVolume {
			continue
		}
		ranked = append(ranked, toMetrics(p))
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Volume24h > ranked[j].Volume24h
	})
	if a.opts.TopLimit > 0 && len(ranked) > a.opts.TopLimit {
		ranked = ranked[:a.opts.TopLimit]
	}
	if len(ranked) == 0 {
		return nil, fmt.Errorf("top tokens: %w", ErrNoRecords)
	}
	return ranked, nil
}

// Profiles returns the latest published token profiles.
func (a *MarketAdapter) Profiles(ctx context.Context) ([]model.TokenProfile, error) {
	resp, err := a.fetcher.Fetch(ctx, a.baseURL+"/token-profiles/latest/v1", jsonHeaders)
	if err != nil {
		return nil, fmt.Errorf("error fetching token profiles: %w", err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return nil, fmt.Errorf("error decoding token profiles: %w", err)
	}

	profiles := make([]model.TokenProfile, 0, len(raw))
	for _, item := range raw {
		var e profileEntry
		if err := json.Unmarshal(item, &e); err != nil || e.TokenAddress == "" {
			continue
		}

		profile := model.TokenProfile{
			URL:          string(e.URL),
			ChainID:      string(e.ChainID),
			TokenAddress: NormalizeAddress(string(e.ChainID), string(e.TokenAddress)),
			Icon:         string(e.Icon),
			Description:  string(e.Description),
		}
		for _, l := range e.Links {
			if l.URL == "" {
				continue
			}
			profile.Links = append(profile.Links, model.ProfileLink{
				Type:  string(l.Type),
				Label: string(l.Label),
				URL:   string(l.URL),
			})
		}
		profiles = append(profiles, profile)
	}

	if len(profiles) == 0 {
		return nil, fmt.Errorf("token profiles: %w", ErrNoRecords)
	}
	return profiles, nil
}

func (a *MarketAdapter) seedPairs(ctx context.Context) ([]pairEntry, error) {
	if len(a.opts.SeedTokens) == 0 {
		return nil, fmt.Errorf("no seed tokens configured")
	}
	addrs := make([]string, 0, len(a.opts.SeedTokens))
	for _, t := range a.opts.SeedTokens {
		addrs = append(addrs, url.PathEscape(strings.TrimSpace(t)))
	}
	return a.pairs(ctx, a.baseURL+"/latest/dex/tokens/"+strings.Join(addrs, ","))
}

func (a *MarketAdapter) searchPairs(ctx context.Context, term string) ([]pairEntry, error) {
	return a.pairs(ctx, a.baseURL+"/latest/dex/search?q="+url.QueryEscape(term))
}

func (a *MarketAdapter) pairs(ctx context.Context, u string) ([]pairEntry, error) {
	resp, err := a.fetcher.Fetch(ctx, u, jsonHeaders)
	if err != nil {
		return nil, fmt.Errorf("error fetching market pairs: %w", err)
	}

	var payload struct {
		Pairs []json.RawMessage `json:"pairs"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, fmt.Errorf("error decoding market pairs: %w", err)
	}

	pairs := make([]pairEntry, 0, len(payload.Pairs))
	for _, item := range payload.Pairs {
		var p pairEntry
		if err := json.Unmarshal(item, &p); err != nil {
			continue
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}

func toMetrics(p pairEntry) model.TokenMetrics {
	var age *int64
	if ms := p.PairCreatedAt.Ptr(); ms != nil {
		sec := *ms / 1000
		age = &sec
	}

	mcap := p.MarketCap.Ptr()
	if mcap == nil {
		mcap = p.FDV.Ptr()
	}

	chain := string(p.ChainID)
	return model.TokenMetrics{
		Token:       normalize.OrDefault(string(p.BaseToken.Name), normalize.Unknown),
		Symbol:      normalize.OrDefault(string(p.BaseToken.Symbol), normalize.NotAvailable),
		Address:     NormalizeAddress(chain, string(p.BaseToken.Address)),
		PairAddress: string(p.PairAddress),
		Price:       normalize.FormatPrice(p.PriceUsd.Ptr()),
		Age:         normalize.FormatAge(age),
		Txns: model.TxnCounts{
			M5:  p.Txns.M5.total(),
			H1:  p.Txns.H1.total(),
			H6:  p.Txns.H6.total(),
			H24: p.Txns.H24.total(),
		},
		Volume: model.VolumeFigures{
			M5:  normalize.FormatMagnitude(p.Volume.M5.Ptr()),
			H1:  normalize.FormatMagnitude(p.Volume.H1.Ptr()),
			H6:  normalize.FormatMagnitude(p.Volume.H6.Ptr()),
			H24: normalize.FormatMagnitude(p.Volume.H24.Ptr()),
		},
		Liquidity: normalize.FormatMagnitude(p.Liquidity.USD.Ptr()),
		MCap:      normalize.FormatMagnitude(mcap),
		Chain:     chain,
		Dex:       string(p.DexID),
		URL:       string(p.URL),
		Volume24h: p.Volume.H24.Or(0),
	}
}

// NormalizeAddress returns the EIP-55 checksum form of an EVM address.
// Addresses of other chains, and malformed ones, are returned unchanged.
func NormalizeAddress(chainID, addr string) string {
	addr = strings.TrimSpace(addr)
	if !types.IsEVMChain(chainID) || !common.IsHexAddress(addr) {
		return addr
	}
	return common.HexToAddress(addr).Hex()
}
