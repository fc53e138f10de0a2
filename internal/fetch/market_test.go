package fetch

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const marketBase = "https://market.test"

func pairJSON(pair, name, symbol string, vol24 float64) string {
	created := time.Now().Add(-(50*time.Hour + 30*time.Minute)).UnixMilli()
	return fmt.Sprintf(`{
  "chainId":"ethereum","dexId":"uniswap","url":"https://market.test/ethereum/%[1]s","pairAddress":"%[1]s",
  "baseToken":{"address":"0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2","name":"%[2]s","symbol":"%[3]s"},
  "priceUsd":"3120.456",
  "txns":{"m5":{"buys":3,"sells":2},"h1":{"buys":30,"sells":20},"h6":{"buys":300,"sells":200},"h24":{"buys":3000,"sells":"2000"}},
  "volume":{"m5":1500,"h1":25000,"h6":400000,"h24":%[4]v},
  "liquidity":{"usd":12500000},
  "fdv":900000000,
  "pairCreatedAt":%[5]d
}`, pair, name, symbol, vol24, created)
}

func pairsBody(pairs ...string) []byte {
	return []byte(`{"schemaVersion":"1.0.0","pairs":[` + strings.Join(pairs, ",") + `]}`)
}

func seedURL(opts MarketOptions) string {
	return marketBase + "/latest/dex/tokens/" + strings.Join(opts.SeedTokens, ",")
}

func TestMarketAdapter_MetricsSeed(t *testing.T) {
	opts := DefaultMarketOptions()
	f := &stubFetcher{responses: map[string]*Response{
		seedURL(opts): {Status: 200, Body: pairsBody(pairJSON("0xpair1", "Wrapped Ether", "WETH", 98_000_000))},
	}}

	metrics, err := NewMarketAdapter(f, marketBase+"/", opts).Metrics(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, metrics, 1)

	m := metrics[0]
	assert.Equal(t, "Wrapped Ether", m.Token)
	assert.Equal(t, "WETH", m.Symbol)
	assert.Equal(t, "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", m.Address, "EVM addresses are checksummed")
	assert.Equal(t, "$3,120.46", m.Price)
	assert.Equal(t, "2d 2h", m.Age)
	assert.Equal(t, 5, m.Txns.M5)
	assert.Equal(t, 50, m.Txns.H1)
	assert.Equal(t, 500, m.Txns.H6)
	assert.Equal(t, 5000, m.Txns.H24)
	assert.Equal(t, "$1.5K", m.Volume.M5)
	assert.Equal(t, "$98.0M", m.Volume.H24)
	assert.Equal(t, "$12.5M", m.Liquidity)
	assert.Equal(t, "$900.0M", m.MCap, "fdv is used when marketCap is absent")
	assert.Equal(t, "ethereum", m.Chain)
	assert.Equal(t, "uniswap", m.Dex)
}

func TestMarketAdapter_MetricsSearch(t *testing.T) {
	opts := DefaultMarketOptions()
	f := &stubFetcher{responses: map[string]*Response{
		marketBase + "/latest/dex/search?q=pepe+coin": {Status: 200, Body: pairsBody(pairJSON("0xpepe", "Pepe", "PEPE", 5_000))},
	}}

	metrics, err := NewMarketAdapter(f, marketBase, opts).Metrics(context.Background(), "pepe coin")
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.Equal(t, "PEPE", metrics[0].Symbol)
	assert.Equal(t, []string{marketBase + "/latest/dex/search?q=pepe+coin"}, f.calls)
}

func TestMarketAdapter_TopTokens(t *testing.T) {
	opts := DefaultMarketOptions()
	opts.TopLimit = 3

	seed := pairsBody(
		pairJSON("0xa", "Alpha", "ALP", 300_000),
		pairJSON("0xb", "Beta", "BET", 50_000), // under the floor
	)
	broad := pairsBody(
		pairJSON("0xA", "Alpha", "ALP", 300_000), // duplicate pair, different case
		pairJSON("0xc", "Gamma", "GAM", 9_000_000),
		pairJSON("0xd", "Delta", "DEL", 100_000),
		pairJSON("0xe", "Epsilon", "EPS", 1_000_000),
	)
	searchURL := marketBase + "/latest/dex/search?q=SOL"
	f := &stubFetcher{responses: map[string]*Response{
		seedURL(opts): {Status: 200, Body: seed},
		searchURL:     {Status: 200, Body: broad},
	}}

	top, err := NewMarketAdapter(f, marketBase, opts).TopTokens(context.Background())
	require.NoError(t, err)

	var symbols []string
	for _, m := range top {
		symbols = append(symbols, m.Symbol)
	}
	assert.Equal(t, []string{"GAM", "EPS", "ALP"}, symbols)
}

func TestMarketAdapter_TopTokensPartialFailure(t *testing.T) {
	opts := DefaultMarketOptions()
	f := &stubFetcher{responses: map[string]*Response{
		marketBase + "/latest/dex/search?q=SOL": {Status: 200, Body: pairsBody(pairJSON("0xc", "Gamma", "GAM", 9_000_000))},
	}}

	top, err := NewMarketAdapter(f, marketBase, opts).TopTokens(context.Background())
	require.NoError(t, err, "one failing lookup does not fail the view")
	assert.Len(t, top, 1)
}

func TestMarketAdapter_Failures(t *testing.T) {
	opts := DefaultMarketOptions()

	t.Run("all lookups fail", func(t *testing.T) {
		top, err := NewMarketAdapter(&stubFetcher{}, marketBase, opts).TopTokens(context.Background())
		assert.Error(t, err)
		assert.Nil(t, top)
	})

	t.Run("malformed body", func(t *testing.T) {
		f := &stubFetcher{responses: map[string]*Response{seedURL(opts): {Status: 200, Body: []byte(`<html>`)}}}
		metrics, err := NewMarketAdapter(f, marketBase, opts).Metrics(context.Background(), "")
		assert.Error(t, err)
		assert.Nil(t, metrics)
	})

	t.Run("no pairs", func(t *testing.T) {
		f := &stubFetcher{responses: map[string]*Response{seedURL(opts): {Status: 200, Body: []byte(`{"pairs":null}`)}}}
		_, err := NewMarketAdapter(f, marketBase, opts).Metrics(context.Background(), "")
		assert.ErrorIs(t, err, ErrNoRecords)
	})
}

func TestMarketAdapter_Profiles(t *testing.T) {
	body := `[
  {"url":"https://market.test/solana/abc","chainId":"solana","tokenAddress":"AbcDef1111","icon":"https://i/p.png",
   "description":"meme","links":[{"type":"twitter","url":"https://x.com/abc"},{"label":"Website","url":""}]},
  {"url":"https://market.test/base/x","chainId":"base","tokenAddress":"0x833589fcd6edb6e08f4c7c32d4f71b54bda02913"},
  {"chainId":"base"}
]`
	f := &stubFetcher{responses: map[string]*Response{
		marketBase + "/token-profiles/latest/v1": {Status: 200, Body: []byte(body)},
	}}

	profiles, err := NewMarketAdapter(f, marketBase, DefaultMarketOptions()).Profiles(context.Background())
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	assert.Equal(t, "AbcDef1111", profiles[0].TokenAddress, "non-EVM addresses are kept as-is")
	require.Len(t, profiles[0].Links, 1)
	assert.Equal(t, "twitter", profiles[0].Links[0].Type)
	assert.Equal(t, "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", profiles[1].TokenAddress)
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		NormalizeAddress("ethereum", "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"))
	assert.Equal(t, "not-an-address", NormalizeAddress("ethereum", "not-an-address"))
	assert.Equal(t, "So11111111111111111111111111111111111111112",
		NormalizeAddress("solana", "So11111111111111111111111111111111111111112"))
}
