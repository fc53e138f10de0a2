// Package types contains shared type definitions used across multiple packages
package types

import "strings"

// ChainTicker is a short chain code as it appears on listing pages
type ChainTicker string

// Known chain tickers, in match priority order
const (
	ChainETH      ChainTicker = "ETH"
	ChainBSC      ChainTicker = "BSC"
	ChainPolygon  ChainTicker = "POLYGON"
	ChainAVAX     ChainTicker = "AVAX"
	ChainSolana   ChainTicker = "SOLANA"
	ChainSOL      ChainTicker = "SOL"
	ChainArbitrum ChainTicker = "ARBITRUM"
	ChainOptimism ChainTicker = "OPTIMISM"
)

// KnownChainTickers is scanned in order; SOLANA precedes SOL so the longer
// code wins.
var KnownChainTickers = []ChainTicker{
	ChainETH,
	ChainBSC,
	ChainPolygon,
	ChainAVAX,
	ChainSolana,
	ChainSOL,
	ChainArbitrum,
	ChainOptimism,
}

// DetectChain returns the first known ticker contained in text, ignoring case.
func DetectChain(text string) (ChainTicker, bool) {
	upper := strings.ToUpper(text)
	for _, ticker := range KnownChainTickers {
		if strings.Contains(upper, string(ticker)) {
			return ticker, true
		}
	}
	return "", false
}

// evmChains lists market-API chain ids whose token addresses are 20-byte hex
var evmChains = map[string]bool{
	"ethereum":  true,
	"bsc":       true,
	"polygon":   true,
	"arbitrum":  true,
	"optimism":  true,
	"avalanche": true,
	"base":      true,
}

// IsEVMChain reports whether the market-API chain id uses EVM addresses.
func IsEVMChain(chainID string) bool {
	return evmChains[strings.ToLower(chainID)]
}
