// Package model defines the core data structures for the airdrop feed.
package model

import (
	"fmt"
	"time"
)

// Record is the normalized, display-ready unit of protocol/airdrop data.
// Economic fields are display strings (already unit-suffixed or sign-prefixed).
// An empty string means the field is absent.
type Record struct {
	// Identity
	Name   string `json:"name"`
	Symbol string `json:"symbol,omitempty"`

	// Descriptive
	Category    string `json:"category,omitempty"`
	Chain       string `json:"chain,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	Logo        string `json:"logo,omitempty"`

	// Economic
	TVL      string `json:"tvl,omitempty"`
	MCap     string `json:"mcap,omitempty"`
	Value    string `json:"value,omitempty"`
	Change1d string `json:"change1d,omitempty"`
	Change7d string `json:"change7d,omitempty"`
	Change1m string `json:"change1m,omitempty"`

	// Temporal
	ListedAt    string `json:"listedAt,omitempty"`
	Deadline    string `json:"deadline,omitempty"`
	LastUpdated string `json:"lastUpdated,omitempty"`

	// Status is free text; canonical values are the Status* constants
	Status string `json:"status"`
}

// Canonical status values
const (
	StatusActive    = "Active"
	StatusTBD       = "TBD"
	StatusPotential = "Potential"
	StatusRecent    = "Recent"
	StatusUnknown   = "Unknown"
)

// Validate reports a record missing one of its required fields.
func (r Record) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("record has empty name")
	}
	if r.Status == "" {
		return fmt.Errorf("record %q has empty status", r.Name)
	}
	return nil
}

// Stamp sets LastUpdated to t when the record does not carry one yet.
func (r Record) Stamp(t time.Time) Record {
	if r.LastUpdated == "" {
		r.LastUpdated = t.UTC().Format(time.RFC3339)
	}
	return r
}

// ProtocolStat is the intermediate shape produced by the statistics adapter.
// It only lives while the orchestrator maps it into a Record.
type ProtocolStat struct {
	Name        string
	Symbol      string
	Slug        string
	Category    string
	Chain       string
	Chains      []string
	Description string
	URL         string
	Logo        string

	// SymbolSynthesized is true when Symbol was derived from Name
	SymbolSynthesized bool

	TVL      *float64
	MCap     *float64
	Change1d *float64
	Change7d *float64
	Change1m *float64

	// ListedAt is a unix timestamp in seconds
	ListedAt *int64
}

// TxnCounts holds buys+sells per time bucket.
type TxnCounts struct {
	M5  int `json:"m5"`
	H1  int `json:"h1"`
	H6  int `json:"h6"`
	H24 int `json:"h24"`
}

// VolumeFigures holds formatted volume per time bucket.
type VolumeFigures struct {
	M5  string `json:"m5"`
	H1  string `json:"h1"`
	H6  string `json:"h6"`
	H24 string `json:"h24"`
}

// TokenMetrics is a market-data view of one trading pair.
type TokenMetrics struct {
	Token       string        `json:"token"`
	Symbol      string        `json:"symbol"`
	Address     string        `json:"address,omitempty"`
	PairAddress string        `json:"pairAddress,omitempty"`
	Price       string        `json:"price"`
	Age         string        `json:"age"`
	Txns        TxnCounts     `json:"txns"`
	Volume      VolumeFigures `json:"volume"`
	Liquidity   string        `json:"liquidity"`
	MCap        string        `json:"mcap"`
	Chain       string        `json:"chain"`
	Dex         string        `json:"dex"`
	URL         string        `json:"url,omitempty"`

	// Volume24h is the raw 24h volume, kept for ranking
	Volume24h float64 `json:"-"`
}

// ProfileLink is an external link attached to a token profile.
type ProfileLink struct {
	Type  string `json:"type,omitempty"`
	Label string `json:"label,omitempty"`
	URL   string `json:"url"`
}

// TokenProfile is a token's public profile on the market API.
type TokenProfile struct {
	URL          string        `json:"url"`
	ChainID      string        `json:"chainId"`
	TokenAddress string        `json:"tokenAddress"`
	Icon         string        `json:"icon,omitempty"`
	Description  string        `json:"description,omitempty"`
	Links        []ProfileLink `json:"links,omitempty"`
}
