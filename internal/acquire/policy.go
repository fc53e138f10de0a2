package acquire

import "time"

// ValueTier maps protocols with a TVL strictly above MinTVL to an estimated
// opportunity value range.
type ValueTier struct {
	MinTVL float64 `toml:"min_tvl"`
	Value  string  `toml:"value"`
}

// Policy holds the heuristics of the derived stage.
type Policy struct {
	// ValueTiers are checked in order; the first matching tier wins
	ValueTiers []ValueTier `toml:"value_tiers"`

	// DefaultValue is used when no tier matches
	DefaultValue string `toml:"default_value"`

	// RecentWindow is how long after listing a protocol counts as recent
	RecentWindow time.Duration `toml:"recent_window"`
}

// DefaultPolicy returns the stock value tiers and a 365-day recency window.
func DefaultPolicy() Policy {
	return Policy{
		ValueTiers: []ValueTier{
			{MinTVL: 5e9, Value: "$2000-10000"},
			{MinTVL: 1e9, Value: "$1000-5000"},
			{MinTVL: 500e6, Value: "$500-2000"},
			{MinTVL: 100e6, Value: "$200-1000"},
		},
		DefaultValue: "$50-500",
		RecentWindow: 365 * 24 * time.Hour,
	}
}
