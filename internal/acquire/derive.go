package acquire

import (
	"strings"
	"time"

	"github.com/yourorg/defi-airdrop-feed/internal/fetch"
	"github.com/yourorg/defi-airdrop-feed/internal/model"
	"github.com/yourorg/defi-airdrop-feed/internal/normalize"
)

// DeriveRecord maps a protocol statistic into a record stamped at now.
// Absent numbers stay absent (empty display fields).
func DeriveRecord(stat model.ProtocolStat, p Policy, now time.Time) model.Record {
	chain := stat.Chain
	if chain == "" && len(stat.Chains) > 0 {
		chain = stat.Chains[0]
	}

	r := model.Record{
		Name:        stat.Name,
		Symbol:      stat.Symbol,
		Category:    stat.Category,
		Chain:       chain,
		Description: stat.Description,
		URL:         stat.URL,
		Logo:        stat.Logo,
		TVL:         magnitude(stat.TVL),
		MCap:        magnitude(stat.MCap),
		Change1d:    percentage(stat.Change1d),
		Change7d:    percentage(stat.Change7d),
		Change1m:    percentage(stat.Change1m),
		ListedAt:    normalize.FormatDate(stat.ListedAt),
		Value:       EstimateValue(stat.TVL, p),
		Status:      DeriveStatus(stat, p, now),
	}
	return r.Stamp(now)
}

// EstimateValue applies the policy's TVL step function.
func EstimateValue(tvl *float64, p Policy) string {
	if tvl == nil {
		return normalize.TBD
	}
	for _, tier := range p.ValueTiers {
		if *tvl > tier.MinTVL {
			return tier.Value
		}
	}
	return p.DefaultValue
}

// DeriveStatus classifies a statistic. A protocol without a symbol of its own
// is Potential; otherwise one listed within the recency window is Recent.
func DeriveStatus(stat model.ProtocolStat, p Policy, now time.Time) string {
	if stat.SymbolSynthesized || stat.Symbol == "" ||
		strings.EqualFold(stat.Symbol, fetch.FallbackSymbol(stat.Name)) {
		return model.StatusPotential
	}
	if stat.ListedAt != nil && now.Sub(time.Unix(*stat.ListedAt, 0)) <= p.RecentWindow {
		return model.StatusRecent
	}
	return model.StatusTBD
}

func magnitude(n *float64) string {
	if n == nil {
		return ""
	}
	return normalize.FormatMagnitude(n)
}

func percentage(n *float64) string {
	if n == nil {
		return ""
	}
	return normalize.FormatSignedPercentage(n)
}
