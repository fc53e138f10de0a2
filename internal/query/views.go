package query

import (
	"sort"
	"strings"

	"github.com/yourorg/defi-airdrop-feed/internal/model"
	"github.com/yourorg/defi-airdrop-feed/internal/normalize"
)

// Display defaults for the projections
const (
	DefaultCategory   = "DeFi"
	DefaultChain      = "Multi-Chain"
	DefaultShortChain = "Multi"
)

// Protocol is the protocol-statistics projection of a record.
type Protocol struct {
	Name     string  `json:"name"`
	Symbol   string  `json:"symbol"`
	Category string  `json:"category"`
	TVL      string  `json:"tvl"`
	ListedAt string  `json:"listedAt"`
	Change1d string  `json:"change1d"`
	Change7d string  `json:"change7d"`
	Change1m string  `json:"change1m"`
	Chain    string  `json:"chain"`
	MCap     string  `json:"mcap"`
	Logo     *string `json:"logo"`
	URL      *string `json:"url"`
}

// Protocols projects records with display defaults filled in.
func Protocols(records []model.Record) []Protocol {
	out := make([]Protocol, 0, len(records))
	for _, r := range records {
		out = append(out, Protocol{
			Name:     r.Name,
			Symbol:   normalize.OrDefault(r.Symbol, normalize.NotAvailable),
			Category: normalize.OrDefault(r.Category, DefaultCategory),
			TVL:      normalize.OrDefault(r.TVL, normalize.NotAvailable),
			ListedAt: normalize.OrDefault(r.ListedAt, normalize.NotAvailable),
			Change1d: normalize.OrDefault(r.Change1d, normalize.NotAvailable),
			Change7d: normalize.OrDefault(r.Change7d, normalize.NotAvailable),
			Change1m: normalize.OrDefault(r.Change1m, normalize.NotAvailable),
			Chain:    normalize.OrDefault(r.Chain, DefaultChain),
			MCap:     normalize.OrDefault(r.MCap, normalize.NotAvailable),
			Logo:     nullable(r.Logo),
			URL:      nullable(r.URL),
		})
	}
	return out
}

// Simplified is the compact shape served to automation workflows.
type Simplified struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Status   string  `json:"status"`
	Chain    string  `json:"chain"`
	Deadline *string `json:"deadline"`
	URL      *string `json:"url"`
}

// Simplify projects records into the compact shape.
func Simplify(records []model.Record) []Simplified {
	out := make([]Simplified, 0, len(records))
	for _, r := range records {
		out = append(out, Simplified{
			Name:     r.Name,
			Value:    normalize.OrDefault(r.Value, normalize.TBD),
			Status:   normalize.OrDefault(r.Status, normalize.Unknown),
			Chain:    normalize.OrDefault(r.Chain, DefaultShortChain),
			Deadline: nullable(r.Deadline),
			URL:      nullable(r.URL),
		})
	}
	return out
}

type field struct {
	key string
	get func(model.Record) string
}

var (
	fieldName     = field{"name", func(r model.Record) string { return r.Name }}
	fieldCategory = field{"category", func(r model.Record) string { return normalize.OrDefault(r.Category, DefaultCategory) }}
	fieldTVL      = field{"tvl", func(r model.Record) string { return normalize.OrDefault(r.TVL, normalize.NotAvailable) }}
	fieldListedAt = field{"listedAt", func(r model.Record) string { return normalize.OrDefault(r.ListedAt, normalize.NotAvailable) }}
	fieldChange1d = field{"change1d", func(r model.Record) string { return normalize.OrDefault(r.Change1d, normalize.NotAvailable) }}
	fieldChange7d = field{"change7d", func(r model.Record) string { return normalize.OrDefault(r.Change7d, normalize.NotAvailable) }}
	fieldChange1m = field{"change1m", func(r model.Record) string { return normalize.OrDefault(r.Change1m, normalize.NotAvailable) }}
	fieldSymbol   = field{"symbol", func(r model.Record) string { return normalize.OrDefault(r.Symbol, normalize.NotAvailable) }}
	fieldChain    = field{"chain", func(r model.Record) string { return normalize.OrDefault(r.Chain, DefaultChain) }}
	fieldMCap     = field{"mcap", func(r model.Record) string { return normalize.OrDefault(r.MCap, normalize.NotAvailable) }}

	completeFields = []field{
		fieldName, fieldCategory, fieldTVL, fieldListedAt, fieldChange1d,
		fieldChange7d, fieldChange1m, fieldSymbol, fieldChain, fieldMCap,
	}

	fieldAliases = map[string]field{
		"name":      fieldName,
		"category":  fieldCategory,
		"tvl":       fieldTVL,
		"listedat":  fieldListedAt,
		"listed_at": fieldListedAt,
		"1d":        fieldChange1d,
		"change1d":  fieldChange1d,
		"7d":        fieldChange7d,
		"change7d":  fieldChange7d,
		"1m":        fieldChange1m,
		"change1m":  fieldChange1m,
		"symbol":    fieldSymbol,
		"chain":     fieldChain,
		"mcap":      fieldMCap,
	}
)

// Fields projects each record onto the comma-separated field list. Names
// are case-insensitive and accept the 1d/7d/1m and listed_at aliases;
// unknown names are ignored. An empty list selects every field.
func Fields(records []model.Record, list string) []map[string]string {
	selected := completeFields
	if strings.TrimSpace(list) != "" {
		selected = nil
		for _, name := range strings.Split(list, ",") {
			if f, ok := fieldAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
				selected = append(selected, f)
			}
		}
	}

	out := make([]map[string]string, 0, len(records))
	for _, r := range records {
		row := make(map[string]string, len(selected))
		for _, f := range selected {
			row[f.key] = f.get(r)
		}
		out = append(out, row)
	}
	return out
}

// Metric sort keys
const (
	SortByVolume24h = "volume24h"
	SortByLiquidity = "liquidity"
	SortByTxns24h   = "txns24h"
)

// SortMetrics orders a copy of metrics descending by the given key. Unknown
// keys keep the upstream order.
func SortMetrics(metrics []model.TokenMetrics, by string) []model.TokenMetrics {
	out := append([]model.TokenMetrics(nil), metrics...)

	var less func(i, j int) bool
	switch by {
	case SortByVolume24h:
		less = func(i, j int) bool {
			return normalize.ParseMagnitude(out[i].Volume.H24) > normalize.ParseMagnitude(out[j].Volume.H24)
		}
	case SortByLiquidity:
		less = func(i, j int) bool {
			return normalize.ParseMagnitude(out[i].Liquidity) > normalize.ParseMagnitude(out[j].Liquidity)
		}
	case SortByTxns24h:
		less = func(i, j int) bool { return out[i].Txns.H24 > out[j].Txns.H24 }
	default:
		return out
	}
	sort.SliceStable(out, less)
	return out
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
