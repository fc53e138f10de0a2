package query

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/defi-airdrop-feed/internal/model"
)

func sample() []model.Record {
	return []model.Record{
		{Name: "zkSync Era", Value: "$500-2000", Status: "TBD", Chain: "ETH", TVL: "$800.0M", Category: "Rollup"},
		{Name: "LayerZero", Value: "$1000-5000", Status: "Active", Chain: "ETH", Deadline: "2024-12-31", TVL: "$1.2B"},
		{Name: "Arbitrum Odyssey", Value: "$300-1500", Status: "Active", Chain: "ARBITRUM", Deadline: "Q3 2024"},
		{Name: "Jupiter", Value: "TBD", Status: "Potential", Chain: "SOLANA", Description: "Solana swap aggregator", TVL: "$2.5B", Category: "Dexs"},
		{Name: "kamino", Value: "$50-500", Status: "Ativo", Chain: "SOL", Deadline: "15/01/2024", TVL: "$950.0K"},
	}
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name string
		c    Criteria
		want []string
	}{
		{"no criteria", Criteria{}, []string{"zkSync Era", "LayerZero", "Arbitrum Odyssey", "Jupiter", "kamino"}},
		{"only active", Criteria{OnlyActive: true}, []string{"LayerZero", "Arbitrum Odyssey", "kamino"}},
		{"best includes tbd", Criteria{OnlyBest: true}, []string{"zkSync Era", "LayerZero", "Arbitrum Odyssey", "kamino"}},
		{"chain substring", Criteria{Chain: "sol"}, []string{"Jupiter", "kamino"}},
		{"status", Criteria{Status: "potent"}, []string{"Jupiter"}},
		{"category", Criteria{Category: "roll"}, []string{"zkSync Era"}},
		{"search name", Criteria{SearchTerm: "LAYER"}, []string{"LayerZero"}},
		{"search description", Criteria{SearchTerm: "swap"}, []string{"Jupiter"}},
		{"min value", Criteria{MinValue: 500}, []string{"zkSync Era", "LayerZero"}},
		{"min tvl", Criteria{MinTVL: 1e9}, []string{"LayerZero", "Jupiter"}},
		{"combined", Criteria{Chain: "eth", OnlyActive: true}, []string{"LayerZero"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Names(Filter(sample(), tt.c)))
		})
	}
}

func TestSort(t *testing.T) {
	records := sample()
	original := Names(records)

	assert.Equal(t, []string{"LayerZero", "zkSync Era", "Arbitrum Odyssey", "kamino", "Jupiter"}, Names(Sort(records, SortByValue)))
	assert.Equal(t, []string{"Jupiter", "LayerZero", "zkSync Era", "kamino", "Arbitrum Odyssey"}, Names(Sort(records, SortByTVL)))
	assert.Equal(t, []string{"kamino", "Arbitrum Odyssey", "LayerZero", "zkSync Era", "Jupiter"}, Names(Sort(records, SortByDeadline)))
	assert.Equal(t, []string{"Arbitrum Odyssey", "Jupiter", "kamino", "LayerZero", "zkSync Era"}, Names(Sort(records, "")))

	assert.Equal(t, original, Names(records), "input order is untouched")
}

func TestParseDeadline(t *testing.T) {
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), ParseDeadline("2024-12-31"))
	assert.Equal(t, time.Date(2024, 9, 30, 0, 0, 0, 0, time.UTC), ParseDeadline("Q3 2024"))
	assert.Equal(t, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), ParseDeadline("q1 2025"))
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), ParseDeadline("15/01/2024"))
	assert.Equal(t, 9999, ParseDeadline("").Year())
	assert.Equal(t, 9999, ParseDeadline("soon").Year())
}

func TestLimit(t *testing.T) {
	items := []string{"a", "b", "c"}
	assert.Equal(t, []string{"a", "b"}, Limit(items, 2))
	assert.Equal(t, items, Limit(items, 0))
	assert.Equal(t, items, Limit(items, 10))
}

func TestProtocols(t *testing.T) {
	out := Protocols([]model.Record{{Name: "Lido", TVL: "$30.0B", URL: "https://lido.fi"}})
	require.Len(t, out, 1)

	p := out[0]
	assert.Equal(t, "N/A", p.Symbol)
	assert.Equal(t, "DeFi", p.Category)
	assert.Equal(t, "$30.0B", p.TVL)
	assert.Equal(t, "Multi-Chain", p.Chain)
	assert.Nil(t, p.Logo)
	require.NotNil(t, p.URL)

	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"logo":null`)
}

func TestSimplify(t *testing.T) {
	out := Simplify([]model.Record{{Name: "Scroll"}, {Name: "Linea", Value: "$10", Status: "Active", Chain: "ETH", Deadline: "2025-01-01"}})
	require.Len(t, out, 2)

	assert.Equal(t, Simplified{Name: "Scroll", Value: "TBD", Status: "Unknown", Chain: "Multi"}, out[0])
	require.NotNil(t, out[1].Deadline)
	assert.Equal(t, "2025-01-01", *out[1].Deadline)
	assert.Nil(t, out[1].URL)
}

func TestFields(t *testing.T) {
	records := []model.Record{{Name: "Lido", TVL: "$30.0B", Change1d: "+1.2%"}}

	rows := Fields(records, "Name, tvl,1d,listed_at,bogus")
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]string{
		"name":     "Lido",
		"tvl":      "$30.0B",
		"change1d": "+1.2%",
		"listedAt": "N/A",
	}, rows[0])

	all := Fields(records, "")
	assert.Len(t, all[0], 10)
	assert.Equal(t, "DeFi", all[0]["category"])
	assert.Equal(t, "Multi-Chain", all[0]["chain"])
}

func TestSortMetrics(t *testing.T) {
	metrics := []model.TokenMetrics{
		{Symbol: "A", Volume: model.VolumeFigures{H24: "$900.0K"}, Liquidity: "$5.0M", Txns: model.TxnCounts{H24: 10}},
		{Symbol: "B", Volume: model.VolumeFigures{H24: "$1.2M"}, Liquidity: "$800.0K", Txns: model.TxnCounts{H24: 50}},
		{Symbol: "C", Volume: model.VolumeFigures{H24: "N/A"}, Liquidity: "$2.0B", Txns: model.TxnCounts{H24: 30}},
	}
	symbols := func(ms []model.TokenMetrics) []string {
		var out []string
		for _, m := range ms {
			out = append(out, m.Symbol)
		}
		return out
	}

	assert.Equal(t, []string{"B", "A", "C"}, symbols(SortMetrics(metrics, SortByVolume24h)))
	assert.Equal(t, []string{"C", "A", "B"}, symbols(SortMetrics(metrics, SortByLiquidity)))
	assert.Equal(t, []string{"B", "C", "A"}, symbols(SortMetrics(metrics, SortByTxns24h)))
	assert.Equal(t, []string{"A", "B", "C"}, symbols(SortMetrics(metrics, "")))
}
