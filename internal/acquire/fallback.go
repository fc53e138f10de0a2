package acquire

import (
	"time"

	"github.com/yourorg/defi-airdrop-feed/internal/model"
)

var staticRecords = []model.Record{
	{Name: "LayerZero", Value: "$1000-5000", Status: model.StatusActive, Chain: "ETH", Deadline: "2024-12-31"},
	{Name: "zkSync Era", Value: "$500-2000", Status: model.StatusTBD, Chain: "ETH"},
	{Name: "Arbitrum Odyssey", Value: "$300-1500", Status: model.StatusActive, Chain: "ARBITRUM"},
}

func stamped(records []model.Record, now time.Time) []model.Record {
	out := make([]model.Record, len(records))
	for i, r := range records {
		out[i] = r.Stamp(now)
	}
	return out
}
