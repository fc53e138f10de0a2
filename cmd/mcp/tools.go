package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/defi-airdrop-feed/internal/fetch"
	"github.com/yourorg/defi-airdrop-feed/internal/model"
	"github.com/yourorg/defi-airdrop-feed/internal/query"
)

// Tool names
const (
	ToolGetAirdrops     = "get_airdrops"
	ToolFilterAirdrops  = "filter_airdrops"
	ToolGetBestAirdrops = "get_best_airdrops"
	ToolDebugScraper    = "debug_scraper"
)

const defaultBestLimit = 10

// RecordStore is the cached record set the tools read from
type RecordStore interface {
	Get(ctx context.Context, force bool) ([]model.Record, error)
	PeekLastRefreshTime() (time.Time, bool)
}

// PageDebugger reports the structure of the listing page
type PageDebugger interface {
	Debug(ctx context.Context) (fetch.PageInfo, error)
}

// Tools serves the airdrop tools over a record store
type Tools struct {
	records RecordStore
	listing PageDebugger
}

// NewTools creates the tool handlers. listing may be nil, which makes
// debug_scraper report an error.
func NewTools(records RecordStore, listing PageDebugger) *Tools {
	return &Tools{records: records, listing: listing}
}

// Register adds every tool to s
func (t *Tools) Register(s *server.MCPServer) {
	s.AddTool(mcp.NewTool(ToolGetAirdrops,
		mcp.WithDescription("List every airdrop on the listing page"),
		mcp.WithBoolean("forceRefresh", mcp.Description("Refresh the data, ignoring the cache"), mcp.DefaultBool(false)),
		mcp.WithBoolean("onlyActive", mcp.Description("Return only active airdrops"), mcp.DefaultBool(false)),
		mcp.WithString("chain", mcp.Description("Filter by blockchain")),
	), t.GetAirdrops)

	s.AddTool(mcp.NewTool(ToolFilterAirdrops,
		mcp.WithDescription("Filter airdrops by value, status, chain or search term"),
		mcp.WithNumber("minValue", mcp.Description("Minimum estimated airdrop value")),
		mcp.WithString("status", mcp.Description("Airdrop status (Active, Ended, TBD, ...)")),
		mcp.WithString("chain", mcp.Description("Filter by blockchain")),
		mcp.WithString("searchTerm", mcp.Description("Term to look for in the name or description")),
	), t.FilterAirdrops)

	s.AddTool(mcp.NewTool(ToolGetBestAirdrops,
		mcp.WithDescription("Best active or upcoming airdrops by value or deadline"),
		mcp.WithNumber("limit", mcp.Description("Maximum number of airdrops to return"), mcp.DefaultNumber(defaultBestLimit)),
		mcp.WithString("sortBy",
			mcp.Description("Sort order"),
			mcp.Enum(query.SortByValue, query.SortByDeadline, query.SortByName),
			mcp.DefaultString(query.SortByValue),
		),
	), t.GetBestAirdrops)

	s.AddTool(mcp.NewTool(ToolDebugScraper,
		mcp.WithDescription("Report the listing page structure to check the scraper"),
	), t.DebugScraper)
}

// GetAirdrops returns the cached records, optionally refreshed and filtered
func (t *Tools) GetAirdrops(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	records, err := t.records.Get(ctx, req.GetBool("forceRefresh", false))
	if err != nil {
		return toolError(ToolGetAirdrops, err), nil
	}

	records = query.Filter(records, query.Criteria{
		OnlyActive: req.GetBool("onlyActive", false),
		Chain:      req.GetString("chain", ""),
	})

	var lastUpdate *string
	if at, ok := t.records.PeekLastRefreshTime(); ok {
		s := at.UTC().Format(time.RFC3339)
		lastUpdate = &s
	}

	return jsonResult(map[string]interface{}{
		"total":      len(records),
		"lastUpdate": lastUpdate,
		"airdrops":   records,
	})
}

// FilterAirdrops applies the filter criteria to the cached records
func (t *Tools) FilterAirdrops(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	criteria := query.Criteria{
		MinValue:   req.GetFloat("minValue", 0),
		Status:     req.GetString("status", ""),
		Chain:      req.GetString("chain", ""),
		SearchTerm: req.GetString("searchTerm", ""),
	}

	records, err := t.records.Get(ctx, false)
	if err != nil {
		return toolError(ToolFilterAirdrops, err), nil
	}
	records = query.Filter(records, criteria)

	return jsonResult(map[string]interface{}{
		"total":    len(records),
		"filters":  criteria,
		"airdrops": records,
	})
}

// GetBestAirdrops returns active and TBD records ordered by sortBy
func (t *Tools) GetBestAirdrops(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", defaultBestLimit)
	if limit <= 0 {
		limit = defaultBestLimit
	}
	sortBy := req.GetString("sortBy", query.SortByValue)

	records, err := t.records.Get(ctx, false)
	if err != nil {
		return toolError(ToolGetBestAirdrops, err), nil
	}
	best := query.Limit(query.Sort(query.Filter(records, query.Criteria{OnlyBest: true}), sortBy), limit)

	return jsonResult(map[string]interface{}{
		"total":        len(best),
		"criteria":     map[string]interface{}{"limit": limit, "sortBy": sortBy},
		"bestAirdrops": best,
	})
}

// DebugScraper reports the listing page structure
func (t *Tools) DebugScraper(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.listing == nil {
		return mcp.NewToolResultError("debug unavailable: no listing source configured"), nil
	}

	info, err := t.listing.Debug(ctx)
	if err != nil {
		return toolError(ToolDebugScraper, err), nil
	}

	body, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode debug info: %w", err)
	}
	return mcp.NewToolResultText("Debug Info:\n" + string(body)), nil
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(body)), nil
}

func toolError(tool string, err error) *mcp.CallToolResult {
	logrus.WithError(err).WithField("tool", tool).Warn("Tool call failed")
	return mcp.NewToolResultError("Error: " + err.Error())
}
