// Package query filters, orders and projects cached records for the HTTP
// views. Every function returns a new slice; inputs are shared with the
// cache and are never modified.
package query

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yourorg/defi-airdrop-feed/internal/model"
	"github.com/yourorg/defi-airdrop-feed/internal/normalize"
)

// Sort keys
const (
	SortByValue    = "value"
	SortByTVL      = "tvl"
	SortByDeadline = "deadline"
	SortByName     = "name"
)

// Criteria selects records. Zero values disable a criterion.
type Criteria struct {
	// OnlyActive keeps records whose status mentions active
	OnlyActive bool `json:"onlyActive,omitempty"`
	// OnlyBest keeps active records and those with status TBD
	OnlyBest   bool    `json:"onlyBest,omitempty"`
	Chain      string  `json:"chain,omitempty"`
	Status     string  `json:"status,omitempty"`
	Category   string  `json:"category,omitempty"`
	SearchTerm string  `json:"searchTerm,omitempty"`
	MinValue   float64 `json:"minValue,omitempty"`
	MinTVL     float64 `json:"minTvl,omitempty"`
}

// IsActive reports whether a status reads as active (English or Portuguese).
func IsActive(status string) bool {
	s := strings.ToLower(status)
	return strings.Contains(s, "active") || strings.Contains(s, "ativo")
}

// IsBest reports whether a record qualifies for the best-of views.
func IsBest(status string) bool {
	return IsActive(status) || strings.EqualFold(status, model.StatusTBD)
}

// Filter returns the records matching every set criterion.
func Filter(records []model.Record, c Criteria) []model.Record {
	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		if c.matches(r) {
			out = append(out, r)
		}
	}
	return out
}

func (c Criteria) matches(r model.Record) bool {
	if c.OnlyActive && !IsActive(r.Status) {
		return false
	}
	if c.OnlyBest && !IsBest(r.Status) {
		return false
	}
	if !containsFold(r.Chain, c.Chain) || !containsFold(r.Status, c.Status) || !containsFold(r.Category, c.Category) {
		return false
	}
	if !containsFold(r.Name, c.SearchTerm) && !containsFold(r.Description, c.SearchTerm) {
		return false
	}
	if c.MinValue > 0 && normalize.ParseMagnitude(r.Value) < c.MinValue {
		return false
	}
	if c.MinTVL > 0 && normalize.ParseMagnitude(r.TVL) < c.MinTVL {
		return false
	}
	return true
}

// containsFold is a case-insensitive substring match; an empty needle matches.
func containsFold(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// Sort orders a copy of records: value and tvl descending by parsed
// magnitude, deadline ascending with missing dates last, anything else by name.
func Sort(records []model.Record, by string) []model.Record {
	out := append([]model.Record(nil), records...)

	switch strings.ToLower(by) {
	case SortByValue:
		sort.SliceStable(out, func(i, j int) bool {
			return normalize.ParseMagnitude(out[i].Value) > normalize.ParseMagnitude(out[j].Value)
		})
	case SortByTVL:
		sort.SliceStable(out, func(i, j int) bool {
			return normalize.ParseMagnitude(out[i].TVL) > normalize.ParseMagnitude(out[j].TVL)
		})
	case SortByDeadline:
		sort.SliceStable(out, func(i, j int) bool {
			return ParseDeadline(out[i].Deadline).Before(ParseDeadline(out[j].Deadline))
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
		})
	}
	return out
}

var (
	farFuture      = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	quarterPattern = regexp.MustCompile(`^Q([1-4])\s+(\d{4})$`)
	deadlineLayout = []string{"2006-01-02", "2006/01/02", "2006-1-2", "02/01/2006", "2/1/2006", "02-01-2006", "02/01/06"}
)

// ParseDeadline reads the deadline formats the listing page uses. A quarter
// ("Q3 2025") maps to its last day; missing or unreadable input sorts last.
func ParseDeadline(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return farFuture
	}
	if m := quarterPattern.FindStringSubmatch(strings.ToUpper(s)); m != nil {
		q, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[2])
		return time.Date(year, time.Month(q*3)+1, 0, 0, 0, 0, 0, time.UTC)
	}
	for _, layout := range deadlineLayout {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return farFuture
}

// Limit returns the first n items, or all of them when n <= 0.
func Limit[T any](items []T, n int) []T {
	if n <= 0 || n >= len(items) {
		return items
	}
	return items[:n]
}

// Names projects record names.
func Names(records []model.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Name)
	}
	return out
}
