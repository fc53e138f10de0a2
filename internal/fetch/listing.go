package fetch

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/defi-airdrop-feed/internal/model"
	"github.com/yourorg/defi-airdrop-feed/internal/normalize"
	"github.com/yourorg/defi-airdrop-feed/internal/types"
)

// Selectors used to pull fields out of a matched element
const (
	cellSelector   = `td, div[class*="cell"], span[class*="cell"]`
	nameSelector   = `[class*="name"], [class*="title"], h1, h2, h3, h4, strong, b`
	valueSelector  = `[class*="value"], [class*="amount"], [class*="price"], [class*="reward"]`
	statusSelector = `[class*="status"], [class*="badge"], [class*="tag"], [class*="label"]`
)

const (
	minElementText = 5
	minNameLength  = 3
	maxAnchorText  = 50
	anchorCap      = 20
)

var (
	deadlinePattern = regexp.MustCompile(`(?i)(\d{1,2}[-/]\d{1,2}[-/]\d{2,4}|\d{4}[-/]\d{1,2}[-/]\d{1,2}|Q\d\s\d{4})`)
	titleCaseWord   = regexp.MustCompile(`[A-Z][a-z]+(?:\s[A-Z][a-z]+)*`)
)

// StrategyResult is what one selector strategy produced for a document.
type StrategyResult struct {
	// Matched counts elements the selector hit, usable or not
	Matched int
	Records []model.Record
}

// Strategy is one structural heuristic for locating listing entries.
type Strategy struct {
	Name     string
	Selector string
}

// DefaultStrategies returns the selector heuristics in evaluation order:
// table rows first, then attribute patterns, then generic containers.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "table-body-rows", Selector: `table tbody tr`},
		{Name: "testid-airdrop", Selector: `[data-testid*="airdrop"]`},
		{Name: "airdrop-item", Selector: `.airdrop-item`},
		{Name: "class-airdrop", Selector: `[class*="airdrop"]`},
		{Name: "linked-row", Selector: `[class*="row"]:has(a)`},
		{Name: "rows-with-cells", Selector: `tr:has(td)`},
		{Name: "linked-item", Selector: `div[class*="item"]:has(a)`},
	}
}

// Extract applies the strategy to doc. It never mutates doc.
func (s Strategy) Extract(doc *goquery.Document, now time.Time) StrategyResult {
	elements := doc.Find(s.Selector)
	result := StrategyResult{Matched: elements.Length()}

	stamp := now.UTC().Format(time.RFC3339)
	elements.Each(func(_ int, el *goquery.Selection) {
		if rec, ok := extractElement(el); ok {
			rec.LastUpdated = stamp
			result.Records = append(result.Records, rec)
		}
	})
	return result
}

// extractElement pulls one candidate out of a matched element
func extractElement(el *goquery.Selection) (model.Record, bool) {
	text := strings.TrimSpace(el.Text())
	if len(text) < minElementText {
		return model.Record{}, false
	}

	cells := el.Find(cellSelector)
	links := el.Find("a")

	var name, value, status, deadline, chain string
	if cells.Length() >= 2 {
		name = cellText(cells, 0)
		value = cellText(cells, 1)
		status = model.StatusActive
		if cells.Length() > 2 {
			status = cellText(cells, 2)
		}
		deadline = cellText(cells, 3)
		chain = cellText(cells, 4)
	} else {
		name = firstText(el.Find(nameSelector))
		if name == "" {
			name = strings.TrimSpace(links.First().Text())
		}
		if name == "" {
			name = cellText(cells, 0)
		}
		value = strings.TrimSpace(el.Find(valueSelector).Text())

		statusEl := el.Find(statusSelector)
		if statusEl.Length() > 0 {
			status = strings.TrimSpace(statusEl.Text())
		} else {
			status = model.StatusActive
		}
	}

	name = normalize.CollapseSpace(name)
	if !isProjectName(name) {
		return model.Record{}, false
	}

	if deadline == "" {
		deadline = deadlinePattern.FindString(text)
	}
	if chain == "" {
		if ticker, ok := types.DetectChain(text); ok {
			chain = string(ticker)
		}
	}

	url, _ := links.First().Attr("href")

	return model.Record{
		Name:     name,
		Value:    normalize.OrDefault(normalize.CollapseSpace(value), normalize.TBD),
		Status:   normalize.OrDefault(normalize.CollapseSpace(status), model.StatusUnknown),
		Deadline: normalize.CollapseSpace(deadline),
		Chain:    normalize.CollapseSpace(chain),
		URL:      strings.TrimSpace(url),
	}, true
}

// isProjectName guards against empty names and captured table headers
func isProjectName(name string) bool {
	if len([]rune(name)) < minNameLength {
		return false
	}
	return !strings.Contains(strings.ToLower(name), "header")
}

func cellText(cells *goquery.Selection, i int) string {
	if i >= cells.Length() {
		return ""
	}
	return strings.TrimSpace(cells.Eq(i).Text())
}

func firstText(sel *goquery.Selection) string {
	var out string
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		out = strings.TrimSpace(s.Text())
		return out == ""
	})
	return out
}

// anchorNames is the last-resort pass over every link on the page
func anchorNames(doc *goquery.Document, now time.Time) []model.Record {
	seen := make(map[string]bool)
	var names []string

	doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		text := strings.TrimSpace(a.Text())
		href, _ := a.Attr("href")

		n := len([]rune(text))
		if n < minNameLength || n >= maxAnchorText {
			return true
		}
		if !strings.Contains(href, "airdrop") && !titleCaseWord.MatchString(text) {
			return true
		}
		if !seen[text] {
			seen[text] = true
			names = append(names, text)
		}
		return len(names) < anchorCap
	})

	stamp := now.UTC().Format(time.RFC3339)
	records := make([]model.Record, 0, len(names))
	for _, name := range names {
		records = append(records, model.Record{
			Name:        name,
			Value:       normalize.TBD,
			Status:      model.StatusUnknown,
			LastUpdated: stamp,
		})
	}
	return records
}

// ListingAdapter scrapes the HTML airdrop listing page.
type ListingAdapter struct {
	fetcher    Fetcher
	url        string
	strategies []Strategy
	now        func() time.Time
}

// NewListingAdapter creates a listing adapter using the default strategies.
func NewListingAdapter(fetcher Fetcher, url string) *ListingAdapter {
	return &ListingAdapter{
		fetcher:    fetcher,
		url:        url,
		strategies: DefaultStrategies(),
		now:        time.Now,
	}
}

// Name identifies the adapter in logs and metrics.
func (a *ListingAdapter) Name() string { return "listing" }

// Fetch downloads the listing page and extracts records from it.
func (a *ListingAdapter) Fetch(ctx context.Context) ([]model.Record, error) {
	doc, _, err := a.load(ctx)
	if err != nil {
		return nil, err
	}

	records := a.Extract(doc)
	if len(records) == 0 {
		return nil, fmt.Errorf("listing page %s: %w", a.url, ErrNoRecords)
	}
	return records, nil
}

// Extract runs the strategies against doc and commits to the first one that
// yields a record. The anchor pass runs only when no strategy matched any
// element at all.
func (a *ListingAdapter) Extract(doc *goquery.Document) []model.Record {
	now := a.now()
	anyMatched := false

	for _, s := range a.strategies {
		res := s.Extract(doc, now)
		logrus.WithFields(logrus.Fields{
			"strategy": s.Name,
			"matched":  res.Matched,
			"records":  len(res.Records),
		}).Debug("Listing strategy evaluated")

		if res.Matched > 0 {
			anyMatched = true
		}
		if len(res.Records) > 0 {
			logrus.Infof("Listing strategy %s produced %d records", s.Name, len(res.Records))
			return res.Records
		}
	}

	if anyMatched {
		return nil
	}

	logrus.Info("No listing strategy matched, falling back to anchor texts")
	return anchorNames(doc, now)
}

func (a *ListingAdapter) load(ctx context.Context) (*goquery.Document, *Response, error) {
	resp, err := a.fetcher.Fetch(ctx, a.url, htmlHeaders)
	if err != nil {
		return nil, nil, fmt.Errorf("error fetching listing page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, nil, fmt.Errorf("error parsing listing page: %w", err)
	}
	return doc, resp, nil
}

// PageInfo describes the listing page as currently served, for debugging
// selector drift.
type PageInfo struct {
	Title         string         `json:"title"`
	URL           string         `json:"url"`
	Status        int            `json:"status"`
	ContentType   string         `json:"contentType"`
	BodyLength    int            `json:"bodyLength"`
	ElementCounts map[string]int `json:"elementCounts"`
	Strategies    map[string]int `json:"strategies"`
	SampleText    string         `json:"sampleText"`
}

const sampleTextLength = 500

// Debug fetches the page and reports its structure.
func (a *ListingAdapter) Debug(ctx context.Context) (PageInfo, error) {
	doc, resp, err := a.load(ctx)
	if err != nil {
		return PageInfo{}, err
	}

	sample := []rune(normalize.CollapseSpace(doc.Find("body").Text()))
	if len(sample) > sampleTextLength {
		sample = sample[:sampleTextLength]
	}

	info := PageInfo{
		Title:       strings.TrimSpace(doc.Find("title").Text()),
		URL:         a.url,
		Status:      resp.Status,
		ContentType: resp.Header.Get("Content-Type"),
		BodyLength:  len(resp.Body),
		ElementCounts: map[string]int{
			"total":  doc.Find("*").Length(),
			"tables": doc.Find("table").Length(),
			"divs":   doc.Find("div").Length(),
			"links":  doc.Find("a").Length(),
			"rows":   doc.Find("tr").Length(),
		},
		Strategies: make(map[string]int, len(a.strategies)),
		SampleText: string(sample),
	}
	for _, s := range a.strategies {
		info.Strategies[s.Name] = doc.Find(s.Selector).Length()
	}
	return info, nil
}
