// Package normalize turns raw upstream values into canonical display strings
// and parses display strings back into magnitudes for sorting and filtering.
//
// Every default-substitution rule lives here so that "absent" has a single
// representation across the service: a nil pointer on input, and one of the
// constants below on output.
package normalize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Placeholders for absent values
const (
	NotAvailable = "N/A"
	Unknown      = "Unknown"
	TBD          = "TBD"
)

const currency = "$"

var (
	leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
	stripChars    = strings.NewReplacer("$", "", ",", "")
	grouped       = message.NewPrinter(language.English)
)

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// FormatMagnitude renders n as a currency amount scaled to B, M or K with one
// decimal, or as a plain integer below one thousand.
func FormatMagnitude(n *float64) string {
	if n == nil || math.IsNaN(*n) || math.IsInf(*n, 0) {
		return NotAvailable
	}

	v := *n
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}

	switch {
	case v >= 1e9:
		return fmt.Sprintf("%s%s%.1fB", sign, currency, v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%s%s%.1fM", sign, currency, v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%s%s%.1fK", sign, currency, v/1e3)
	default:
		return fmt.Sprintf("%s%s%.0f", sign, currency, v)
	}
}

// FormatSignedPercentage renders n with one decimal and an explicit "+" for
// non-negative values.
func FormatSignedPercentage(n *float64) string {
	if n == nil || math.IsNaN(*n) || math.IsInf(*n, 0) {
		return NotAvailable
	}
	if *n >= 0 {
		return fmt.Sprintf("+%.1f%%", *n)
	}
	return fmt.Sprintf("%.1f%%", *n)
}

// FormatAge renders the time elapsed since unix (seconds) using the two
// coarsest units.
func FormatAge(unix *int64) string {
	return FormatAgeAt(unix, time.Now())
}

// FormatAgeAt is FormatAge relative to now.
func FormatAgeAt(unix *int64, now time.Time) string {
	if unix == nil {
		return Unknown
	}

	elapsed := now.Sub(time.Unix(*unix, 0))
	if elapsed < 0 {
		elapsed = 0
	}

	totalMinutes := int64(elapsed / time.Minute)
	days := totalMinutes / (24 * 60)
	hours := (totalMinutes / 60) % 24
	minutes := totalMinutes % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

// ParseMagnitude is the inverse of FormatMagnitude. It strips currency
// symbols, commas and whitespace, reads the leading number and applies a
// K/M/B multiplier. Unparsable input yields 0.
func ParseMagnitude(s string) float64 {
	if s == "" {
		return 0
	}

	cleaned := strings.Join(strings.Fields(stripChars.Replace(s)), "")
	match := leadingNumber.FindString(cleaned)
	if match == "" {
		return 0
	}
	num, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}

	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "k"):
		return num * 1e3
	case strings.Contains(lower, "m"):
		return num * 1e6
	case strings.Contains(lower, "b"):
		return num * 1e9
	}
	return num
}

// CompareMagnitude orders two display strings by their parsed magnitude.
func CompareMagnitude(a, b string) int {
	x, y := ParseMagnitude(a), ParseMagnitude(b)
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

// FormatPrice renders a token price with precision tiers: scientific
// notation below 0.001, six decimals below 1, four below 100 and grouped
// two-decimal figures otherwise.
func FormatPrice(p *float64) string {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return NotAvailable
	}

	v := *p
	switch {
	case v < 0.001:
		return fmt.Sprintf("%s%.2e", currency, v)
	case v < 1:
		return fmt.Sprintf("%s%.6f", currency, v)
	case v < 100:
		return fmt.Sprintf("%s%.4f", currency, v)
	default:
		return currency + grouped.Sprintf("%.2f", v)
	}
}

// FormatDate renders a unix timestamp (seconds) as YYYY-MM-DD in UTC.
func FormatDate(unix *int64) string {
	if unix == nil || *unix <= 0 {
		return ""
	}
	return time.Unix(*unix, 0).UTC().Format("2006-01-02")
}

// OrDefault substitutes def for an absent display value.
func OrDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// CollapseSpace trims s and folds internal whitespace runs to one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
