package normalize

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatMagnitude(t *testing.T) {
	tests := []struct {
		name string
		in   *float64
		want string
	}{
		{"absent", nil, "N/A"},
		{"plain", Float(999), "$999"},
		{"zero", Float(0), "$0"},
		{"kilo", Float(1_500), "$1.5K"},
		{"mega", Float(1_500_000), "$1.5M"},
		{"giga", Float(2_340_000_000), "$2.3B"},
		{"negative", Float(-1_500_000), "-$1.5M"},
		{"nan", Float(math.NaN()), "N/A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatMagnitude(tt.in))
		})
	}
}

func TestParseMagnitude(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"", 0},
		{"garbage", 0},
		{"N/A", 0},
		{"TBD", 0},
		{"$1.5M", 1_500_000},
		{"$1.5K", 1_500},
		{"$2.3B", 2_300_000_000},
		{"$999", 999},
		{"1234", 1234},
		{"$1,234,567", 1_234_567},
		{" $ 12.5 m ", 12_500_000},
		{"$1000-5000", 1000},
		{"-$1.5M", -1_500_000},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.InDelta(t, tt.want, ParseMagnitude(tt.in), 1e-6)
		})
	}
}

func TestParseMagnitude_RoundTrip(t *testing.T) {
	values := []float64{0, 1, 42, 999, 1_000, 12_345, 999_000, 1_000_000, 7_654_321, 1_200_000_000, 98_700_000_000}

	for _, x := range values {
		got := ParseMagnitude(FormatMagnitude(Float(x)))
		// one decimal at the scaled tier, or integer rounding below 1K
		tolerance := math.Max(0.5, x*0.05)
		assert.InDelta(t, x, got, tolerance, "round trip of %v", x)
	}
}

func TestFormatSignedPercentage(t *testing.T) {
	assert.Equal(t, "N/A", FormatSignedPercentage(nil))
	assert.Equal(t, "+1.5%", FormatSignedPercentage(Float(1.5)))
	assert.Equal(t, "+0.0%", FormatSignedPercentage(Float(0)))
	assert.Equal(t, "-3.2%", FormatSignedPercentage(Float(-3.21)))
}

func TestFormatAgeAt(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	ago := func(d time.Duration) *int64 { return Int64(now.Add(-d).Unix()) }

	assert.Equal(t, "Unknown", FormatAgeAt(nil, now))
	assert.Equal(t, "3d 4h", FormatAgeAt(ago(76*time.Hour+20*time.Minute), now))
	assert.Equal(t, "2h 15m", FormatAgeAt(ago(2*time.Hour+15*time.Minute), now))
	assert.Equal(t, "15m", FormatAgeAt(ago(15*time.Minute), now))
	assert.Equal(t, "0m", FormatAgeAt(Int64(now.Add(time.Hour).Unix()), now))
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		name string
		in   *float64
		want string
	}{
		{"absent", nil, "N/A"},
		{"tiny", Float(0.0000123), "$1.23e-05"},
		{"sub dollar", Float(0.123456789), "$0.123457"},
		{"small", Float(12.3456789), "$12.3457"},
		{"grouped", Float(1234.567), "$1,234.57"},
		{"large", Float(3456789.1), "$3,456,789.10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatPrice(tt.in))
		})
	}
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "", FormatDate(nil))
	assert.Equal(t, "2024-01-15", FormatDate(Int64(time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC).Unix())))
}

func TestCompareMagnitude(t *testing.T) {
	assert.Equal(t, 1, CompareMagnitude("$2.0M", "$900K"))
	assert.Equal(t, -1, CompareMagnitude("$50-500", "$1000-5000"))
	assert.Equal(t, 0, CompareMagnitude("N/A", ""))
}

func TestOrDefaultAndCollapse(t *testing.T) {
	assert.Equal(t, "N/A", OrDefault("", NotAvailable))
	assert.Equal(t, "x", OrDefault("x", NotAvailable))
	assert.Equal(t, "Layer Zero", CollapseSpace("  Layer \n\t Zero "))
}
