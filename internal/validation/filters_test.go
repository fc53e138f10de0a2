package validation

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/defi-airdrop-feed/internal/model"
)

func TestFilterInvalid_BasicCriteria(t *testing.T) {
	now := time.Now().UTC().Format(time.RFC3339)

	tests := []struct {
		name    string
		records []model.Record
		want    int
	}{
		{
			name: "all valid records",
			records: []model.Record{
				{Name: "LayerZero", Status: "Active", LastUpdated: now},
				{Name: "zkSync Era", Status: "TBD"},
			},
			want: 2,
		},
		{
			name: "some invalid records",
			records: []model.Record{
				{Name: "LayerZero", Status: "Active"},
				{Name: "", Status: "Active"},                            // empty name
				{Name: "Scroll", Status: ""},                            // empty status
				{Name: strings.Repeat("x", 240), Status: "Active"},      // long names pass by default
				{Name: "Linea", Status: "Unknown", LastUpdated: "soon"}, // timestamp not required here
			},
			want: 3,
		},
		{
			name:    "empty input",
			records: []model.Record{},
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, FilterInvalid(tt.records), tt.want)
		})
	}
}

func TestFilterInvalidWithOptions_CustomSettings(t *testing.T) {
	records := []model.Record{
		{Name: "Stamped", Status: "Active", LastUpdated: time.Now().UTC().Format(time.RFC3339)},
		{Name: "Unstamped", Status: "Active"},
	}

	filtered := FilterInvalidWithOptions(records, ValidationOptions{RequireTimestamp: true})
	require.Len(t, filtered, 1)
	assert.Equal(t, "Stamped", filtered[0].Name)

	long := []model.Record{{Name: strings.Repeat("x", 201), Status: "Active"}, {Name: "Scroll", Status: "TBD"}}
	filtered = FilterInvalidWithOptions(long, ValidationOptions{MaxNameLength: 200})
	require.Len(t, filtered, 1)
	assert.Equal(t, "Scroll", filtered[0].Name)
}

func TestCheckRecords(t *testing.T) {
	stamp := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC).Format(time.RFC3339)

	assert.NoError(t, CheckRecords([]model.Record{{Name: "LayerZero", Status: "Active", LastUpdated: stamp}}))

	err := CheckRecords(nil)
	assert.ErrorIs(t, err, ErrEmptyResult)

	err = CheckRecords([]model.Record{
		{Name: "LayerZero", Status: "Active", LastUpdated: stamp},
		{Name: "Missing Stamp", Status: "Active"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRecord))
	assert.Contains(t, err.Error(), "record 1")

	err = CheckRecords([]model.Record{{Name: "Bad Stamp", Status: "Active", LastUpdated: "yesterday"}})
	assert.ErrorIs(t, err, ErrInvalidRecord)
}
