package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordValidate(t *testing.T) {
	assert.NoError(t, Record{Name: "LayerZero", Status: StatusActive}.Validate())
	assert.Error(t, Record{Status: StatusActive}.Validate())
	assert.Error(t, Record{Name: "LayerZero"}.Validate())
}

func TestRecordStamp(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))

	stamped := Record{Name: "A"}.Stamp(at)
	assert.Equal(t, "2025-06-01T10:00:00Z", stamped.LastUpdated)

	kept := Record{Name: "A", LastUpdated: "2024-01-01T00:00:00Z"}.Stamp(at)
	assert.Equal(t, "2024-01-01T00:00:00Z", kept.LastUpdated)
}
