// Package validation provides filtering and consistency checks for airdrop records.
package validation

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/defi-airdrop-feed/internal/model"
)

var (
	// ErrInvalidRecord marks a record that violates a structural invariant
	ErrInvalidRecord = errors.New("invalid record")

	// ErrEmptyResult marks a result set with no records
	ErrEmptyResult = errors.New("empty result set")
)

// ValidationOptions holds configuration for record validation
type ValidationOptions struct {
	// RequireTimestamp rejects records without a parseable LastUpdated
	RequireTimestamp bool

	// MaxNameLength rejects names longer than this many bytes (0 disables)
	MaxNameLength int
}

// DefaultValidationOptions returns the options used by FilterInvalid and CheckRecords
func DefaultValidationOptions() ValidationOptions {
	return ValidationOptions{
		RequireTimestamp: false,
		MaxNameLength:    0,
	}
}

// FilterInvalid removes records that fail basic validation criteria.
func FilterInvalid(records []model.Record) []model.Record {
	return FilterInvalidWithOptions(records, DefaultValidationOptions())
}

// FilterInvalidWithOptions removes records with custom validation options.
func FilterInvalidWithOptions(records []model.Record, opts ValidationOptions) []model.Record {
	valid := make([]model.Record, 0, len(records))
	for _, r := range records {
		if err := validateRecord(r, opts); err != nil {
			logrus.WithFields(logrus.Fields{
				"name":   r.Name,
				"status": r.Status,
				"reason": err.Error(),
			}).Debug("Filtered invalid record")
			continue
		}
		valid = append(valid, r)
	}
	return valid
}

// CheckRecords verifies a final result set: it must be non-empty and every
// record must carry a name, a status and an RFC 3339 LastUpdated stamp.
func CheckRecords(records []model.Record) error {
	if len(records) == 0 {
		return ErrEmptyResult
	}

	opts := DefaultValidationOptions()
	opts.RequireTimestamp = true
	for i, r := range records {
		if err := validateRecord(r, opts); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}

func validateRecord(r model.Record, opts ValidationOptions) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if opts.MaxNameLength > 0 && len(r.Name) > opts.MaxNameLength {
		return fmt.Errorf("%w: name longer than %d bytes", ErrInvalidRecord, opts.MaxNameLength)
	}
	if opts.RequireTimestamp {
		if r.LastUpdated == "" {
			return fmt.Errorf("%w: %q has no lastUpdated", ErrInvalidRecord, r.Name)
		}
		if _, err := time.Parse(time.RFC3339, r.LastUpdated); err != nil {
			return fmt.Errorf("%w: %q has malformed lastUpdated %q", ErrInvalidRecord, r.Name, r.LastUpdated)
		}
	}
	return nil
}
