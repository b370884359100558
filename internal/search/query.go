package search

import (
	"fmt"
	"strings"
	"time"

	"github.com/alex-user-go/hotelsearch/internal/search/types"
)

const dateLayout = "2006-01-02"

// ValidationError reports a query that cannot be searched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// PageConfig bounds the page size.
type PageConfig struct {
	DefaultSize int
	MaxSize     int
}

// DefaultPageConfig returns the page sizes used when none are configured.
func DefaultPageConfig() PageConfig {
	return PageConfig{DefaultSize: 20, MaxSize: 100}
}

func (c PageConfig) withDefaults() PageConfig {
	def := DefaultPageConfig()
	if c.MaxSize <= 0 {
		c.MaxSize = def.MaxSize
	}
	if c.DefaultSize <= 0 {
		c.DefaultSize = min(def.DefaultSize, c.MaxSize)
	}
	if c.DefaultSize > c.MaxSize {
		c.DefaultSize = c.MaxSize
	}
	return c
}

// PrepareQuery validates q and returns it with cursor and limit defaulted and clamped.
func PrepareQuery(q types.SearchQuery, pages PageConfig) (types.SearchQuery, error) {
	pages = pages.withDefaults()

	q.Location = strings.TrimSpace(q.Location)
	if q.Location == "" {
		return q, &ValidationError{Field: "location", Reason: "is required"}
	}

	q.CheckIn = strings.TrimSpace(q.CheckIn)
	q.CheckOut = strings.TrimSpace(q.CheckOut)
	var checkIn, checkOut time.Time
	if q.CheckIn != "" {
		t, err := time.Parse(dateLayout, q.CheckIn)
		if err != nil {
			return q, &ValidationError{Field: "checkIn", Reason: "must be in YYYY-MM-DD format"}
		}
		checkIn = t
	}
	if q.CheckOut != "" {
		t, err := time.Parse(dateLayout, q.CheckOut)
		if err != nil {
			return q, &ValidationError{Field: "checkOut", Reason: "must be in YYYY-MM-DD format"}
		}
		checkOut = t
	}
	if !checkIn.IsZero() && !checkOut.IsZero() && !checkOut.After(checkIn) {
		return q, &ValidationError{Field: "checkOut", Reason: "must be after checkIn"}
	}

	if q.Guests < 0 {
		return q, &ValidationError{Field: "guests", Reason: "must be a positive integer"}
	}
	if q.Guests == 0 {
		q.Guests = 1
	}

	if q.Cursor < 0 {
		return q, &ValidationError{Field: "cursor", Reason: "must be a non-negative integer"}
	}

	if q.Limit < 0 {
		return q, &ValidationError{Field: "limit", Reason: "must be a non-negative integer"}
	}
	if q.Limit == 0 {
		q.Limit = pages.DefaultSize
	}
	q.Limit = min(q.Limit, pages.MaxSize)

	return q, nil
}
