// Package query turns filter dimensions into single-round-trip paginated
// statements with exact totals against the persistence store.
package query

import (
	"strconv"
	"time"
)

// Filter is one validated filter dimension. The builder matches variants
// exhaustively; an unknown variant is a programming error, not bad input
// (malformed values are rejected at the HTTP boundary before reaching here).
type Filter interface {
	isFilter()
}

// Text requests relevance-scored full-text matching, never client-side
// substring filtering.
type Text struct {
	Query string
}

type Category struct {
	Value string
}

// DateRange bounds a collection's date column; a zero time leaves that end
// open.
type DateRange struct {
	From time.Time
	To   time.Time
}

// GeoRadius keeps rows within RadiusKm of a point.
type GeoRadius struct {
	Lat      float64
	Lng      float64
	RadiusKm float64
}

func (Text) isFilter()      {}
func (Category) isFilter()  {}
func (DateRange) isFilter() {}
func (GeoRadius) isFilter() {}

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Page is a clamped pagination request: page >= 1, 1 <= limit <= 100.
type Page struct {
	Number int
	Limit  int
}

func NewPage(number, limit int) Page {
	if number < 1 {
		number = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Page{Number: number, Limit: limit}
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}

// ParsePage builds a clamped Page from raw query strings. Non-numeric
// values fall back to defaults; range checks happen in NewPage.
func ParsePage(pageStr, limitStr string) Page {
	page, err := strconv.Atoi(pageStr)
	if err != nil {
		page = 1
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		limit = DefaultLimit
	}
	return NewPage(page, limit)
}
