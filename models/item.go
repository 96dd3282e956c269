// Package models defines data structures shared by the crawler and the transform stage.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Column names of a derived table, in the order they are written.
const (
	ColumnName          = "name"
	ColumnURL           = "url"
	ColumnReviewCount   = "review_count"
	ColumnReviewStars   = "review_stars"
	ColumnAddedDate     = "added_date"
	ColumnTotalPrice    = "total_price"
	ColumnAvailability  = "availability"
	ColumnReferenceDate = "reference_date"
)

// TableColumns is the canonical column set of interim and master tables.
var TableColumns = []string{
	ColumnName,
	ColumnURL,
	ColumnReviewCount,
	ColumnReviewStars,
	ColumnAddedDate,
	ColumnTotalPrice,
	ColumnAvailability,
	ColumnReferenceDate,
}

// RawItem is one listing node as extracted from a wishlist page.
type RawItem struct {
	Name          string   `json:"name"`
	URL           string   `json:"url"`
	ReviewCount   int      `json:"review_count"`
	ReviewStars   string   `json:"review_stars"`
	AddedDate     string   `json:"added_date"`
	Availability  *string  `json:"availability,omitempty"`
	Price         *float64 `json:"price,omitempty"`
	DeliveryPrice *float64 `json:"delivery_price,omitempty"`
	SellersPrice  *float64 `json:"sellers_price,omitempty"`
}

// Validate ensures the item carries the fields every downstream stage keys on.
func (r *RawItem) Validate() error {
	if r == nil {
		return fmt.Errorf("item is nil")
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("item missing name")
	}
	if strings.TrimSpace(r.URL) == "" {
		return fmt.Errorf("item missing url for %s", r.Name)
	}
	return nil
}

// DerivedRow is a RawItem after price and date normalisation.
type DerivedRow struct {
	Name          string    `json:"name"`
	URL           string    `json:"url"`
	ReviewCount   int       `json:"review_count"`
	ReviewStars   string    `json:"review_stars"`
	AddedDate     string    `json:"added_date"`
	TotalPrice    float64   `json:"total_price"`
	Availability  int       `json:"availability"`
	ReferenceDate time.Time `json:"reference_date"`
}

// Table is an ordered set of derived rows together with the columns they were read with.
// The master table is a Table loaded from storage.
type Table struct {
	Columns []string
	Rows    []DerivedRow
}

// NewTable returns a table with the canonical column set.
func NewTable(rows []DerivedRow) Table {
	columns := make([]string, len(TableColumns))
	copy(columns, TableColumns)
	return Table{Columns: columns, Rows: rows}
}

// Len returns the number of rows.
func (t Table) Len() int {
	return len(t.Rows)
}

// CrawlResult holds the overall result of one crawl.
type CrawlResult struct {
	Items        []RawItem
	StartTime    time.Time
	EndTime      time.Time
	PageCount    int
	RequestCount int
	SkippedCount int
	SkipReasons  map[string]int
}
