// Package pipeline turns extracted items into derived rows and merges them into the master table.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aluiziolira/go-wishlist-tracker/models"
	"github.com/aluiziolira/go-wishlist-tracker/parser"
)

// ReferenceDateLayout is how reference dates are written to tables.
const ReferenceDateLayout = "2006-01-02 15:04:05.999999"

// Transformer is the batch stage between the crawl and the merge.
type Transformer struct {
	months      parser.MonthTable
	strictDates bool
	now         func() time.Time

	metrics metrics
}

// NewTransformer builds a transformer resolving month names through months. With strictDates
// an unparseable added date aborts the batch instead of skipping the item.
func NewTransformer(months parser.MonthTable, strictDates bool) *Transformer {
	return &Transformer{
		months:      months,
		strictDates: strictDates,
		now:         time.Now,
		metrics:     newMetrics(),
	}
}

// Transform derives one row per valid item. Every row of the batch shares one reference date.
func (t *Transformer) Transform(items []models.RawItem) (models.Table, error) {
	// microsecond precision survives the table round trip
	reference := t.now().Truncate(time.Microsecond)

	rows := make([]models.DerivedRow, 0, len(items))
	for i := range items {
		item := &items[i]
		if err := item.Validate(); err != nil {
			t.metrics.addSkipped("invalid_record")
			slog.Warn("skipping invalid item", slog.Int("index", i), slog.Any("error", err))
			continue
		}

		row, err := Derive(item, reference, t.months)
		if err != nil {
			var dateErr *parser.DateParseError
			if errors.As(err, &dateErr) && !t.strictDates {
				t.metrics.addSkipped("date_parse")
				slog.Warn("skipping item with unparseable added date",
					slog.String("name", item.Name),
					slog.Any("error", err),
				)
				continue
			}
			return models.Table{}, fmt.Errorf("derive %s: %w", item.Name, err)
		}

		t.metrics.incrementProcessed()
		rows = append(rows, row)
	}

	slog.Info("transform finished",
		slog.Int("items", len(items)),
		slog.Int("rows", len(rows)),
		slog.Time("reference_date", reference),
	)
	return models.NewTable(rows), nil
}

// GetMetrics returns a snapshot of the internal counters.
func (t *Transformer) GetMetrics() map[string]interface{} {
	return t.metrics.snapshot()
}

// Derive normalises one item into a row stamped with reference.
func Derive(item *models.RawItem, reference time.Time, months parser.MonthTable) (models.DerivedRow, error) {
	added, err := parser.NormalizeDate(item.AddedDate, months)
	if err != nil {
		return models.DerivedRow{}, err
	}
	total, availability := Resolve(item.Price, item.DeliveryPrice, item.SellersPrice)

	return models.DerivedRow{
		Name:          item.Name,
		URL:           item.URL,
		ReviewCount:   item.ReviewCount,
		ReviewStars:   item.ReviewStars,
		AddedDate:     added,
		TotalPrice:    total,
		Availability:  availability,
		ReferenceDate: reference,
	}, nil
}

type metrics struct {
	mu        sync.Mutex
	processed int64
	skipped   map[string]int
}

func newMetrics() metrics {
	return metrics{
		skipped: make(map[string]int),
	}
}

func (m *metrics) incrementProcessed() {
	m.mu.Lock()
	m.processed++
	m.mu.Unlock()
}

func (m *metrics) addSkipped(kind string) {
	m.mu.Lock()
	m.skipped[kind]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	copySkipped := make(map[string]int, len(m.skipped))
	for k, v := range m.skipped {
		copySkipped[k] = v
	}

	return map[string]interface{}{
		"processed_rows": m.processed,
		"skipped_rows":   copySkipped,
	}
}
