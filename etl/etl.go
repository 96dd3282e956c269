// Package etl runs the extract, transform and load stages against a blob store.
package etl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aluiziolira/go-wishlist-tracker/config"
	"github.com/aluiziolira/go-wishlist-tracker/models"
	"github.com/aluiziolira/go-wishlist-tracker/parser"
	"github.com/aluiziolira/go-wishlist-tracker/pipeline"
	"github.com/aluiziolira/go-wishlist-tracker/scraper"
	"github.com/aluiziolira/go-wishlist-tracker/storage"
)

// historicalLayout is appended to the raw file name in historical mode.
const historicalLayout = "2006-01-02_15:04"

// ErrMissingMaster is returned by Transform when no master table exists and bootstrapping is off.
var ErrMissingMaster = errors.New("master table not found")

// Runner executes the stages with one configuration and one store.
type Runner struct {
	cfg    *config.Config
	store  storage.BlobStore
	months parser.MonthTable

	// Transport overrides the HTTP transport of the crawler when set.
	Transport http.RoundTripper
	// Metrics receives the crawler's counters when set.
	Metrics *scraper.Metrics

	now func() time.Time
}

// ExtractResult describes one crawl.
type ExtractResult struct {
	Crawl *models.CrawlResult
	Paths []string
}

// TransformResult describes one derive-and-merge pass.
type TransformResult struct {
	Path       string
	NewRows    int
	MasterRows int
	MergedRows int
	Skipped    map[string]int
}

// LoadResult describes one promotion of the interim table.
type LoadResult struct {
	Path string
	Rows int
}

// RunResult collects the results of all three stages.
type RunResult struct {
	Extract   *ExtractResult
	Transform *TransformResult
	Load      *LoadResult
}

// NewRunner validates cfg and resolves its month table.
func NewRunner(cfg *config.Config, store storage.BlobStore) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	months, err := parser.MonthTableFor(cfg.Locale)
	if err != nil {
		return nil, err
	}
	return &Runner{
		cfg:    cfg,
		store:  store,
		months: months,
		now:    time.Now,
	}, nil
}

// Extract crawls the wishlist and stores the items as a JSON array at the raw path. In
// historical mode a timestamped copy is stored next to it.
func (r *Runner) Extract(ctx context.Context) (*ExtractResult, error) {
	paginator, err := scraper.NewPaginator(r.cfg)
	if err != nil {
		return nil, err
	}
	if r.Transport != nil {
		paginator.WithTransport(r.Transport)
	}
	if r.Metrics != nil {
		paginator.Metrics = r.Metrics
	}

	slog.Info("starting extract", slog.String("start_url", r.cfg.StartURL))
	crawl, err := paginator.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	data, err := pipeline.EncodeRawItems(crawl.Items)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	paths := []string{r.cfg.RawPath}
	if r.cfg.Historical {
		paths = append(paths, HistoricalPath(r.cfg.RawPath, r.now()))
	}
	for _, p := range paths {
		if err := r.store.Put(ctx, data, p); err != nil {
			return nil, fmt.Errorf("extract: store %s: %w", p, err)
		}
	}

	slog.Info("extract finished",
		slog.Int("pages", crawl.PageCount),
		slog.Int("items", len(crawl.Items)),
		slog.Int("skipped", crawl.SkippedCount),
		slog.Any("paths", paths),
	)
	return &ExtractResult{Crawl: crawl, Paths: paths}, nil
}

// Transform derives rows from the raw items, merges them into the master table and stores
// the result at the interim path. The master itself is not modified.
func (r *Runner) Transform(ctx context.Context) (*TransformResult, error) {
	rawData, err := r.store.Get(ctx, r.cfg.RawPath)
	if err != nil {
		return nil, fmt.Errorf("transform: read raw items: %w", err)
	}
	items, err := pipeline.DecodeRawItems(rawData)
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}

	master, err := r.readMaster(ctx)
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}

	transformer := pipeline.NewTransformer(r.months, r.cfg.StrictDates)
	derived, err := transformer.Transform(items)
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}

	merged, err := pipeline.Merge(derived, master)
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}

	out, err := pipeline.EncodeTable(merged, separator(r.cfg.InterimSeparator))
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}
	if err := r.store.Put(ctx, out, r.cfg.InterimPath); err != nil {
		return nil, fmt.Errorf("transform: store %s: %w", r.cfg.InterimPath, err)
	}

	result := &TransformResult{
		Path:       r.cfg.InterimPath,
		NewRows:    derived.Len(),
		MasterRows: master.Len(),
		MergedRows: merged.Len(),
	}
	if skipped, ok := transformer.GetMetrics()["skipped_rows"].(map[string]int); ok {
		result.Skipped = skipped
	}

	slog.Info("transform finished",
		slog.Int("new_rows", result.NewRows),
		slog.Int("master_rows", result.MasterRows),
		slog.Int("merged_rows", result.MergedRows),
	)
	return result, nil
}

// Load re-encodes the interim table with the master separator and stores it as the new master.
func (r *Runner) Load(ctx context.Context) (*LoadResult, error) {
	data, err := r.store.Get(ctx, r.cfg.InterimPath)
	if err != nil {
		return nil, fmt.Errorf("load: read interim table: %w", err)
	}
	table, err := pipeline.DecodeTable(data, separator(r.cfg.InterimSeparator))
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	out, err := pipeline.EncodeTable(table, separator(r.cfg.MasterSeparator))
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	if err := r.store.Put(ctx, out, r.cfg.MasterPath); err != nil {
		return nil, fmt.Errorf("load: store %s: %w", r.cfg.MasterPath, err)
	}

	slog.Info("load finished", slog.String("path", r.cfg.MasterPath), slog.Int("rows", table.Len()))
	return &LoadResult{Path: r.cfg.MasterPath, Rows: table.Len()}, nil
}

// Run executes Extract, Transform and Load in order and stops at the first failure.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{}
	var err error

	if result.Extract, err = r.Extract(ctx); err != nil {
		return result, err
	}
	if result.Transform, err = r.Transform(ctx); err != nil {
		return result, err
	}
	if result.Load, err = r.Load(ctx); err != nil {
		return result, err
	}
	return result, nil
}

func (r *Runner) readMaster(ctx context.Context) (models.Table, error) {
	data, err := r.store.Get(ctx, r.cfg.MasterPath)
	if errors.Is(err, storage.ErrNotFound) {
		if !r.cfg.BootstrapMaster {
			return models.Table{}, fmt.Errorf("%w at %s", ErrMissingMaster, r.cfg.MasterPath)
		}
		slog.Warn("master table not found, starting a new one", slog.String("path", r.cfg.MasterPath))
		return models.NewTable(nil), nil
	}
	if err != nil {
		return models.Table{}, fmt.Errorf("read master table: %w", err)
	}
	return pipeline.DecodeTable(data, separator(r.cfg.MasterSeparator))
}

// HistoricalPath inserts "_YYYY-MM-DD_HH:MM" before the extension of p.
func HistoricalPath(p string, at time.Time) string {
	ext := path.Ext(p)
	return strings.TrimSuffix(p, ext) + "_" + at.Format(historicalLayout) + ext
}

// separator returns the first rune of a validated single-character separator.
func separator(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}
