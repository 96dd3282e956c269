// Package scraper walks a paginated wishlist and yields the items of every page.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/aluiziolira/go-wishlist-tracker/config"
	"github.com/aluiziolira/go-wishlist-tracker/extract"
	"github.com/aluiziolira/go-wishlist-tracker/models"
	"github.com/gocolly/colly/v2"
)

// Page is the outcome of one fetched wishlist page.
type Page struct {
	URL     string
	Number  int
	Items   []models.RawItem
	Skipped []error
	// Next is the absolute URL of the following page, empty on the last one.
	Next string

	status   int
	fetchErr error
}

// Paginator follows continuation markers one page at a time. It is single use.
type Paginator struct {
	cfg       *config.Config
	collector *colly.Collector
	extractor *extract.Extractor
	Metrics   *Metrics

	current      *Page
	consumed     bool
	requestCount int
}

// NewPaginator builds a paginator configured from cfg.
func NewPaginator(cfg *config.Config) (*Paginator, error) {
	start, err := url.Parse(cfg.StartURL)
	if err != nil {
		return nil, fmt.Errorf("parse start url: %w", err)
	}
	domain, err := url.Parse(cfg.DomainPrefix)
	if err != nil {
		return nil, fmt.Errorf("parse domain prefix: %w", err)
	}
	if start.Host == "" || domain.Host == "" {
		return nil, fmt.Errorf("start url and domain prefix must include a host")
	}

	// revisits are tracked by the paginator itself so a looping marker ends the crawl
	collector := colly.NewCollector(
		colly.AllowedDomains(start.Hostname(), domain.Hostname()),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	p := &Paginator{
		cfg:       cfg,
		collector: collector,
		extractor: extract.NewExtractor(cfg.DomainPrefix, extract.WishlistRules()),
		Metrics:   NewMetrics(),
	}
	p.configureHandlers()
	return p, nil
}

// WithTransport replaces the HTTP transport used for page fetches.
func (p *Paginator) WithTransport(transport http.RoundTripper) {
	p.collector.WithTransport(transport)
}

// Pages yields every page reachable from the start URL, in order. The sequence ends after
// the first page without a usable continuation marker. A fetch failure is yielded as an
// error and ends the sequence.
func (p *Paginator) Pages(ctx context.Context) iter.Seq2[*Page, error] {
	return func(yield func(*Page, error) bool) {
		if p.consumed {
			yield(nil, ErrPaginatorConsumed)
			return
		}
		p.consumed = true
		if ctx == nil {
			ctx = context.Background()
		}

		visited := make(map[string]struct{})
		next := p.cfg.StartURL
		for number := 1; next != ""; number++ {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if number > p.cfg.MaxPages {
				slog.Warn("max pages reached, stopping pagination",
					slog.Int("max_pages", p.cfg.MaxPages),
					slog.String("next", next),
				)
				return
			}
			if _, seen := visited[next]; seen {
				slog.Warn("continuation marker points at a visited page", slog.String("url", next))
				return
			}
			visited[next] = struct{}{}

			page, err := p.fetch(next, number)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(page, nil) {
				return
			}
			next = page.Next
		}
	}
}

// Items flattens Pages into the item sequence.
func (p *Paginator) Items(ctx context.Context) iter.Seq2[models.RawItem, error] {
	return func(yield func(models.RawItem, error) bool) {
		for page, err := range p.Pages(ctx) {
			if err != nil {
				yield(models.RawItem{}, err)
				return
			}
			for _, item := range page.Items {
				if !yield(item, nil) {
					return
				}
			}
		}
	}
}

// Collect drains the paginator and materialises every item.
func (p *Paginator) Collect(ctx context.Context) (*models.CrawlResult, error) {
	result := &models.CrawlResult{
		StartTime:   time.Now(),
		SkipReasons: make(map[string]int),
	}

	for page, err := range p.Pages(ctx) {
		if err != nil {
			return nil, err
		}
		result.PageCount++
		result.Items = append(result.Items, page.Items...)
		for _, skipped := range page.Skipped {
			result.SkippedCount++
			result.SkipReasons[ErrorLabel(skipped)]++
		}
	}

	result.RequestCount = p.requestCount
	result.EndTime = time.Now()
	return result, nil
}

func (p *Paginator) fetch(pageURL string, number int) (*Page, error) {
	page := &Page{URL: pageURL, Number: number}
	p.current = page
	defer func() { p.current = nil }()

	err := p.collector.Visit(pageURL)
	if err == nil {
		err = page.fetchErr
	}
	if err != nil {
		return nil, fmt.Errorf("fetch page %d (%s): %w", number, pageURL, classifyError(err, page.status))
	}

	p.Metrics.IncPages()
	slog.Info("page processed",
		slog.Int("page", number),
		slog.Int("items", len(page.Items)),
		slog.Int("skipped", len(page.Skipped)),
		slog.Bool("has_next", page.Next != ""),
	)
	return page, nil
}

func (p *Paginator) configureHandlers() {
	p.collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put("start", time.Now())
		p.requestCount++
		p.Metrics.IncRequest("started")
		slog.Debug("requesting page", slog.String("url", r.URL.String()))
	})

	p.collector.OnResponse(func(r *colly.Response) {
		if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
			p.Metrics.ObserveDuration(time.Since(start))
		}
	})

	p.collector.OnError(func(r *colly.Response, err error) {
		statusCode := 0
		if r != nil {
			statusCode = r.StatusCode
		}
		category := ErrorLabel(classifyError(err, statusCode))
		p.Metrics.IncError(category)

		requestURL := ""
		if r != nil && r.Request != nil && r.Request.URL != nil {
			requestURL = r.Request.URL.String()
		}
		slog.Error("request error",
			slog.String("url", requestURL),
			slog.Int("status", statusCode),
			slog.String("category", category),
			slog.Any("error", err),
		)

		if p.current != nil {
			p.current.status = statusCode
			p.current.fetchErr = err
		}
	})

	p.collector.OnHTML(p.cfg.ListingSelector, func(e *colly.HTMLElement) {
		page := p.current
		if page == nil {
			return
		}
		item, err := p.extractor.Extract(extract.NewSelectionNode(e.DOM))
		if err != nil {
			label := ErrorLabel(err)
			p.Metrics.IncError(label)
			slog.Warn("skipping listing node",
				slog.Int("page", page.Number),
				slog.String("category", label),
				slog.Any("error", err),
			)
			page.Skipped = append(page.Skipped, err)
			return
		}
		p.Metrics.IncItems()
		page.Items = append(page.Items, item)
	})

	p.collector.OnHTML(p.cfg.ContinuationSelector, func(e *colly.HTMLElement) {
		page := p.current
		if page == nil || page.Next != "" {
			return
		}
		next, err := ResolveContinuation(p.cfg.DomainPrefix, []byte(e.Text))
		if err != nil {
			p.Metrics.IncError(ErrorLabel(err))
			slog.Warn("malformed continuation marker, treating page as the last one",
				slog.Int("page", page.Number),
				slog.Any("error", err),
			)
			return
		}
		page.Next = next
	})
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch statusCode {
		case http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		}
	}

	return err
}
