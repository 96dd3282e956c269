package etl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/aluiziolira/go-wishlist-tracker/config"
	"github.com/aluiziolira/go-wishlist-tracker/models"
	"github.com/aluiziolira/go-wishlist-tracker/pipeline"
	"github.com/aluiziolira/go-wishlist-tracker/storage"
)

const (
	testDomain   = "https://site.example"
	testStartURL = "https://site.example/hz/wishlist/ABC"
)

func newTestRunner(t *testing.T) (*Runner, *storage.FileStore, *httpmock.MockTransport) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.StartURL = testStartURL
	cfg.DomainPrefix = testDomain
	cfg.Storage.Root = t.TempDir()

	store := storage.NewFileStore(cfg.Storage.Root)
	r, err := NewRunner(cfg, store)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	transport := httpmock.NewMockTransport()
	r.Transport = transport
	r.now = func() time.Time { return time.Date(2024, 3, 5, 14, 7, 30, 0, time.Local) }
	return r, store, transport
}

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(200, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

func wishlistPage(page, count int, marker string) string {
	var b strings.Builder
	b.WriteString(`<html><body><ul id="g-items">`)
	for i := 1; i <= count; i++ {
		id := fmt.Sprintf("P%d-%d", page, i)
		b.WriteString("<li>")
		fmt.Fprintf(&b, `<a id="itemName_%s" title="Item %d-%d" href="/dp/%s">Item</a>`, id, page, i, id)
		fmt.Fprintf(&b, `<a id="review_count_%s" aria-label="%d" class="a-link">%d</a>`, id, i, i)
		fmt.Fprintf(&b, `<i id="review_stars_%s"><span>4,5 de 5 estrelas</span></i>`, id)
		fmt.Fprintf(&b, `<span id="itemAddedDate_%s">Item adicionado %d de março de 2023</span>`, id, i)
		fmt.Fprintf(&b, `<span id="itemPrice_%s"><span>R$ %d,90</span></span>`, id, 10*i)
		b.WriteString("</li>")
	}
	b.WriteString("</ul>")
	if marker != "" {
		fmt.Fprintf(&b, `<script type="a-state" data-a-state='{"key":"scrollState"}'>%s</script>`, marker)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func registerWishlist(transport *httpmock.MockTransport) {
	transport.RegisterResponder("GET", testStartURL, htmlResponder(wishlistPage(1, 3, `{"showMoreUrl":"/hz/wishlist/ABC?page=2"}`)))
	transport.RegisterResponder("GET", testDomain+"/hz/wishlist/ABC?page=2", htmlResponder(wishlistPage(2, 2, `{"showMoreUrl":null}`)))
}

func TestRunBootstrapsMaster(t *testing.T) {
	r, store, transport := newTestRunner(t)
	r.cfg.BootstrapMaster = true
	registerWishlist(transport)

	result, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Extract.Crawl.PageCount != 2 || len(result.Extract.Crawl.Items) != 5 {
		t.Fatalf("crawl pages=%d items=%d, want 2/5", result.Extract.Crawl.PageCount, len(result.Extract.Crawl.Items))
	}
	if result.Transform.NewRows != 5 || result.Transform.MasterRows != 0 || result.Load.Rows != 5 {
		t.Fatalf("unexpected counts: transform=%+v load=%+v", result.Transform, result.Load)
	}

	ctx := context.Background()
	raw, err := store.Get(ctx, "raw/awl.json")
	if err != nil {
		t.Fatalf("raw: %v", err)
	}
	items, err := pipeline.DecodeRawItems(raw)
	if err != nil || len(items) != 5 {
		t.Fatalf("raw items=%d err=%v, want 5", len(items), err)
	}

	master, err := store.Get(ctx, "master/awl.csv")
	if err != nil {
		t.Fatalf("master: %v", err)
	}
	if !strings.HasPrefix(string(master), "name;url;review_count;") {
		t.Fatalf("master should use ';': %q", string(master)[:40])
	}
	table, err := pipeline.DecodeTable(master, ';')
	if err != nil {
		t.Fatalf("decode master: %v", err)
	}
	first := table.Rows[0]
	if first.Name != "Item 1-1" || first.URL != testDomain+"/dp/P1-1" || first.AddedDate != "1/3/2023" ||
		first.TotalPrice != 10.9 || first.Availability != 1 || first.ReviewStars != "4.5" {
		t.Fatalf("unexpected first row: %+v", first)
	}

	interim, err := store.Get(ctx, "interim/awl.csv")
	if err != nil {
		t.Fatalf("interim: %v", err)
	}
	if !strings.HasPrefix(string(interim), "name,url,review_count,") {
		t.Fatalf("interim should use ',': %q", string(interim)[:40])
	}
}

func TestTransformRequiresMaster(t *testing.T) {
	r, store, _ := newTestRunner(t)
	ctx := context.Background()

	raw, _ := pipeline.EncodeRawItems([]models.RawItem{{Name: "A", URL: "u", AddedDate: "Item adicionado 1 de maio de 2023"}})
	if err := store.Put(ctx, raw, "raw/awl.json"); err != nil {
		t.Fatalf("put raw: %v", err)
	}

	_, err := r.Transform(ctx)
	if !errors.Is(err, ErrMissingMaster) {
		t.Fatalf("transform error = %v, want ErrMissingMaster", err)
	}
	if _, err := store.Get(ctx, "interim/awl.csv"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("interim should not be written, got %v", err)
	}
}

func TestTransformMergesIntoMaster(t *testing.T) {
	r, store, _ := newTestRunner(t)
	ctx := context.Background()

	previous := time.Date(2024, 3, 4, 9, 0, 0, 0, time.Local)
	masterData, err := pipeline.EncodeTable(models.NewTable([]models.DerivedRow{
		{Name: "A", URL: "u", AddedDate: "1/5/2023", TotalPrice: 50, Availability: 1, ReferenceDate: previous},
	}), ';')
	if err != nil {
		t.Fatalf("encode master: %v", err)
	}
	if err := store.Put(ctx, masterData, "master/awl.csv"); err != nil {
		t.Fatalf("put master: %v", err)
	}
	price := 45.0
	raw, _ := pipeline.EncodeRawItems([]models.RawItem{
		{Name: "A", URL: "u", AddedDate: "Item adicionado 1 de maio de 2023", Price: &price},
		{Name: "A", URL: "u", AddedDate: "Item adicionado 1 de maio de 2023", Price: &price},
		{Name: "B", URL: "v", AddedDate: "Item adicionado 9 de brumário de 2023"},
	})
	if err := store.Put(ctx, raw, "raw/awl.json"); err != nil {
		t.Fatalf("put raw: %v", err)
	}

	result, err := r.Transform(ctx)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if result.NewRows != 2 || result.MasterRows != 1 || result.MergedRows != 2 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if result.Skipped["date_parse"] != 1 {
		t.Fatalf("skipped = %v, want one date_parse", result.Skipped)
	}

	interim, err := store.Get(ctx, "interim/awl.csv")
	if err != nil {
		t.Fatalf("interim: %v", err)
	}
	table, err := pipeline.DecodeTable(interim, ',')
	if err != nil {
		t.Fatalf("decode interim: %v", err)
	}
	if table.Rows[0].TotalPrice != 50 || table.Rows[1].TotalPrice != 45 {
		t.Fatalf("master rows should come first: %+v", table.Rows)
	}

	// the master is only replaced by Load
	unchanged, _ := store.Get(ctx, "master/awl.csv")
	if string(unchanged) != string(masterData) {
		t.Fatal("transform must not modify the master table")
	}
}

func TestTransformRejectsSchemaMismatch(t *testing.T) {
	r, store, _ := newTestRunner(t)
	ctx := context.Background()

	legacy := "name;url;price;reference_date\nA;u;10;2024-01-01 00:00:00\n"
	if err := store.Put(ctx, []byte(legacy), "master/awl.csv"); err != nil {
		t.Fatalf("put master: %v", err)
	}
	raw, _ := pipeline.EncodeRawItems(nil)
	if err := store.Put(ctx, raw, "raw/awl.json"); err != nil {
		t.Fatalf("put raw: %v", err)
	}

	_, err := r.Transform(ctx)
	var mergeErr *pipeline.MergeError
	if !errors.As(err, &mergeErr) {
		t.Fatalf("transform error = %v, want MergeError", err)
	}
	if _, err := store.Get(ctx, "interim/awl.csv"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("interim should not be written, got %v", err)
	}
}

func TestExtractHistorical(t *testing.T) {
	r, store, transport := newTestRunner(t)
	r.cfg.Historical = true
	registerWishlist(transport)

	result, err := r.Extract(context.Background())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	want := []string{"raw/awl.json", "raw/awl_2024-03-05_14:07.json"}
	if len(result.Paths) != 2 || result.Paths[0] != want[0] || result.Paths[1] != want[1] {
		t.Fatalf("paths = %v, want %v", result.Paths, want)
	}
	for _, p := range want {
		if _, err := store.Get(context.Background(), p); err != nil {
			t.Fatalf("get %s: %v", p, err)
		}
	}
}

func TestExtractFetchFailureStoresNothing(t *testing.T) {
	r, store, transport := newTestRunner(t)
	transport.RegisterResponder("GET", testStartURL, httpmock.NewStringResponder(503, "unavailable"))

	if _, err := r.Extract(context.Background()); err == nil {
		t.Fatal("extract should fail when a page cannot be fetched")
	}
	if _, err := store.Get(context.Background(), "raw/awl.json"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("raw should not be written, got %v", err)
	}
}

func TestLoadReencodesInterim(t *testing.T) {
	r, store, _ := newTestRunner(t)
	ctx := context.Background()

	// older interim files carry a leading index column
	interim := ",name,url,review_count,review_stars,added_date,total_price,availability,reference_date\n" +
		"0,\"Livro, volume 1\",u,3,4.5,5/3/2023,115.5,1,2024-03-05 14:07:30\n"
	if err := store.Put(ctx, []byte(interim), "interim/awl.csv"); err != nil {
		t.Fatalf("put interim: %v", err)
	}

	result, err := r.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if result.Rows != 1 {
		t.Fatalf("rows = %d, want 1", result.Rows)
	}

	master, err := store.Get(ctx, "master/awl.csv")
	if err != nil {
		t.Fatalf("master: %v", err)
	}
	want := "name;url;review_count;review_stars;added_date;total_price;availability;reference_date\n" +
		"Livro, volume 1;u;3;4.5;5/3/2023;115.5;1;2024-03-05 14:07:30\n"
	if string(master) != want {
		t.Fatalf("master =\n%s\nwant\n%s", master, want)
	}
}

func TestHistoricalPath(t *testing.T) {
	at := time.Date(2023, 11, 2, 8, 5, 0, 0, time.UTC)
	tests := map[string]string{
		"raw/awl.json":  "raw/awl_2023-11-02_08:05.json",
		"raw/awl":       "raw/awl_2023-11-02_08:05",
		"feeds/a.b.csv": "feeds/a.b_2023-11-02_08:05.csv",
	}
	for in, want := range tests {
		if got := HistoricalPath(in, at); got != want {
			t.Errorf("HistoricalPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewRunnerRejectsUnknownLocale(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Locale = "xx-YY"
	if _, err := NewRunner(cfg, storage.NewFileStore(t.TempDir())); err == nil {
		t.Fatal("expected error for locale without a month table")
	}
}
