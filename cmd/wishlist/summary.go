package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/aluiziolira/go-wishlist-tracker/etl"
)

func printSummary(stage string, result *etl.RunResult, duration time.Duration) {
	writeSummary(os.Stdout, stage, result, duration)
}

func writeSummary(w io.Writer, stage string, result *etl.RunResult, duration time.Duration) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("wishlist %s complete", stage))

	if res := result.Extract; res != nil {
		crawl := res.Crawl
		t.AppendRows([]table.Row{
			{"Pages", crawl.PageCount},
			{"Requests", crawl.RequestCount},
			{"Items", len(crawl.Items)},
			{"Skipped nodes", crawl.SkippedCount},
		})
		if len(crawl.SkipReasons) > 0 {
			t.AppendRow(table.Row{"Skip reasons", formatCounts(crawl.SkipReasons)})
		}
		t.AppendRow(table.Row{"Raw output", strings.Join(res.Paths, ", ")})
		t.AppendSeparator()
	}
	if res := result.Transform; res != nil {
		t.AppendRows([]table.Row{
			{"New rows", res.NewRows},
			{"Master rows", res.MasterRows},
			{"Merged rows", res.MergedRows},
		})
		if len(res.Skipped) > 0 {
			t.AppendRow(table.Row{"Skipped items", formatCounts(res.Skipped)})
		}
		t.AppendRow(table.Row{"Interim output", res.Path})
		t.AppendSeparator()
	}
	if res := result.Load; res != nil {
		t.AppendRows([]table.Row{
			{"Master rows written", res.Rows},
			{"Master output", res.Path},
		})
		t.AppendSeparator()
	}
	t.AppendRow(table.Row{"Duration", duration.Round(time.Millisecond)})
	t.Render()
}

func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}
