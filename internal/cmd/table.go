package cmd

import (
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"

	quip "github.com/JimmyFromTheEarth/quip-export"
	"github.com/JimmyFromTheEarth/quip-export/internal/export"
)

// renderStats prints the per-operation call counters and the last observed
// quota.
func renderStats(w io.Writer, stats map[string]int, state quip.RateLimitState) error {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle("Quip API calls")
	t.AppendHeader(table.Row{"Operation", "Calls"})

	for _, op := range slices.Sorted(maps.Keys(stats)) {
		t.AppendRow(table.Row{op, stats[op]})
	}

	t.AppendFooter(table.Row{"Remaining quota", fmt.Sprintf("%d/%d", state.Remaining, state.Limit)})

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func renderResults(w io.Writer, destination string, results []*export.Result) error {
	if len(results) == 0 {
		return nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Thread", "Title", "Type", "File", "Bytes"})

	total := 0
	for _, r := range results {
		t.AppendRow(table.Row{r.ThreadID, r.Title, r.Type, filepath.Join(destination, r.Path), r.Size})
		total += r.Size
	}

	t.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d exported", len(results)), total})

	_, err := fmt.Fprintln(w, t.Render())
	return err
}
