package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/pevans/newsharvest/orchestrator"
	"github.com/pevans/newsharvest/seed"
	"github.com/pevans/newsharvest/store"
)

const (
	maxTitleWidth = 70
	maxErrorWidth = 50
	timeFormat    = "2006-01-02 15:04"
)

// printTable writes rows as space-aligned columns, padding by display width
// so wide characters line up.
func printTable(w io.Writer, header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if width := runewidth.StringWidth(row[i]); width > widths[i] {
				widths[i] = width
			}
		}
	}

	writeRow := func(cells []string) {
		var sb strings.Builder
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			if i == len(widths)-1 {
				sb.WriteString(cell)
			} else {
				sb.WriteString(runewidth.FillRight(cell, widths[i]))
				sb.WriteString("  ")
			}
		}
		fmt.Fprintln(w, strings.TrimRight(sb.String(), " "))
	}

	writeRow(header)
	for _, row := range rows {
		writeRow(row)
	}
}

// truncate shortens s to width display columns.
func truncate(s string, width int) string {
	return runewidth.Truncate(s, width, "...")
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format(timeFormat)
}

// printScrapeResults prints one line per source followed by the totals
func printScrapeResults(w io.Writer, results []orchestrator.ScrapeResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No active sources to scrape.")
		return
	}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		status := "ok"
		if !r.Success {
			status = "failed"
		}
		rows = append(rows, []string{
			r.Source,
			status,
			strconv.Itoa(r.ArticlesCount),
			truncate(r.Error, maxErrorWidth),
		})
	}
	printTable(w, []string{"SOURCE", "STATUS", "ARTICLES", "ERROR"}, rows)

	summary := orchestrator.Summarize(results)
	fmt.Fprintf(w, "\n%d/%d sources succeeded, %d articles saved\n",
		summary.SourcesSuccessful, summary.SourcesScraped, summary.TotalArticles)
}

// printStatus prints sources with their counts and the settings
func printStatus(w io.Writer, status *orchestrator.Status) {
	if len(status.Sources) == 0 {
		fmt.Fprintln(w, "No sources configured.")
	} else {
		rows := make([][]string, 0, len(status.Sources))
		for _, s := range status.Sources {
			active := "yes"
			if !s.IsActive {
				active = "no"
			}
			rows = append(rows, []string{
				s.Name,
				active,
				strconv.Itoa(s.ArticleCount),
				formatTime(s.LastScrapedAt),
				s.ID,
			})
		}
		printTable(w, []string{"NAME", "ACTIVE", "ARTICLES", "LAST SCRAPED", "ID"}, rows)
	}

	autoScrape := "enabled"
	if !status.Settings.EnableAutoScrape {
		autoScrape = "disabled"
	}
	fmt.Fprintf(w, "\nScrape interval: %d minutes (auto-scrape %s)\n", status.Settings.ScrapeInterval, autoScrape)
}

// printArticles prints one page of articles
func printArticles(w io.Writer, page *store.ArticlePage) {
	if len(page.Items) == 0 {
		fmt.Fprintln(w, "No articles to display.")
		return
	}

	rows := make([][]string, 0, len(page.Items))
	for _, a := range page.Items {
		source := "Unknown"
		if a.Source != nil {
			source = a.Source.Name
		}
		rows = append(rows, []string{
			formatTime(a.PublishedAt),
			source,
			truncate(a.Title, maxTitleWidth),
			a.SourceURL,
		})
	}
	printTable(w, []string{"PUBLISHED", "SOURCE", "TITLE", "URL"}, rows)

	fmt.Fprintf(w, "\nPage %d of %d (%d articles)\n", page.Page, page.TotalPages, page.Total)
}

func printSeedResult(w io.Writer, result seed.Result) {
	fmt.Fprintf(w, "Seeded %d sources (%d already present)\n", result.Created, result.Skipped)
}

// printJSON prints v as indented JSON
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
