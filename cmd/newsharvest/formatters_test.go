package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/pevans/newsharvest/orchestrator"
	"github.com/pevans/newsharvest/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPrintTable_AlignsWideCharacters verifies columns are padded by display
// width
func TestPrintTable_AlignsWideCharacters(t *testing.T) {
	var buf bytes.Buffer
	printTable(&buf, []string{"NAME", "COUNT"}, [][]string{
		{"日本経済", "3"},
		{"Mint", "12"},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "NAME      COUNT", lines[0])
	assert.Equal(t, "日本経済  3", lines[1])
	assert.Equal(t, "Mint      12", lines[2])
}

// TestTruncate verifies long text is cut to the display width
func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

// TestPrintScrapeResults verifies per-source lines and the summary
func TestPrintScrapeResults(t *testing.T) {
	var buf bytes.Buffer
	printScrapeResults(&buf, []orchestrator.ScrapeResult{
		{Source: "Economic Times", Success: true, ArticlesCount: 12},
		{Source: "Mint", Error: "failed to fetch https://mint.example.com: timeout"},
	})

	out := buf.String()
	assert.Contains(t, out, "Economic Times  ok      12")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "1/2 sources succeeded, 12 articles saved")
}

// TestPrintScrapeResults_Empty verifies the no-sources message
func TestPrintScrapeResults_Empty(t *testing.T) {
	var buf bytes.Buffer
	printScrapeResults(&buf, nil)
	assert.Equal(t, "No active sources to scrape.\n", buf.String())
}

// TestPrintStatus verifies sources and settings are shown
func TestPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	printStatus(&buf, &orchestrator.Status{
		Sources: []store.SourceStatus{
			{ID: "src-1", Name: "Moneycontrol", IsActive: false, ArticleCount: 7},
		},
		Settings: store.Settings{ScrapeInterval: 45, EnableAutoScrape: false},
	})

	out := buf.String()
	assert.Contains(t, out, "Moneycontrol")
	assert.Contains(t, out, "never")
	assert.Contains(t, out, "Scrape interval: 45 minutes (auto-scrape disabled)")
}

// TestPrintArticles verifies article rows and the page footer
func TestPrintArticles(t *testing.T) {
	published := time.Date(2025, 11, 23, 8, 0, 0, 0, time.Local)

	var buf bytes.Buffer
	printArticles(&buf, &store.ArticlePage{
		Items: []store.Article{{
			Title:       "Sensex jumps 500 points on bank rally",
			SourceURL:   "https://et.example.com/news/sensex-jumps",
			PublishedAt: &published,
			Source:      &store.SourceRef{Name: "Economic Times"},
		}},
		Total:      21,
		Page:       2,
		PageSize:   20,
		TotalPages: 2,
	})

	out := buf.String()
	assert.Contains(t, out, "2025-11-23 08:00")
	assert.Contains(t, out, "Sensex jumps 500 points on bank rally")
	assert.Contains(t, out, "Page 2 of 2 (21 articles)")
}

// TestPrintJSON verifies indented output
func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]int{"total": 3}))
	assert.Equal(t, "{\n  \"total\": 3\n}\n", buf.String())
}
