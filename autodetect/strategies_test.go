package autodetect

import (
	"fmt"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/pevans/newsharvest/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const streamedPage = `<html><body>
<script>self.__next_f.push([1,"{\"posts\":[{\"title\":\"Startup raises funding in a new round\",\"slug\":\"startup-raises-funding\",\"publishedAt\":\"2025-10-05T09:00:00Z\",\"subtitle\":\"The company plans to expand into new markets.\",\"media\":\"https://cdn.pulse.example.com/startup.jpg\"},"])</script>
<script>self.__next_f.push([1,"{\"title\":\"Markets open flat as investors wait\",\"slug\":\"markets-open-flat\",\"publishedAt\":\"not a date\"}]}"])</script>
</body></html>`

// Test helper: builds a Page the way Detect does
func createTestPage(t *testing.T, html, pageURL string) *Page {
	t.Helper()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	return &Page{HTML: html, URL: pageURL, Origin: parser.Origin(pageURL), Doc: doc}
}

// TestStructuredData_GraphAndTypeArrays verifies @graph containers and
// array-valued @type are understood
func TestStructuredData_GraphAndTypeArrays(t *testing.T) {
	html := `<script type="application/ld+json">
	{"@context":"https://schema.org","@graph":[
		{"@type":"Organization","name":"Example Media Group"},
		{"@type":["NewsArticle","Article"],"headline":"Budget 2026 expectations for salaried taxpayers","url":"/news/budget-expectations"},
		{"@type":"BlogPosting","name":"Five charts that explain the market","mainEntityOfPage":"https://example.com/blog/five-charts"}
	]}</script>
	<script type="application/ld+json">{not valid json</script>`

	articles := StructuredDataStrategy{}.Extract(createTestPage(t, html, "https://example.com/markets"))
	require.Len(t, articles, 2)
	assert.Equal(t, "https://example.com/news/budget-expectations", articles[0].SourceURL)
	assert.Equal(t, "Five charts that explain the market", articles[1].Title)
	assert.Equal(t, "https://example.com/blog/five-charts", articles[1].SourceURL)
}

// TestStructuredData_SkipsShortTitlesAndMissingURLs verifies invalid nodes
// are dropped
func TestStructuredData_SkipsShortTitlesAndMissingURLs(t *testing.T) {
	html := `<script type="application/ld+json">[
		{"@type":"NewsArticle","headline":"Short","url":"/news/short"},
		{"@type":"NewsArticle","headline":"Headline with no link at all"}
	]</script>`

	articles := StructuredDataStrategy{}.Extract(createTestPage(t, html, "https://example.com/"))
	assert.Empty(t, articles)
}

// TestInitialState_SlugURLs verifies article arrays are found inside page
// props and URLs are built from slugs
func TestInitialState_SlugURLs(t *testing.T) {
	html := `<html><body><script id="__NEXT_DATA__" type="application/json">
	{"props":{"pageProps":{"menu":[{"label":"Home","href":"/"}],"data":{"latest":[
		{"headline":"Zerodha launches new trading tool","slug":"zerodha-new-tool","excerpt":"The broker added a screener.",
		 "metadata":{"media":"/img/tool.png","authors":[{"name":"Nithin K"}]},"publishedAt":"2025-12-01T10:00:00Z"},
		{"title":"Mutual fund inflows hit a record","url":"https://pulse.example.com/mf-inflows","author":{"name":"Anita Rao"}},
		{"label":"not an article"}
	]}}}}
	</script></body></html>`

	articles := InitialStateStrategy{}.Extract(createTestPage(t, html, "https://pulse.example.com/"))
	require.Len(t, articles, 2)

	assert.Equal(t, "Zerodha launches new trading tool", articles[0].Title)
	assert.Equal(t, "https://pulse.example.com/zerodha-new-tool", articles[0].SourceURL)
	assert.Equal(t, "The broker added a screener.", articles[0].Summary)
	assert.Equal(t, "https://pulse.example.com/img/tool.png", articles[0].ImageURL)
	assert.Equal(t, "Nithin K", articles[0].Author)
	require.NotNil(t, articles[0].PublishedAt)

	assert.Equal(t, "https://pulse.example.com/mf-inflows", articles[1].SourceURL)
	assert.Equal(t, "Anita Rao", articles[1].Author)
}

// TestInitialState_DepthBound verifies arrays nested beyond the search
// depth are ignored
func TestInitialState_DepthBound(t *testing.T) {
	inner := `[{"title":"Deeply nested article headline","slug":"deep"},{"title":"Another nested article headline","slug":"deeper"}]`
	for i := 0; i < 8; i++ {
		inner = fmt.Sprintf(`{"level%d":%s}`, i, inner)
	}
	html := `<script id="__NEXT_DATA__">{"props":{"pageProps":` + inner + `}}</script>`

	articles := InitialStateStrategy{}.Extract(createTestPage(t, html, "https://example.com/"))
	assert.Empty(t, articles)
}

// TestInitialState_NoScript verifies pages without state yield nothing
func TestInitialState_NoScript(t *testing.T) {
	assert.Empty(t, InitialStateStrategy{}.Extract(createTestPage(t, "<p>hi</p>", "https://example.com/")))
}

// TestStreamedPayload_Triplets verifies URL construction, summary and
// image lookahead
func TestStreamedPayload_Triplets(t *testing.T) {
	articles := StreamedPayloadStrategy{}.Extract(createTestPage(t, streamedPage, "https://pulse.example.com/"))
	require.Len(t, articles, 2)

	assert.Equal(t, "Startup raises funding in a new round", articles[0].Title)
	assert.Equal(t, "https://pulse.example.com/2025/10/startup-raises-funding", articles[0].SourceURL)
	assert.Equal(t, "The company plans to expand into new markets.", articles[0].Summary)
	assert.Equal(t, "https://cdn.pulse.example.com/startup.jpg", articles[0].ImageURL)
	require.NotNil(t, articles[0].PublishedAt)

	assert.Equal(t, "https://pulse.example.com/markets-open-flat", articles[1].SourceURL)
	assert.Nil(t, articles[1].PublishedAt)
}

// TestStreamedPayload_NoChunks verifies ordinary scripts are ignored
func TestStreamedPayload_NoChunks(t *testing.T) {
	html := `<script>var x = {"title":"Not streamed data at all","slug":"nope","publishedAt":"2025-01-01"}</script>`
	assert.Empty(t, StreamedPayloadStrategy{}.Extract(createTestPage(t, html, "https://example.com/")))
}

// TestHeuristic_StoryCards verifies card markup is recognized
func TestHeuristic_StoryCards(t *testing.T) {
	html := `<html><body>
	<div class="StoryCard_wrap__x1">
		<a href="/markets/rupee-hits-record-low"><img data-src="/img/rupee.jpg" src="/img/placeholder.gif"></a>
		<h3>Rupee hits a record low against dollar</h3>
		<p class="card-summary">Importer demand and foreign outflows weighed on the currency.</p>
		<span class="DateCaption">2 hours ago</span>
	</div>
	<div class="StoryCard_wrap__x1">
		<a href="/markets/gold-prices-climb-again">Gold prices climb again on safe haven demand</a>
	</div>
	<div class="StoryCard_wrap__x1">
		<a href="/markets/short">tiny</a>
		<div class="cardTitle">Fallback title from class name</div>
		<a href="/markets/bank-stocks-drag-index-lower">x</a>
	</div>
	<div class="StoryCard_wrap__x1"><a href="/about">About</a><h3>Not an article container</h3></div>
	</body></html>`

	articles := HeuristicStrategy{}.Extract(createTestPage(t, html, "https://example.com/markets"))
	require.Len(t, articles, 3)

	assert.Equal(t, "Rupee hits a record low against dollar", articles[0].Title)
	assert.Equal(t, "https://example.com/markets/rupee-hits-record-low", articles[0].SourceURL)
	assert.Equal(t, "https://example.com/img/rupee.jpg", articles[0].ImageURL)
	assert.Equal(t, "Importer demand and foreign outflows weighed on the currency.", articles[0].Summary)
	assert.NotNil(t, articles[0].PublishedAt)

	assert.Equal(t, "Gold prices climb again on safe haven demand", articles[1].Title)

	assert.Equal(t, "Fallback title from class name", articles[2].Title)
	assert.Equal(t, "https://example.com/markets/bank-stocks-drag-index-lower", articles[2].SourceURL)
}

// TestHeuristic_NeedsTwoContainers verifies a single match is not a list
func TestHeuristic_NeedsTwoContainers(t *testing.T) {
	html := `<article><h2>Only a single article on the page</h2><a href="/news/single">x</a></article>`
	assert.Empty(t, HeuristicStrategy{}.Extract(createTestPage(t, html, "https://example.com/")))
}

// TestHeuristic_SkipsPageURL verifies self links are not articles
func TestHeuristic_SkipsPageURL(t *testing.T) {
	html := `<article><a href="/news/markets">Self link to the listing page</a></article>
		<article><a href="/news/markets/">Self link with trailing slash</a></article>`
	assert.Empty(t, HeuristicStrategy{}.Extract(createTestPage(t, html, "https://example.com/news/markets")))
}

// TestLinks_TextRules verifies text length and word count filters and
// nearby images
func TestLinks_TextRules(t *testing.T) {
	html := `<html><body>
		<li><img src="/img/ipo.jpg"><a href="/news/ipo-market-heats-up">IPO market heats up this week</a></li>
		<a href="/news/two-words-only">Twowords onlyhere</a>
		<a href="/news/too-short-text">Short text</a>
		<a href="/category/markets-and-more-news">Markets and more category page</a>
		<a href="/news/ipo-market-heats-up">IPO market heats up this week</a>
	</body></html>`

	articles := LinkStrategy{}.Extract(createTestPage(t, html, "https://example.com/"))
	require.Len(t, articles, 1)
	assert.Equal(t, "IPO market heats up this week", articles[0].Title)
	assert.Equal(t, "https://example.com/news/ipo-market-heats-up", articles[0].SourceURL)
	assert.Equal(t, "https://example.com/img/ipo.jpg", articles[0].ImageURL)
}

// TestFeed_RSS verifies syndication feeds are read through gofeed
func TestFeed_RSS(t *testing.T) {
	rss := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/"><channel>
<title>Markets</title>
<item><title>Nifty ends week higher on IT gains</title><link>https://example.com/news/nifty-week</link>
<description>&lt;p&gt;IT stocks led the weekly gain.&lt;/p&gt;</description>
<pubDate>Fri, 05 Dec 2025 10:00:00 +0000</pubDate><dc:creator>Desk Reporter</dc:creator>
<enclosure url="https://example.com/img/nifty.jpg" type="image/jpeg" length="1"/></item>
<item><title>Short</title><link>https://example.com/news/short</link></item>
<item><title>Metals rally as China data surprises</title><link>/news/metals-rally</link></item>
</channel></rss>`

	articles := FeedStrategy{}.Extract(createTestPage(t, rss, "https://example.com/feed"))
	require.Len(t, articles, 2)

	assert.Equal(t, "Nifty ends week higher on IT gains", articles[0].Title)
	assert.Equal(t, "IT stocks led the weekly gain.", articles[0].Summary)
	assert.Equal(t, "Desk Reporter", articles[0].Author)
	assert.Equal(t, "https://example.com/img/nifty.jpg", articles[0].ImageURL)
	require.NotNil(t, articles[0].PublishedAt)
	assert.Equal(t, 2025, articles[0].PublishedAt.Year())

	assert.Equal(t, "https://example.com/news/metals-rally", articles[1].SourceURL)
}

// TestFeed_IgnoresHTML verifies ordinary pages are left to other strategies
func TestFeed_IgnoresHTML(t *testing.T) {
	assert.Empty(t, FeedStrategy{}.Extract(createTestPage(t, "<html><body><p>page</p></body></html>", "https://example.com/")))
}
