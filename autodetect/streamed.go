package autodetect

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pevans/newsharvest/parser"
	"github.com/pevans/newsharvest/scraper"
)

const streamedPayloadName = "streamed-payload"

// lookahead is how far past a title the strategy searches for a summary and
// an image.
const lookahead = 3000

var (
	pushPattern    = regexp.MustCompile(`self\.__next_f\.push\(\[1,"(.+?)"\]\)`)
	triplePattern  = regexp.MustCompile(`"title"\s*:\s*"([^"]{10,300})"[^}]{0,500}?"slug"\s*:\s*"([^"]{3,200})"[^}]{0,500}?"publishedAt"\s*:\s*"([^"]+)"`)
	excerptPattern = regexp.MustCompile(`"(?:subtitle|excerpt)"\s*:\s*"([^"]{20,300})"`)
	mediaPattern   = regexp.MustCompile(`"(?:media|thumbnail|image)"\s*:\s*"(https?://[^"]+)"`)

	chunkUnescaper = strings.NewReplacer(`\\`, `\`, `\"`, `"`, `\n`, "\n", `\t`, "\t")
)

// StreamedPayloadStrategy reconstructs articles from the chunks a React
// Server Components page streams through self.__next_f.push calls. The
// payload format is internal to the framework and changes between releases,
// so this strategy breaks first when sites upgrade. It can be removed with
// WithoutStreamedPayload.
type StreamedPayloadStrategy struct{}

func (StreamedPayloadStrategy) Name() string { return streamedPayloadName }

func (StreamedPayloadStrategy) Extract(page *Page) []scraper.ScrapedArticle {
	payload := streamedPayload(page.Doc)
	if payload == "" {
		return nil
	}

	var articles []scraper.ScrapedArticle
	seen := make(map[string]bool)

	for _, loc := range triplePattern.FindAllStringSubmatchIndex(payload, -1) {
		title := parser.NormalizeSpace(payload[loc[2]:loc[3]])
		slug := strings.Trim(strings.TrimSpace(payload[loc[4]:loc[5]]), "/")
		rawPublished := payload[loc[6]:loc[7]]

		if parser.Length(title) < parser.MinTitleLength || page.Origin == "" {
			continue
		}

		publishedAt := parser.ParseDate(rawPublished)

		sourceURL := page.Origin + "/" + slug
		if publishedAt != nil {
			sourceURL = fmt.Sprintf("%s/%d/%02d/%s", page.Origin, publishedAt.Year(), int(publishedAt.Month()), slug)
		}
		if seen[sourceURL] {
			continue
		}
		seen[sourceURL] = true

		article := scraper.ScrapedArticle{
			Title:       title,
			SourceURL:   sourceURL,
			PublishedAt: publishedAt,
		}

		end := loc[0] + lookahead
		if end > len(payload) {
			end = len(payload)
		}
		window := payload[loc[0]:end]

		if m := excerptPattern.FindStringSubmatch(window); m != nil {
			article.Summary = parser.Truncate(parser.CleanText(m[1]), parser.SummaryMaxLength)
		}
		if m := mediaPattern.FindStringSubmatch(window); m != nil && parser.IsUsableImage(m[1]) {
			article.ImageURL = m[1]
		}

		articles = append(articles, article)
	}

	return articles
}

// streamedPayload concatenates the unescaped chunks pushed by every inline
// script.
func streamedPayload(doc *goquery.Document) string {
	var b strings.Builder

	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		content := s.Text()
		if !strings.Contains(content, "self.__next_f.push") {
			return
		}
		for _, m := range pushPattern.FindAllStringSubmatch(content, -1) {
			b.WriteString(unescapeChunk(m[1]))
		}
	})

	return b.String()
}

// unescapeChunk decodes a chunk as a quoted string literal, falling back to
// the common escapes when the chunk is not a valid literal.
func unescapeChunk(chunk string) string {
	if s, err := strconv.Unquote(`"` + chunk + `"`); err == nil {
		return s
	}
	return chunkUnescaper.Replace(chunk)
}
