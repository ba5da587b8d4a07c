package services

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/markusmobius/go-trafilatura"

	"github.com/jmorgan-dev/docstack/models"
)

// ErrNoContent is returned when a page yields no readable text.
var ErrNoContent = errors.New("no readable content found")

// ExtractedPage is the readable portion of a fetched page.
type ExtractedPage struct {
	URL   string
	Title string
	Text  string
}

// ExtractReadable pulls the main readable text out of a fetched page.
// Trafilatura does the heavy lifting; when it comes back empty we fall back
// to scanning common content containers directly.
func ExtractReadable(page models.Page) (*ExtractedPage, error) {
	if strings.TrimSpace(page.HTML) == "" {
		return nil, ErrNoContent
	}

	originalURL, _ := url.Parse(page.URL)
	opts := trafilatura.Options{
		EnableFallback: true,
		OriginalURL:    originalURL,
	}

	var title, text string
	result, err := trafilatura.Extract(strings.NewReader(page.HTML), opts)
	if err == nil && result != nil {
		title = result.Metadata.Title
		text = strings.TrimSpace(result.ContentText)
	} else if err != nil {
		log.Printf("EXTRACTOR: trafilatura failed for %s, trying selectors: %v", page.URL, err)
	}

	if text == "" {
		title, text, err = extractBySelectors(page.HTML)
		if err != nil {
			return nil, fmt.Errorf("could not extract content from %s: %w", page.URL, err)
		}
	}

	if text == "" {
		return nil, ErrNoContent
	}

	return &ExtractedPage{
		URL:   page.URL,
		Title: title,
		Text:  collapseWhitespace(text),
	}, nil
}

// extractBySelectors scans typical documentation content containers and falls
// back to the whole body.
func extractBySelectors(html string) (title, text string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", err
	}

	title = strings.TrimSpace(doc.Find("title").First().Text())

	selectors := []string{"main", "article", ".content", "#content", ".documentation", "#documentation"}
	for _, selector := range selectors {
		if sel := doc.Find(selector); sel.Length() > 0 {
			text = sel.Text()
			break
		}
	}
	if text == "" {
		text = doc.Find("body").Text()
	}

	return title, strings.TrimSpace(text), nil
}

// collapseWhitespace squeezes runs of spaces within lines and drops blank
// lines, keeping line breaks so the chunker can split on them.
func collapseWhitespace(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
