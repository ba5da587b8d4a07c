package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/jmorgan-dev/docstack/models"
)

// ScraperConfig controls a single crawl.
type ScraperConfig struct {
	BaseURL        string
	MaxDepth       int
	RateLimit      float64 // requests per second
	Timeout        time.Duration
	IgnorePatterns []string
	RetryDelays    []time.Duration
	MaxPages       int
}

// Scraper crawls documentation pages starting from a base URL. It stays on
// the base URL's host, respects a depth limit, and rate-limits requests.
type Scraper struct {
	config   ScraperConfig
	client   *http.Client
	limiter  *rate.Limiter
	baseHost string
}

func defaultRetryDelays() []time.Duration {
	return []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
}

// NewScraper builds a Scraper for the given config, applying defaults for
// unset fields.
func NewScraper(config ScraperConfig) (*Scraper, error) {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxDepth == 0 {
		config.MaxDepth = 3
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2
	}
	if config.RetryDelays == nil {
		config.RetryDelays = defaultRetryDelays()
	}
	if config.MaxPages == 0 {
		config.MaxPages = 200
	}

	parsed, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", config.BaseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q", parsed.Scheme)
	}

	return &Scraper{
		config:   config,
		client:   &http.Client{Timeout: config.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		baseHost: parsed.Host,
	}, nil
}

// Crawl walks the site breadth-first from the base URL and returns the raw
// HTML of every page it reached. Pages that keep failing after retries are
// skipped; the crawl only fails when the starting page itself is unreachable.
func (s *Scraper) Crawl(ctx context.Context) ([]models.Page, error) {
	type frontierItem struct {
		url   string
		depth int
	}

	visited := map[string]bool{s.config.BaseURL: true}
	queue := []frontierItem{{url: s.config.BaseURL, depth: 0}}
	var pages []models.Page

	for len(queue) > 0 && len(pages) < s.config.MaxPages {
		item := queue[0]
		queue = queue[1:]

		html, err := s.fetchWithRetry(ctx, item.url)
		if err != nil {
			if len(pages) == 0 {
				return nil, fmt.Errorf("failed to fetch %s: %w", item.url, err)
			}
			log.Printf("SCRAPER: skipping %s: %v", item.url, err)
			continue
		}

		pages = append(pages, models.Page{
			URL:       item.url,
			HTML:      html,
			Depth:     item.depth,
			FetchedAt: time.Now(),
		})

		if item.depth >= s.config.MaxDepth {
			continue
		}
		for _, link := range s.discoverLinks(item.url, html) {
			if !visited[link] {
				visited[link] = true
				queue = append(queue, frontierItem{url: link, depth: item.depth + 1})
			}
		}
	}

	return pages, nil
}

// fetchWithRetry fetches a URL with exponential backoff. The configured
// delays determine the number of retries: one initial attempt plus one per
// delay.
func (s *Scraper) fetchWithRetry(ctx context.Context, pageURL string) (string, error) {
	var lastErr error
	attempts := len(s.config.RetryDelays) + 1

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			log.Printf("SCRAPER: retry %s (attempt %d): %v", pageURL, attempt+1, lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(s.config.RetryDelays[attempt-1]):
			}
		}

		html, err := s.fetch(ctx, pageURL)
		if err == nil {
			return html, nil
		}
		if errors.Is(err, errPermanent) {
			return "", err
		}
		lastErr = err
	}

	return "", lastErr
}

// errPermanent marks fetch failures that retrying cannot fix, such as 4xx
// responses or non-HTML content.
var errPermanent = errors.New("permanent fetch failure")

func (s *Scraper) fetch(ctx context.Context, pageURL string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return "", fmt.Errorf("%w: received status code %d for URL %s", errPermanent, resp.StatusCode, pageURL)
		}
		return "", fmt.Errorf("received status code %d for URL %s", resp.StatusCode, pageURL)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return "", fmt.Errorf("%w: non-HTML content type %q for URL %s", errPermanent, ct, pageURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// discoverLinks extracts same-host links worth following from a page.
func (s *Scraper) discoverLinks(pageURL, html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		log.Printf("SCRAPER: could not parse %s for links: %v", pageURL, err)
		return nil
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	var links []string
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		abs.Fragment = ""
		link := abs.String()
		if seen[link] || !s.shouldFollow(abs) {
			return
		}
		seen[link] = true
		links = append(links, link)
	})
	return links
}

func (s *Scraper) shouldFollow(u *url.URL) bool {
	if u.Host != s.baseHost {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	path := strings.ToLower(u.Path)
	switch {
	case path == "", strings.HasSuffix(path, "/"):
	case strings.HasSuffix(path, ".html"), strings.HasSuffix(path, ".htm"):
	case !strings.Contains(path[strings.LastIndex(path, "/")+1:], "."):
		// extensionless paths are usually routed pages
	default:
		return false
	}

	for _, pattern := range s.config.IgnorePatterns {
		if strings.Contains(u.String(), pattern) {
			return false
		}
	}
	return true
}
