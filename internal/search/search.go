package search

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Client is the web-search capability the orchestrator consumes. Failures are
// encoded in the returned text, never raised: every search returns exactly
// once with a mergeable string.
type Client interface {
	Search(ctx context.Context, query string) string
	SearchPrices(ctx context.Context, product string, year int) string
}

// priceQueryVariants are the fixed suffixes a comprehensive price search
// fans out over. Order is stable so traces stay comparable across missions.
var priceQueryVariants = []string{"price", "cost", "pricing", "buy", "retail price", "MSRP"}

// NoPriceResult is the sentinel returned when every variant comes back empty.
func NoPriceResult(product string) string {
	return fmt.Sprintf("No price information found for %s.", product)
}

// DuckDuckGo scrapes the DuckDuckGo HTML endpoint. No API key needed, which
// keeps the search path alive when every paid provider is unconfigured.
type DuckDuckGo struct {
	Endpoint   string
	HTTPClient *http.Client
	MaxResults int
	logger     *log.Logger
}

// NewDuckDuckGo builds a search client with sane defaults for zero values.
func NewDuckDuckGo(timeout time.Duration) *DuckDuckGo {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DuckDuckGo{
		Endpoint:   "https://html.duckduckgo.com/html/",
		HTTPClient: &http.Client{Timeout: timeout},
		MaxResults: 15,
		logger:     log.New(log.Writer(), "[SEARCH] ", log.LstdFlags),
	}
}

type result struct {
	Title   string
	URL     string
	Snippet string
}

func (r result) String() string {
	return fmt.Sprintf("%s: %s (Source: %s)", r.Title, r.Snippet, r.URL)
}

// Search runs one query and renders results as "title: snippet (Source: url)"
// blocks.
func (d *DuckDuckGo) Search(ctx context.Context, query string) string {
	results, err := d.fetch(ctx, query, d.maxResults())
	if err != nil {
		d.logger.Printf("search %q failed: %v", query, err)
		return fmt.Sprintf("Search error: %v", err)
	}
	if len(results) == 0 {
		return "No search results found."
	}
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, r.String())
	}
	return strings.Join(lines, "\n\n")
}

// SearchPrices fans one product out over the fixed query variants,
// deduplicating by source URL across all variants combined.
func (d *DuckDuckGo) SearchPrices(ctx context.Context, product string, year int) string {
	product = strings.TrimSpace(product)
	if len(product) < 2 {
		return "Error: product name too short."
	}
	if year <= 0 {
		year = time.Now().Year()
	}

	var all []string
	seen := make(map[string]struct{})
	for _, variant := range priceQueryVariants {
		query := fmt.Sprintf("%s %s %d", product, variant, year)
		results, err := d.fetch(ctx, query, 10)
		if err != nil {
			d.logger.Printf("price query %q failed: %v", query, err)
			continue
		}
		for _, r := range results {
			if _, ok := seen[r.URL]; ok {
				continue
			}
			seen[r.URL] = struct{}{}
			all = append(all, r.String())
		}
	}
	if len(all) == 0 {
		return NoPriceResult(product)
	}
	d.logger.Printf("price search %q: %d unique results", product, len(all))
	return strings.Join(all, "\n\n")
}

func (d *DuckDuckGo) maxResults() int {
	if d.MaxResults <= 0 {
		return 15
	}
	return d.MaxResults
}

func (d *DuckDuckGo) fetch(ctx context.Context, query string, limit int) ([]result, error) {
	endpoint := d.Endpoint
	if endpoint == "" {
		endpoint = "https://html.duckduckgo.com/html/"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	client := d.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	var out []result
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		anchor := s.Find("a.result__a").First()
		href, _ := anchor.Attr("href")
		href = resolveHref(href)
		if href == "" {
			return true
		}
		title := strings.TrimSpace(anchor.Text())
		if title == "" {
			title = "No title"
		}
		snippet := strings.TrimSpace(s.Find(".result__snippet").Text())
		if snippet == "" {
			snippet = "No description"
		}
		out = append(out, result{Title: title, URL: href, Snippet: snippet})
		return len(out) < limit
	})
	return out, nil
}

// resolveHref unwraps DuckDuckGo's redirect links (…/l/?uddg=<target>)
// back to the target URL.
func resolveHref(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := parsed.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
