package scrape

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	readability "github.com/go-shiori/go-readability"
)

// Scraper fetches a URL and returns extracted page text. Implementations
// never return an error: failures are encoded in the returned text with an
// "Error:" prefix so mission steps always have a string to merge.
type Scraper interface {
	Scrape(ctx context.Context, url string) string
}

// Chromedp renders pages in headless Chrome and extracts readable content.
type Chromedp struct {
	Timeout  time.Duration
	MaxChars int
	// UserAgent presented to sites; a desktop browser string avoids the
	// cheapest bot checks.
	UserAgent string
}

const (
	defaultTimeout  = 30 * time.Second
	defaultMaxChars = 20000
	defaultUA       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

var blankLines = regexp.MustCompile(`\n\s*\n`)

// NewChromedp builds a scraper with sane defaults for zero values.
func NewChromedp(timeout time.Duration, maxChars int) *Chromedp {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	return &Chromedp{Timeout: timeout, MaxChars: maxChars, UserAgent: defaultUA}
}

// Scrape fetches the page and returns its readable text, bounded by Timeout.
func (c *Chromedp) Scrape(ctx context.Context, rawURL string) string {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	html, err := c.fetchHTML(ctx, rawURL)
	if err != nil {
		return fmt.Sprintf("Error: scrape of %s failed: %v", rawURL, err)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		parsed = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(html), parsed)
	if err != nil {
		return fmt.Sprintf("Error: content extraction for %s failed: %v", rawURL, err)
	}
	text := strings.TrimSpace(blankLines.ReplaceAllString(article.TextContent, "\n"))
	if len(text) > c.MaxChars {
		text = text[:c.MaxChars]
	}
	if len(text) < 100 {
		return fmt.Sprintf("Error: page loaded but very little content extracted (%d chars)", len(text))
	}
	return text
}

func (c *Chromedp) fetchHTML(ctx context.Context, url string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.UserAgent(c.UserAgent),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}
