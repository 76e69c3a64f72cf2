package agent

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/marketintel/mia/internal/intel"
	"github.com/marketintel/mia/internal/scrape"
	"github.com/marketintel/mia/internal/search"
	"github.com/marketintel/mia/internal/telemetry"
)

// Scraper fetches a page as readable text. Errors are encoded in the
// returned string with an "Error:" prefix.
type Scraper interface {
	Scrape(ctx context.Context, url string) string
}

// Searcher is the web search capability, including the multi-variant
// price search used during escalation.
type Searcher interface {
	Search(ctx context.Context, query string) string
	SearchPrices(ctx context.Context, product string, year int) string
}

// Publisher delivers content to an external system.
type Publisher interface {
	Publish(ctx context.Context, title, content string) error
}

// blockMarkers flag scrape output that is a consent wall or bot challenge
// rather than article content.
var blockMarkers = []string{"cookie", "blocked", "verify", "robot"}

const minScrapeChars = 500

// integrityMarkers reject content that would publish a hallucinated or
// empty report downstream.
var integrityMarkers = []string{"placeholder", "insert here", "no data found", "error"}

const (
	minPublishChars = 50
	failureSentinel = "Mission failed: No meaningful data gathered."
)

var yearPattern = regexp.MustCompile(`\b20\d{2}\b`)

// Orchestrator dispatches plan steps to capabilities and normalizes every
// outcome into a result string. It never returns an error to the caller.
type Orchestrator struct {
	scraper Scraper
	search  Searcher
	notion  Publisher
	email   Publisher
	metrics *telemetry.Metrics
	clock   func() time.Time
	logger  *log.Logger
}

func NewOrchestrator(scraper Scraper, searcher Searcher, notion, email Publisher, metrics *telemetry.Metrics) *Orchestrator {
	return &Orchestrator{
		scraper: scraper,
		search:  searcher,
		notion:  notion,
		email:   email,
		metrics: metrics,
		clock:   time.Now,
		logger:  log.New(log.Writer(), "[ORCHESTRATOR] ", log.LstdFlags),
	}
}

// Execute runs one plan step. fallback is the best prior intelligence
// snapshot, substituted when publish content fails the integrity check.
func (o *Orchestrator) Execute(ctx context.Context, tool ToolKind, args map[string]string, fallback string) ToolResult {
	o.logger.Printf("Executing tool: %s", tool)

	var res ToolResult
	switch tool {
	case ToolWebResearch:
		res = o.webResearch(ctx, args)
	case ToolWebSearch:
		res = o.webSearch(ctx, args)
	case ToolSaveToNotion:
		res = o.publish(ctx, o.notion, "Notion", args, fallback)
	case ToolDispatchEmail:
		res = o.publish(ctx, o.email, "Email", args, fallback)
	default:
		res = ToolResult{Tool: tool, Status: StatusError, Text: fmt.Sprintf("Error: Tool '%s' not found.", tool)}
	}

	if o.metrics != nil {
		o.metrics.ToolExecutions.WithLabelValues(string(tool), res.Status).Inc()
	}
	return res
}

func (o *Orchestrator) webResearch(ctx context.Context, args map[string]string) ToolResult {
	url := strings.TrimSpace(firstArg(args, "url", "link"))
	if url == "" {
		return ToolResult{Tool: ToolWebResearch, Status: StatusError, Text: "Error: No URL provided for web_research"}
	}
	if err := scrape.ValidateURL(url); err != nil {
		o.logger.Printf("Invalid URL rejected: %s - %v", url, err)
		return ToolResult{Tool: ToolWebResearch, Status: StatusError, Text: fmt.Sprintf("Error: Invalid URL - %v", err)}
	}

	result := o.scraper.Scrape(ctx, url)
	if looksBlocked(result) {
		o.logger.Printf("Protection detected on %s, falling back to search", url)
		result = o.search.Search(ctx, "Latest info from "+url)
	}
	return normalize(ToolWebResearch, result)
}

func looksBlocked(result string) bool {
	if len(result) < minScrapeChars {
		return true
	}
	lower := strings.ToLower(result)
	for _, m := range blockMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func (o *Orchestrator) webSearch(ctx context.Context, args map[string]string) ToolResult {
	query := strings.TrimSpace(args["query"])
	if query == "" {
		query = "Market Intelligence Query"
	}

	result := o.search.Search(ctx, query)

	// Price queries that come back without a price signal escalate exactly
	// once: a multi-variant product search when a product name can be
	// isolated, otherwise up to two mechanical rewrites.
	if isPriceQuery(query) && !intel.HasPriceSignal(result) {
		o.logger.Printf("No price data in initial search, escalating for: %s", query)
		if extra := o.escalatePriceSearch(ctx, query); extra != "" {
			result = result + extra
		}
	}
	return normalize(ToolWebSearch, result)
}

func isPriceQuery(query string) bool {
	lower := strings.ToLower(query)
	for _, kw := range intel.PriceKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return strings.Contains(lower, "buy")
}

// stripPriceTerms removes price keywords and year tokens, hopefully leaving
// a bare product name.
func stripPriceTerms(query string) string {
	out := yearPattern.ReplaceAllString(query, "")
	for _, kw := range append(append([]string{}, intel.PriceKeywords...), "buy", "retail") {
		re := regexp.MustCompile(`(?i)\b` + kw + `\b`)
		out = re.ReplaceAllString(out, "")
	}
	return strings.Join(strings.Fields(out), " ")
}

func (o *Orchestrator) escalatePriceSearch(ctx context.Context, query string) string {
	product := stripPriceTerms(query)
	if len(product) > 3 {
		o.logger.Printf("Comprehensive price search for: %s", product)
		alt := o.search.SearchPrices(ctx, product, o.clock().Year())
		if alt != "" && alt != search.NoPriceResult(product) {
			return "\n\n--- Additional Price Search Results ---\n" + alt
		}
		return ""
	}

	rewrites := queryRewrites(query)
	for i, alt := range rewrites {
		if i >= 2 {
			break
		}
		altResult := o.search.Search(ctx, alt)
		if intel.HasPriceSignal(altResult) {
			o.logger.Printf("Price data found via rewrite: %s", alt)
			return fmt.Sprintf("\n\n--- Alternative Search: %s ---\n%s", alt, altResult)
		}
	}
	return ""
}

func queryRewrites(query string) []string {
	lower := strings.ToLower(query)
	var out []string
	if strings.Contains(lower, "price") {
		out = append(out, strings.ReplaceAll(query, "price", "cost"))
	} else {
		out = append(out, query+" cost")
	}
	if strings.Contains(lower, "cost") {
		out = append(out, strings.ReplaceAll(query, "cost", "pricing"))
	} else {
		out = append(out, query+" pricing")
	}
	out = append(out, query+" buy", query+" MSRP")
	return out
}

func (o *Orchestrator) publish(ctx context.Context, p Publisher, name string, args map[string]string, fallback string) ToolResult {
	tool := ToolSaveToNotion
	if name == "Email" {
		tool = ToolDispatchEmail
	}

	title := args["title"]
	if title == "" {
		title = fmt.Sprintf("Agent Report %s", o.clock().Format("2006-01-02"))
	}
	content := o.integrityCheck(args["content"], fallback)

	if err := p.Publish(ctx, title, content); err != nil {
		o.logger.Printf("%s publish failed: %v", name, err)
		return ToolResult{Tool: tool, Status: StatusError, Text: fmt.Sprintf("%s Error: %v", name, err)}
	}
	return ToolResult{Tool: tool, Status: StatusOK, Text: name + " OK"}
}

// integrityCheck rejects empty, too-short, or placeholder content and
// substitutes the best prior intelligence snapshot instead.
func (o *Orchestrator) integrityCheck(content, fallback string) string {
	lower := strings.ToLower(content)
	bad := len(content) < minPublishChars
	for _, m := range integrityMarkers {
		if strings.Contains(lower, m) {
			bad = true
			break
		}
	}
	if !bad {
		return content
	}
	o.logger.Printf("Data integrity check failed, substituting prior intel")
	if fallback != "" {
		return fallback
	}
	return failureSentinel
}

// normalize converts a capability's string protocol into a ToolResult.
func normalize(tool ToolKind, text string) ToolResult {
	status := StatusOK
	if strings.HasPrefix(text, "Error:") || strings.HasPrefix(text, "Search error:") || strings.HasPrefix(text, "Tool Failure:") {
		status = StatusError
	}
	return ToolResult{Tool: tool, Status: status, Text: text}
}

func firstArg(args map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := args[k]; v != "" {
			return v
		}
	}
	return ""
}
