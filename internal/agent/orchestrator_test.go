package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

type stubScraper struct {
	result string
	calls  int
}

func (s *stubScraper) Scrape(ctx context.Context, url string) string {
	s.calls++
	return s.result
}

type stubSearcher struct {
	results      map[string]string
	priceResult  string
	searchCalls  []string
	priceCalls   []string
	defaultReply string
}

func (s *stubSearcher) Search(ctx context.Context, query string) string {
	s.searchCalls = append(s.searchCalls, query)
	if r, ok := s.results[query]; ok {
		return r
	}
	return s.defaultReply
}

func (s *stubSearcher) SearchPrices(ctx context.Context, product string, year int) string {
	s.priceCalls = append(s.priceCalls, fmt.Sprintf("%s|%d", product, year))
	return s.priceResult
}

type stubPublisher struct {
	err     error
	titles  []string
	content []string
}

func (p *stubPublisher) Publish(ctx context.Context, title, content string) error {
	p.titles = append(p.titles, title)
	p.content = append(p.content, content)
	return p.err
}

func fixedClock(o *Orchestrator) {
	o.clock = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
}

func TestExecuteUnknownTool(t *testing.T) {
	o := NewOrchestrator(&stubScraper{}, &stubSearcher{}, &stubPublisher{}, &stubPublisher{}, nil)
	res := o.Execute(context.Background(), ToolKind("quantum_probe"), nil, "")
	if res.Status != StatusError {
		t.Errorf("status = %q", res.Status)
	}
	if res.Text != "Error: Tool 'quantum_probe' not found." {
		t.Errorf("text = %q", res.Text)
	}
}

func TestWebResearchMissingURL(t *testing.T) {
	o := NewOrchestrator(&stubScraper{}, &stubSearcher{}, nil, nil, nil)
	res := o.Execute(context.Background(), ToolWebResearch, map[string]string{}, "")
	if res.Status != StatusError || !strings.Contains(res.Text, "No URL provided") {
		t.Errorf("result = %+v", res)
	}
}

func TestWebResearchRejectsPrivateURL(t *testing.T) {
	sc := &stubScraper{}
	o := NewOrchestrator(sc, &stubSearcher{}, nil, nil, nil)
	res := o.Execute(context.Background(), ToolWebResearch, map[string]string{"url": "http://169.254.169.254/latest/meta-data"}, "")
	if res.Status != StatusError || !strings.Contains(res.Text, "Invalid URL") {
		t.Errorf("result = %+v", res)
	}
	if sc.calls != 0 {
		t.Error("scraper must not be called for a rejected URL")
	}
}

func TestWebResearchBlockPageFallsBackToSearch(t *testing.T) {
	sc := &stubScraper{result: strings.Repeat("Please verify you are not a robot. ", 20)}
	se := &stubSearcher{defaultReply: strings.Repeat("Lambda Labs offers H100 instances at $4.75/hr. ", 15)}
	o := NewOrchestrator(sc, se, nil, nil, nil)

	res := o.Execute(context.Background(), ToolWebResearch, map[string]string{"url": "https://example.com/pricing"}, "")
	if len(se.searchCalls) != 1 {
		t.Fatalf("search calls = %v, want fallback search", se.searchCalls)
	}
	if !strings.Contains(se.searchCalls[0], "example.com") {
		t.Errorf("fallback query = %q", se.searchCalls[0])
	}
	if !strings.Contains(res.Text, "$4.75/hr") {
		t.Errorf("result text = %q", res.Text)
	}
}

func TestWebResearchShortResultFallsBack(t *testing.T) {
	sc := &stubScraper{result: "tiny page"}
	se := &stubSearcher{defaultReply: strings.Repeat("search result content ", 30)}
	o := NewOrchestrator(sc, se, nil, nil, nil)

	o.Execute(context.Background(), ToolWebResearch, map[string]string{"url": "https://example.com"}, "")
	if len(se.searchCalls) != 1 {
		t.Errorf("short scrape should trigger fallback, calls = %v", se.searchCalls)
	}
}

func TestWebResearchGoodScrapePassesThrough(t *testing.T) {
	body := strings.Repeat("The H100 SXM board ships with 80GB of HBM3 memory. ", 15)
	sc := &stubScraper{result: body}
	se := &stubSearcher{}
	o := NewOrchestrator(sc, se, nil, nil, nil)

	res := o.Execute(context.Background(), ToolWebResearch, map[string]string{"url": "https://example.com/specs"}, "")
	if res.Status != StatusOK || res.Text != body {
		t.Errorf("result = %+v", res)
	}
	if len(se.searchCalls) != 0 {
		t.Errorf("no fallback expected, calls = %v", se.searchCalls)
	}
}

func TestWebSearchPriceEscalationToSearchPrices(t *testing.T) {
	noPrices := "General commentary about data center accelerators without any figures to speak of."
	se := &stubSearcher{
		results:     map[string]string{"find H100 price": noPrices},
		priceResult: "NVIDIA H100: the going rate is $30,000 per card (Source: example.com)",
	}
	o := NewOrchestrator(&stubScraper{}, se, nil, nil, nil)
	fixedClock(o)

	res := o.Execute(context.Background(), ToolWebSearch, map[string]string{"query": "find H100 price"}, "")
	if len(se.priceCalls) != 1 {
		t.Fatalf("priceCalls = %v, want one escalation", se.priceCalls)
	}
	if se.priceCalls[0] != "find H100|2025" {
		t.Errorf("escalation used %q, want stripped product and clock year", se.priceCalls[0])
	}
	if !strings.HasPrefix(res.Text, noPrices) {
		t.Errorf("original result must come first: %q", res.Text)
	}
	if !strings.Contains(res.Text, "--- Additional Price Search Results ---") {
		t.Errorf("missing escalation banner: %q", res.Text)
	}
	if !strings.Contains(res.Text, "$30,000") {
		t.Errorf("escalation output not appended: %q", res.Text)
	}
}

func TestWebSearchEscalationSkippedWhenPriceFound(t *testing.T) {
	se := &stubSearcher{
		results: map[string]string{"NVIDIA H100 price 2025": "Lambda Labs lists the H100 at $4.75/hr on-demand."},
	}
	o := NewOrchestrator(&stubScraper{}, se, nil, nil, nil)

	o.Execute(context.Background(), ToolWebSearch, map[string]string{"query": "NVIDIA H100 price 2025"}, "")
	if len(se.priceCalls) != 0 || len(se.searchCalls) != 1 {
		t.Errorf("no escalation expected: search=%v prices=%v", se.searchCalls, se.priceCalls)
	}
}

func TestWebSearchRewritesWhenNoProductName(t *testing.T) {
	// Stripping price terms and years leaves nothing, so escalation falls
	// back to mechanical rewrites instead of SearchPrices.
	se := &stubSearcher{
		defaultReply: "nothing of note here, certainly no figures worth reporting today",
		results: map[string]string{
			"cost cost 2025": "Retail price: $1,299 at major outlets",
		},
	}
	o := NewOrchestrator(&stubScraper{}, se, nil, nil, nil)
	fixedClock(o)

	res := o.Execute(context.Background(), ToolWebSearch, map[string]string{"query": "price cost 2025"}, "")
	if len(se.priceCalls) != 0 {
		t.Fatalf("priceCalls = %v, want rewrites instead", se.priceCalls)
	}
	if !strings.Contains(res.Text, "--- Alternative Search: cost cost 2025 ---") {
		t.Errorf("missing rewrite banner: %q", res.Text)
	}
	if !strings.Contains(res.Text, "$1,299") {
		t.Errorf("rewrite output not appended: %q", res.Text)
	}
}

func TestWebSearchRewritesBoundedAtTwo(t *testing.T) {
	se := &stubSearcher{defaultReply: "absolutely nothing useful in this result set, sorry about that"}
	o := NewOrchestrator(&stubScraper{}, se, nil, nil, nil)
	fixedClock(o)

	o.Execute(context.Background(), ToolWebSearch, map[string]string{"query": "price cost 2025"}, "")
	// Initial query plus at most two rewrites.
	if len(se.searchCalls) > 3 {
		t.Errorf("search calls = %v, escalation must not exceed two rewrites", se.searchCalls)
	}
}

func TestPublishIntegrityCheckSubstitutesFallback(t *testing.T) {
	pub := &stubPublisher{}
	o := NewOrchestrator(&stubScraper{}, &stubSearcher{}, pub, nil, nil)
	fixedClock(o)

	fallback := strings.Repeat("H100 pricing intel gathered earlier. ", 4)
	res := o.Execute(context.Background(), ToolSaveToNotion,
		map[string]string{"title": "Report", "content": "placeholder text goes here and should never ship"}, fallback)
	if res.Status != StatusOK {
		t.Fatalf("result = %+v", res)
	}
	if len(pub.content) != 1 || pub.content[0] != fallback {
		t.Errorf("published %q, want fallback intel", pub.content)
	}
}

func TestPublishIntegrityCheckSentinelWithoutFallback(t *testing.T) {
	pub := &stubPublisher{}
	o := NewOrchestrator(&stubScraper{}, &stubSearcher{}, nil, pub, nil)
	fixedClock(o)

	o.Execute(context.Background(), ToolDispatchEmail, map[string]string{"content": "short"}, "")
	if len(pub.content) != 1 || pub.content[0] != failureSentinel {
		t.Errorf("published %q, want failure sentinel", pub.content)
	}
}

func TestPublishGoodContentPassesThrough(t *testing.T) {
	pub := &stubPublisher{}
	o := NewOrchestrator(&stubScraper{}, &stubSearcher{}, pub, nil, nil)
	fixedClock(o)

	content := "# Market Intelligence Report\n\nNVIDIA H100 retail hardware runs $30,000 per unit at major resellers."
	res := o.Execute(context.Background(), ToolSaveToNotion, map[string]string{"title": "T", "content": content}, "")
	if res.Text != "Notion OK" {
		t.Errorf("text = %q", res.Text)
	}
	if pub.content[0] != content {
		t.Errorf("published %q", pub.content[0])
	}
}

func TestPublishErrorMapsToErrorResult(t *testing.T) {
	pub := &stubPublisher{err: errors.New("api down")}
	o := NewOrchestrator(&stubScraper{}, &stubSearcher{}, pub, nil, nil)
	fixedClock(o)

	content := "A sufficiently long report body describing confirmed market pricing for several GPU products."
	res := o.Execute(context.Background(), ToolSaveToNotion, map[string]string{"title": "T", "content": content}, "")
	if res.Status != StatusError || !strings.Contains(res.Text, "Notion Error") {
		t.Errorf("result = %+v", res)
	}
}

func TestStripPriceTerms(t *testing.T) {
	cases := []struct{ in, want string }{
		{"NVIDIA H100 price 2025", "NVIDIA H100"},
		{"find H100 price", "find H100"},
		{"price cost 2025", ""},
		{"MI300X retail price buy", "MI300X"},
	}
	for _, c := range cases {
		if got := stripPriceTerms(c.in); got != c.want {
			t.Errorf("stripPriceTerms(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
