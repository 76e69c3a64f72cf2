package intel

import (
	"strings"
	"testing"
)

func TestReduceToBudgetUnderBudgetUnchanged(t *testing.T) {
	var p Pool
	p.Append("NVIDIA H100 spotted at $30,000")
	p.Append("background commentary on supply chains")

	got := p.ReduceToBudget(p.Len() + 100)
	if got != p.String() {
		t.Fatalf("expected pool unchanged when under budget")
	}
}

func TestReduceToBudgetHardLimit(t *testing.T) {
	var p Pool
	for i := 0; i < 20; i++ {
		p.Append(strings.Repeat("filler text without any signal ", 40))
	}
	for _, max := range []int{0, 50, 100, 500, 4000} {
		got := p.ReduceToBudget(max)
		if len(got) > max {
			t.Fatalf("budget %d exceeded: got %d chars", max, len(got))
		}
	}
}

func TestReduceToBudgetPriceSegmentsSurvive(t *testing.T) {
	seg1 := "cloud listing offers the part at $5.50/hr on demand right now"
	seg2 := strings.Repeat("neutral commentary with no figures ", 3)
	seg3 := "retailer quote came in at $40,000 for a single unit delivered"

	var p Pool
	p.Append(seg1)
	p.Append(seg2)
	p.Append(seg3)

	// Fits both price segments, leaves under 100 chars for the filler, and
	// stays under the 1.5x threshold that would collapse to a summary.
	const max = 180
	got := p.ReduceToBudget(max)

	if !strings.Contains(got, "$5.50/hr") || !strings.Contains(got, "$40,000") {
		t.Fatalf("price segments must survive truncation: %q", got)
	}
	if strings.Contains(got, "neutral commentary") {
		t.Fatalf("non-price segment kept ahead of budget: %q", got)
	}
	if strings.Index(got, "$5.50/hr") > strings.Index(got, "$40,000") {
		t.Fatalf("relative order of price segments not preserved")
	}
}

func TestReduceToBudgetCollapsesToSummaryWhenFarOver(t *testing.T) {
	var p Pool
	p.Append("NVIDIA H100 listed at $30,000 (Source: a.example.com)" + strings.Repeat(" padding", 100))
	p.Append("AMD MI300 seen for $12,000 (Source: b.example.com)" + strings.Repeat(" padding", 100))

	max := p.Len() / 4 // far over budget triggers the summary tier
	got := p.ReduceToBudget(max)
	if len(got) > max {
		t.Fatalf("summary still over budget: %d > %d", len(got), max)
	}
	if !strings.Contains(got, "$30,000") || !strings.Contains(got, "$12,000") {
		t.Fatalf("summary lost price entries: %q", got)
	}
	if strings.Contains(got, "padding") {
		t.Fatalf("expected compact summary, got raw pool text")
	}
}

func TestReduceToBudgetPartialSegmentOnlyWhenRoomRemains(t *testing.T) {
	seg := strings.Repeat("x", 400)
	var p Pool
	p.Append(seg)

	// Enough room for a meaningful partial segment.
	got := ReduceToBudget(p.String(), 200)
	if !strings.HasSuffix(got, "... [truncated]") {
		t.Fatalf("expected truncation marker, got %q", got)
	}
	if len(got) > 200 {
		t.Fatalf("partial segment exceeds budget: %d", len(got))
	}

	// Under 100 chars of room the partial is dropped entirely.
	if got := ReduceToBudget(p.String(), 60); got != "" {
		t.Fatalf("expected empty result for tiny budget, got %q", got)
	}
}
