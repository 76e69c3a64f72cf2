package intel

import "strings"

// Separator delimits tool results inside the pool. Truncation and the price
// summary both split on it, so it must stay in sync with Append.
const Separator = "\n---\n"

// truncationMarker is appended to a partially included segment.
const truncationMarker = "... [truncated]"

// minPartialChars is the smallest tail worth keeping: below this a partial
// segment is dropped instead of truncated.
const minPartialChars = 100

// Pool accumulates gathered tool output for one mission. Append-only during
// gathering; size is only enforced by a single ReduceToBudget pass afterwards,
// so the pool may legitimately exceed the budget while gathering.
type Pool struct {
	b strings.Builder
}

// Append merges one tool result into the pool behind the separator.
func (p *Pool) Append(text string) {
	p.b.WriteString(Separator)
	p.b.WriteString(text)
	p.b.WriteString("\n")
}

// Len returns the rendered pool size in bytes.
func (p *Pool) Len() int { return p.b.Len() }

// String returns the rendered pool.
func (p *Pool) String() string { return p.b.String() }

// ReduceToBudget returns the pool contents reduced to at most maxChars.
//
// Two tiers: when the pool is more than 1.5x over budget it first collapses to
// a compact price summary; priority truncation then applies to whatever
// remains over budget. Price-bearing segments are never evicted while any
// non-price segment survives.
func (p *Pool) ReduceToBudget(maxChars int) string {
	return ReduceToBudget(p.String(), maxChars)
}

// ReduceToBudget is the pure form of Pool.ReduceToBudget, usable on any
// separator-delimited text.
func ReduceToBudget(pool string, maxChars int) string {
	if maxChars < 0 {
		maxChars = 0
	}
	if len(pool) <= maxChars {
		return pool
	}
	if len(pool) > maxChars*3/2 {
		if summary := ExtractPriceSummary(pool); summary != "" {
			if len(summary) <= maxChars {
				return summary
			}
			return truncateByPriority(summary, maxChars)
		}
	}
	return truncateByPriority(pool, maxChars)
}

// truncateByPriority rebuilds the text from whole segments in priority order
// (price > product mention > other, each tier keeping original segment order)
// until the budget is exhausted. At most one partial segment is included, and
// only when a meaningful tail fits; nothing of any priority is added after
// that.
func truncateByPriority(text string, maxChars int) string {
	segments := splitSegments(text)

	var high, medium, low []string
	for _, seg := range segments {
		switch {
		case hasPricePattern(seg):
			high = append(high, seg)
		case hasProductKeyword(seg):
			medium = append(medium, seg)
		default:
			low = append(low, seg)
		}
	}

	var kept []string
	size := 0
	for _, tier := range [][]string{high, medium, low} {
		for _, seg := range tier {
			sep := 0
			if len(kept) > 0 {
				sep = len(Separator)
			}
			if size+sep+len(seg) <= maxChars {
				kept = append(kept, seg)
				size += sep + len(seg)
				continue
			}
			room := maxChars - size - sep
			if room >= minPartialChars {
				cut := room - len(truncationMarker)
				kept = append(kept, seg[:cut]+truncationMarker)
			}
			return strings.Join(kept, Separator)
		}
	}
	return strings.Join(kept, Separator)
}

// splitSegments splits separator-delimited text, dropping empty pieces that
// the leading separator produces.
func splitSegments(text string) []string {
	var out []string
	for _, seg := range strings.Split(text, Separator) {
		if strings.TrimSpace(seg) == "" {
			continue
		}
		out = append(out, seg)
	}
	return out
}
