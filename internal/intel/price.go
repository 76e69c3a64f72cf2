package intel

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Price detection is heuristic. It steers effort allocation (query broadening,
// truncation priority), not final report correctness, so false positives and
// negatives are tolerated.

var currencyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[$€£][\d,]+`),
	regexp.MustCompile(`(?i)[\d,]+\.?\d*\s*(usd|eur|gbp|dollars?|euros?|pounds?)`),
	regexp.MustCompile(`(?i)(price|cost|msrp|retail)[:\s]+[$€£]?[\d,]+`),
	regexp.MustCompile(`[\d,]+[$€£]`),
}

var negativePhrases = []string{
	"no price found",
	"price not available",
	"pricing unavailable",
	"no confirmed pricing",
	"price information not found",
	"no pricing data",
}

// PriceKeywords are the labels that mark a chunk of text as price-related even
// when no currency amount is present.
var PriceKeywords = []string{"price", "cost", "pricing", "msrp", "retail"}

// ProductKeywords is the fixed vocabulary used to spot product mentions when
// summarising or prioritising intel segments.
var ProductKeywords = []string{"h100", "h200", "mi300", "blackwell", "rubin", "nvidia", "amd", "gpu"}

var numberPattern = regexp.MustCompile(`[\d,]+\.?\d*`)

// minimumPriceValue excludes page numbers and footnote markers from the
// numeric fallback. A floor, not a tuned threshold.
const minimumPriceValue = 10

// HasPriceSignal reports whether text likely contains usable price data.
// Explicit negation ("no price found") wins over any currency symbol that
// appears elsewhere in the text.
func HasPriceSignal(text string) bool {
	if len(text) < 20 {
		return false
	}
	lower := strings.ToLower(text)

	for _, phrase := range negativePhrases {
		if strings.Contains(lower, phrase) {
			return false
		}
	}
	for _, re := range currencyPatterns {
		if re.MatchString(text) {
			return true
		}
	}

	hasKeyword := false
	for _, kw := range PriceKeywords {
		if strings.Contains(lower, kw) {
			hasKeyword = true
			break
		}
	}
	if !hasKeyword {
		return false
	}
	for _, tok := range numberPattern.FindAllString(text, -1) {
		n, err := strconv.ParseFloat(strings.ReplaceAll(tok, ",", ""), 64)
		if err != nil {
			continue
		}
		if n >= minimumPriceValue {
			return true
		}
	}
	return false
}

var (
	amountPattern = regexp.MustCompile(`[$€£][\d,]+(?:\.\d+)?`)
	sourcePattern = regexp.MustCompile(`\(Source:\s*([^)]+)\)`)
)

// ExtractPriceSummary collapses an intel pool into one compact line per unique
// (product, price) pair, in the form "<product>: <price> | <source>". Returns
// an empty string when no currency amounts are present, leaving the caller to
// fall back to plain truncation.
func ExtractPriceSummary(pool string) string {
	if pool == "" {
		return ""
	}
	var entries []string
	seen := make(map[string]struct{})

	for _, section := range strings.Split(pool, Separator) {
		if strings.TrimSpace(section) == "" {
			continue
		}
		product := extractProductName(section)

		source := "Unknown"
		if m := sourcePattern.FindStringSubmatch(section); m != nil {
			source = strings.TrimSpace(m[1])
		}
		for _, price := range amountPattern.FindAllString(section, -1) {
			label := product
			if label == "" {
				label = "Product"
			}
			key := label + ":" + price
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			entries = append(entries, fmt.Sprintf("%s: %s | %s", label, price, source))
		}
	}
	return strings.Join(entries, "\n")
}

// extractProductName finds the best-effort product label for a segment by
// matching the fixed product vocabulary with one word of context either side.
func extractProductName(section string) string {
	lower := strings.ToLower(section)
	for _, kw := range ProductKeywords {
		if !strings.Contains(lower, kw) {
			continue
		}
		re := regexp.MustCompile(`(?i)(\w+\s+)?` + regexp.QuoteMeta(kw) + `(\s+\w+)?`)
		if m := re.FindString(section); m != "" {
			return strings.TrimSpace(m)
		}
	}
	// Fall back to the segment's first line when it mentions a product.
	lines := strings.SplitN(section, "\n", 2)
	if len(lines) > 0 {
		first := lines[0]
		firstLower := strings.ToLower(first)
		for _, kw := range ProductKeywords {
			if strings.Contains(firstLower, kw) {
				name := strings.TrimSpace(strings.SplitN(first, ":", 2)[0])
				if len(name) > 50 {
					name = name[:50]
				}
				return name
			}
		}
	}
	return ""
}

// hasPricePattern reports whether a segment carries a currency amount or a
// price label. Used for truncation priority, deliberately looser than
// HasPriceSignal: a "price:" label alone is enough to protect a segment.
func hasPricePattern(segment string) bool {
	for _, re := range currencyPatterns[:1] {
		if re.MatchString(segment) {
			return true
		}
	}
	if amountPattern.MatchString(segment) {
		return true
	}
	lower := strings.ToLower(segment)
	for _, kw := range PriceKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// hasProductKeyword reports whether a segment mentions a known product.
func hasProductKeyword(segment string) bool {
	lower := strings.ToLower(segment)
	for _, kw := range ProductKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
