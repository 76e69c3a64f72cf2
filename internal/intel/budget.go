package intel

// Downstream LLM backends enforce a hard request-size ceiling and answer
// overflow with HTTP 413, so the pool budget is derived from that ceiling
// rather than guessed.
const (
	// MaxPayloadBytes is the conservative hard ceiling for one serialized
	// LLM request.
	MaxPayloadBytes = 28000

	// SafetyMarginBytes absorbs provider-side additions the arithmetic
	// cannot see.
	SafetyMarginBytes = 2000

	// AbsoluteMaxChars caps the budget regardless of computed headroom;
	// the naive arithmetic under-estimates real request overhead.
	AbsoluteMaxChars = 8000

	// byteCharRatio converts available bytes to characters, leaving room
	// for multi-byte UTF-8 sequences.
	byteCharRatio = 0.9
)

// ComputeBudget derives the maximum intel-pool size in characters from the
// serialized byte size of the non-variable request parts (system message,
// prompt template with empty content, JSON envelope for the chosen model).
// Monotonically non-increasing in reservedOverheadBytes; never above
// AbsoluteMaxChars.
func ComputeBudget(reservedOverheadBytes int) int {
	available := MaxPayloadBytes - reservedOverheadBytes - SafetyMarginBytes
	if available < 0 {
		available = 0
	}
	maxChars := int(float64(available) * byteCharRatio)
	if maxChars > AbsoluteMaxChars {
		maxChars = AbsoluteMaxChars
	}
	return maxChars
}
