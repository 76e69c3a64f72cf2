package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/marketintel/mia/config"
)

// Client is the uniform language-model capability the mission core consumes.
// Implementations own their retry/backoff; a returned error is final for that
// call.
type Client interface {
	// Generate produces a completion for the prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// RequestOverhead returns the serialized byte size of a request carrying
	// the given prompt, used to derive the intel-pool budget before synthesis.
	RequestOverhead(prompt string) int
}

// Distinguishable failure classes. Callers treat both as fatal for the single
// call; the payload class additionally drives pre-send size checks.
var (
	ErrRateLimited     = errors.New("llm: rate limited")
	ErrPayloadTooLarge = errors.New("llm: payload too large")
)

// New constructs the process-wide client for the configured provider.
// Missing credentials fail here, at construction, never mid-mission.
func New(cfg config.LLMConfig) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "gemini":
		return NewGemini(cfg.Gemini, cfg.RequestTimeout)
	case "groq":
		return NewGroq(cfg.Groq, cfg.RequestTimeout)
	case "huggingface", "hf":
		return NewHuggingFace(cfg.HuggingFace, cfg.RequestTimeout)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
