package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/marketintel/mia/config"
)

// Gemini wraps the google genai SDK for both generation and embeddings.
type Gemini struct {
	client     *genai.Client
	model      string
	embedModel string
	timeout    time.Duration
}

// NewGemini creates a Gemini client. The API key is required.
func NewGemini(cfg config.GeminiConfig, timeout time.Duration) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client init: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	embedModel := cfg.EmbedModel
	if embedModel == "" {
		embedModel = "text-embedding-004"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Gemini{client: client, model: model, embedModel: embedModel, timeout: timeout}, nil
}

// Generate produces a completion for the prompt.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		if isRateLimit(err) {
			return "", fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: empty response")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

// RequestOverhead estimates the serialized request size. Gemini has no hard
// payload ceiling at our scale, but the pool budget still wants the figure.
func (g *Gemini) RequestOverhead(prompt string) int {
	body, err := json.Marshal(map[string]any{
		"model":    g.model,
		"contents": []map[string]string{{"role": "user", "text": prompt}},
	})
	if err != nil {
		return len(prompt)
	}
	return len(body)
}

// Embed generates vectors for the inputs with the configured embedding model.
func (g *Gemini) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
	}
	resp, err := g.client.Models.EmbedContent(ctx, g.embedModel, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini embed: got %d vectors for %d inputs", len(resp.Embeddings), len(texts))
	}
	vecs := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		vecs[i] = e.Values
	}
	return vecs, nil
}

func isRateLimit(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "resource_exhausted") || strings.Contains(msg, "quota")
}
