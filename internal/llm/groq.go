package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/marketintel/mia/config"
	"github.com/marketintel/mia/internal/intel"
)

const groqSystemMessage = "You are a professional market analyst. Output in Markdown."

const groqMaxRetries = 3

// Groq talks to the Groq OpenAI-compatible chat completions endpoint. The
// backend rejects requests whose serialized payload exceeds a hard ceiling
// with HTTP 413, so the payload is measured before sending.
type Groq struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	logger  *log.Logger
}

// NewGroq creates a Groq client. The API key is required.
func NewGroq(cfg config.GroqConfig, timeout time.Duration) (*Groq, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("groq api key is required")
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.groq.com/openai/v1"
	}
	return &Groq{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  log.New(log.Writer(), "[GROQ] ", log.LstdFlags),
	}, nil
}

type groqRequest struct {
	Model       string        `json:"model"`
	Messages    []groqMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type groqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (g *Groq) buildRequest(prompt string) groqRequest {
	return groqRequest{
		Model: g.model,
		Messages: []groqMessage{
			{Role: "system", Content: groqSystemMessage},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.1,
		MaxTokens:   2048,
	}
}

// RequestOverhead measures the serialized request for the given prompt.
func (g *Groq) RequestOverhead(prompt string) int {
	body, err := json.Marshal(g.buildRequest(prompt))
	if err != nil {
		return len(prompt)
	}
	return len(body)
}

// Generate sends the prompt, retrying rate limits with escalating waits.
func (g *Groq) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(g.buildRequest(prompt))
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	if len(body) > intel.MaxPayloadBytes {
		return "", fmt.Errorf("%w: %d bytes (limit %d)", ErrPayloadTooLarge, len(body), intel.MaxPayloadBytes)
	}

	var lastErr error
	for attempt := 1; attempt <= groqMaxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+g.apiKey)

		resp, err := g.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("do: %w", err)
			if ctx.Err() != nil {
				return "", lastErr
			}
			continue
		}
		text, err := g.decode(resp)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if err == ErrRateLimited {
			wait := time.Duration(attempt) * 2 * time.Second
			g.logger.Printf("rate limited, waiting %v (attempt %d/%d)", wait, attempt, groqMaxRetries)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			continue
		}
		return "", err
	}
	return "", fmt.Errorf("groq: retries exhausted: %w", lastErr)
}

func (g *Groq) decode(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return "", ErrRateLimited
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		io.Copy(io.Discard, resp.Body)
		return "", ErrPayloadTooLarge
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("groq status %d", resp.StatusCode)
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("empty response from groq")
	}
	return out.Choices[0].Message.Content, nil
}
