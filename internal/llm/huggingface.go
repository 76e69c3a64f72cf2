package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/marketintel/mia/config"
)

// HuggingFace talks to the serverless inference API for text generation.
type HuggingFace struct {
	token  string
	url    string
	client *http.Client
}

// NewHuggingFace creates a HuggingFace client. The token is required.
func NewHuggingFace(cfg config.HuggingFaceConfig, timeout time.Duration) (*HuggingFace, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("huggingface token is required")
	}
	url := cfg.URL
	if url == "" {
		url = "https://api-inference.huggingface.co/models/" + cfg.Model
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HuggingFace{
		token:  cfg.Token,
		url:    url,
		client: &http.Client{Timeout: timeout},
	}, nil
}

type hfRequest struct {
	Inputs     string `json:"inputs"`
	Parameters struct {
		MaxNewTokens   int     `json:"max_new_tokens"`
		Temperature    float64 `json:"temperature"`
		ReturnFullText bool    `json:"return_full_text"`
	} `json:"parameters"`
}

func (h *HuggingFace) buildRequest(prompt string) hfRequest {
	var req hfRequest
	req.Inputs = prompt
	req.Parameters.MaxNewTokens = 2048
	req.Parameters.Temperature = 0.1
	req.Parameters.ReturnFullText = false
	return req
}

// RequestOverhead measures the serialized request for the given prompt.
func (h *HuggingFace) RequestOverhead(prompt string) int {
	body, err := json.Marshal(h.buildRequest(prompt))
	if err != nil {
		return len(prompt)
	}
	return len(body)
}

// Generate produces a completion for the prompt.
func (h *HuggingFace) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(h.buildRequest(prompt))
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.token)

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return "", ErrRateLimited
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		io.Copy(io.Discard, resp.Body)
		return "", ErrPayloadTooLarge
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("huggingface status %d", resp.StatusCode)
	}

	var out []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if len(out) == 0 || out[0].GeneratedText == "" {
		return "", fmt.Errorf("empty response from huggingface")
	}
	return out[0].GeneratedText, nil
}
