package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/marketintel/mia/config"
	"github.com/marketintel/mia/internal/intel"
)

func newTestGroq(t *testing.T, handler http.HandlerFunc) (*Groq, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	g, err := NewGroq(config.GroqConfig{APIKey: "test-key", Model: "llama-3.1-8b-instant", BaseURL: srv.URL}, 0)
	if err != nil {
		t.Fatalf("NewGroq: %v", err)
	}
	return g, srv
}

func TestGroqGenerate(t *testing.T) {
	g, _ := newTestGroq(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		var req groqRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": "# Report"}}},
		})
	})

	got, err := g.Generate(context.Background(), "analyze this")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "# Report" {
		t.Fatalf("Generate = %q", got)
	}
}

func TestGroqPayloadTooLargePrecheck(t *testing.T) {
	g, _ := newTestGroq(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("oversized payload must not reach the wire")
	})
	_, err := g.Generate(context.Background(), strings.Repeat("x", intel.MaxPayloadBytes+1))
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestGroqRetriesRateLimit(t *testing.T) {
	attempts := 0
	g, _ := newTestGroq(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": "ok"}}},
		})
	})

	got, err := g.Generate(context.Background(), "q")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "ok" || attempts != 3 {
		t.Fatalf("got %q after %d attempts", got, attempts)
	}
}

func TestGroqRequestOverheadGrowsWithPrompt(t *testing.T) {
	g, err := NewGroq(config.GroqConfig{APIKey: "k"}, 0)
	if err != nil {
		t.Fatalf("NewGroq: %v", err)
	}
	small := g.RequestOverhead("")
	big := g.RequestOverhead(strings.Repeat("a", 1000))
	if big-small != 1000 {
		t.Fatalf("overhead should grow by prompt length: %d vs %d", small, big)
	}
}

func TestNewRejectsMissingCredentials(t *testing.T) {
	if _, err := New(config.LLMConfig{Provider: "groq"}); err == nil {
		t.Fatalf("expected construction failure without api key")
	}
	if _, err := New(config.LLMConfig{Provider: "nope"}); err == nil {
		t.Fatalf("expected construction failure for unknown provider")
	}
}
