package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

const resendEndpoint = "https://api.resend.com/emails"

// Email dispatches reports through the Resend transactional API.
type Email struct {
	APIKey     string
	From       string
	To         string
	Endpoint   string
	HTTPClient *http.Client

	logger *log.Logger
}

func NewEmail(apiKey, from, to string, timeout time.Duration) *Email {
	return &Email{
		APIKey:     apiKey,
		From:       from,
		To:         to,
		Endpoint:   resendEndpoint,
		HTTPClient: &http.Client{Timeout: timeout},
		logger:     log.New(log.Writer(), "[EMAIL] ", log.LstdFlags),
	}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

func (e *Email) Publish(ctx context.Context, title, content string) error {
	if e.APIKey == "" || e.To == "" {
		return fmt.Errorf("email credentials not configured")
	}

	body, err := json.Marshal(resendRequest{
		From:    e.From,
		To:      []string{e.To},
		Subject: title,
		Text:    content,
	})
	if err != nil {
		return fmt.Errorf("marshaling email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("email request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("resend returned %d: %s", resp.StatusCode, string(detail))
	}

	e.logger.Printf("Dispatched %q to %s", title, e.To)
	return nil
}
