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

const (
	notionAPIVersion = "2022-06-28"
	notionEndpoint   = "https://api.notion.com/v1"

	// Notion rejects rich_text content above 2000 characters per block,
	// so paragraphs are split well under that limit.
	notionParagraphLimit = 1900
)

// Notion appends reports as blocks to a fixed parent page.
type Notion struct {
	Token      string
	PageID     string
	Endpoint   string
	HTTPClient *http.Client

	logger *log.Logger
}

func NewNotion(token, pageID string, timeout time.Duration) *Notion {
	return &Notion{
		Token:      token,
		PageID:     pageID,
		Endpoint:   notionEndpoint,
		HTTPClient: &http.Client{Timeout: timeout},
		logger:     log.New(log.Writer(), "[NOTION] ", log.LstdFlags),
	}
}

type notionText struct {
	Content string `json:"content"`
}

type notionRichText struct {
	Type string     `json:"type"`
	Text notionText `json:"text"`
}

type notionHeading struct {
	RichText []notionRichText `json:"rich_text"`
}

type notionParagraph struct {
	RichText []notionRichText `json:"rich_text"`
}

type notionBlock struct {
	Object    string           `json:"object"`
	Type      string           `json:"type"`
	Heading2  *notionHeading   `json:"heading_2,omitempty"`
	Paragraph *notionParagraph `json:"paragraph,omitempty"`
}

func richText(content string) []notionRichText {
	return []notionRichText{{Type: "text", Text: notionText{Content: content}}}
}

func (n *Notion) Publish(ctx context.Context, title, content string) error {
	if n.Token == "" || n.PageID == "" {
		return fmt.Errorf("notion credentials not configured")
	}

	blocks := []notionBlock{{
		Object:   "block",
		Type:     "heading_2",
		Heading2: &notionHeading{RichText: richText("📌 " + title)},
	}}
	for _, chunk := range splitParagraphs(content, notionParagraphLimit) {
		blocks = append(blocks, notionBlock{
			Object:    "block",
			Type:      "paragraph",
			Paragraph: &notionParagraph{RichText: richText(chunk)},
		})
	}

	body, err := json.Marshal(map[string]any{"children": blocks})
	if err != nil {
		return fmt.Errorf("marshaling notion blocks: %w", err)
	}

	url := fmt.Sprintf("%s/blocks/%s/children", n.Endpoint, n.PageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building notion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+n.Token)
	req.Header.Set("Notion-Version", notionAPIVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("notion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notion returned %d: %s", resp.StatusCode, string(detail))
	}

	n.logger.Printf("Published %d blocks to page %s", len(blocks), n.PageID)
	return nil
}

// splitParagraphs cuts content into pieces at most limit characters long,
// preferring newline boundaries so blocks stay readable.
func splitParagraphs(content string, limit int) []string {
	var parts []string
	for len(content) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if content[i-1] == '\n' {
				cut = i
				break
			}
		}
		parts = append(parts, content[:cut])
		content = content[cut:]
	}
	if content != "" {
		parts = append(parts, content)
	}
	return parts
}
