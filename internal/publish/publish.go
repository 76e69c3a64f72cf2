package publish

import "context"

// Publisher delivers synthesized content to an external system. A nil error
// means the content is durably accepted downstream.
type Publisher interface {
	Publish(ctx context.Context, title, content string) error
}
