package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Assistant is a named profile pointing at a webhook endpoint.
// The exchange path only ever reads ID and WebhookURL.
type Assistant struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	WebhookURL string    `json:"webhookUrl"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Validate checks the fields the configuration surface must enforce.
func (a Assistant) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("assistant name is required")
	}
	return ValidateWebhookURL(a.WebhookURL)
}

// ValidateWebhookURL accepts absolute http/https URLs only.
func ValidateWebhookURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("webhook URL must be absolute http or https")
	}
	return nil
}
