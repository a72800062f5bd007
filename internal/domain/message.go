package domain

import "encoding/json"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn in a conversation: either typed by the user or
// built from a webhook reply. All fields except Role are optional.
type Message struct {
	Role        string            `json:"role"` // user | assistant
	Content     string            `json:"content"`
	Images      []string          `json:"images,omitempty"`      // URLs or data URIs
	Links       []string          `json:"links,omitempty"`
	Attachments []json.RawMessage `json:"attachments,omitempty"` // opaque, passed through from the webhook
	Sources     []json.RawMessage `json:"sources,omitempty"`     // citation descriptors, passed through verbatim
}

// UserMessage builds a user-role message carrying only text.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantText builds an assistant-role message carrying only text.
func AssistantText(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}
