package domain

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a referenced assistant does not exist.
var ErrNotFound = errors.New("not found")

// AssistantStore handles persistent storage of assistant profiles.
type AssistantStore interface {
	CreateAssistant(ctx context.Context, a Assistant) error
	GetAssistant(ctx context.Context, id string) (*Assistant, error)
	UpdateAssistant(ctx context.Context, a Assistant) error
	DeleteAssistant(ctx context.Context, id string) error
	ListAssistants(ctx context.Context) ([]Assistant, error)
}

// ConversationStore is the durable per-assistant message log.
// Load never fails the caller into the UI: missing or unreadable data
// degrades to an empty log.
type ConversationStore interface {
	Load(ctx context.Context, assistantID string) ([]Message, error)
	Save(ctx context.Context, assistantID string, msgs []Message) error
	Append(ctx context.Context, assistantID string, msgs ...Message) error
	Clear(ctx context.Context, assistantID string) error
}

// Store is the full persistence surface backed by one database.
type Store interface {
	AssistantStore
	ConversationStore
	Close() error
}
