package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"assistanthub/internal/domain"
	"assistanthub/internal/metrics"
)

const (
	// DefaultTimeout is how long one webhook call may take before it
	// is aborted and surfaced as an error bubble.
	DefaultTimeout = 20 * time.Second

	// FallbackContent is appended when a reply normalizes to nothing.
	FallbackContent = "No content in webhook response."

	maxResponseBytes = 8 << 20
)

// Engine orchestrates one request/response cycle per user-submitted
// message against a specific assistant's endpoint. Sends to the same
// assistant are serialized so concurrent exchanges cannot overwrite
// each other's log writes.
type Engine struct {
	store   domain.ConversationStore
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type EngineConfig struct {
	Store   domain.ConversationStore
	Timeout time.Duration // defaults to DefaultTimeout
	Client  *http.Client  // defaults to a pooled client
	Logger  *slog.Logger
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Client == nil {
		cfg.Client = newHTTPClient()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		store:   cfg.Store,
		client:  cfg.Client,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
		locks:   make(map[string]*sync.Mutex),
	}
}

// webhookRequest is the outbound wire shape.
type webhookRequest struct {
	Message string           `json:"message"`
	History []domain.Message `json:"history"`
}

// Send runs one exchange and returns every message it appended, in
// order (the user's turn first). An empty or whitespace-only text, or
// an assistant without a webhook URL, is a no-op: nothing appended,
// no request issued.
//
// The user's message is always recorded, even when the webhook call
// fails; every failure resolves to exactly one "Error: ..." bubble.
func (e *Engine) Send(ctx context.Context, assistant domain.Assistant, userText string) ([]domain.Message, error) {
	text := strings.TrimSpace(userText)
	if text == "" || assistant.WebhookURL == "" {
		return nil, nil
	}

	lock := e.lockFor(assistant.ID)
	lock.Lock()
	defer lock.Unlock()

	// History snapshot before the user turn is appended: this is what
	// goes on the wire.
	history, err := e.store.Load(ctx, assistant.ID)
	if err != nil {
		e.logger.Warn("cannot load history, sending without it", "assistant", assistant.ID, "err", err)
		history = nil
	}
	if history == nil {
		history = []domain.Message{}
	}

	userMsg := domain.UserMessage(text)
	if err := e.store.Append(ctx, assistant.ID, userMsg); err != nil {
		e.logger.Warn("cannot persist user message", "assistant", assistant.ID, "err", err)
	}

	start := time.Now()
	replies := e.exchange(ctx, assistant, text, history)
	metrics.ExchangeLatency.Observe(time.Since(start).Seconds())
	metrics.ExchangesTotal.Inc()

	if err := e.store.Append(ctx, assistant.ID, replies...); err != nil {
		e.logger.Warn("cannot persist assistant reply", "assistant", assistant.ID, "err", err)
	}

	return append([]domain.Message{userMsg}, replies...), nil
}

// exchange performs the outbound call and maps every terminal outcome
// to at least one assistant message. Transport and body-parse failures
// both resolve to one "Error: ..." bubble; the no-content fallback is
// reserved for bodies that parse but normalize to nothing.
func (e *Engine) exchange(ctx context.Context, assistant domain.Assistant, text string, history []domain.Message) []domain.Message {
	body, err := e.call(ctx, assistant.WebhookURL, text, history)
	if err == nil {
		var built []domain.Message
		built, err = NormalizeRaw(body)
		if err == nil {
			if len(built) == 0 {
				return []domain.Message{domain.AssistantText(FallbackContent)}
			}
			e.logger.Info("webhook reply normalized",
				"assistant", assistant.ID,
				"messages", len(built),
			)
			return built
		}
	}

	metrics.ExchangeFailures.Inc()
	e.logger.Warn("webhook exchange failed",
		"assistant", assistant.ID,
		"url", assistant.WebhookURL,
		"err", err,
	)
	return []domain.Message{domain.AssistantText("Error: " + err.Error())}
}

// call issues the single outbound POST and returns the raw reply body.
func (e *Engine) call(ctx context.Context, url, text string, history []domain.Message) ([]byte, error) {
	payload, err := json.Marshal(webhookRequest{Message: text, History: history})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("invalid webhook URL: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("request timed out after %s", e.timeout)
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("request failed: %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return raw, nil
}

func (e *Engine) lockFor(assistantID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[assistantID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[assistantID] = l
	}
	return l
}
