package exchange

import (
	"encoding/json"
	"fmt"
	"strconv"

	"assistanthub/internal/domain"
)

// Normalize converts one decoded webhook reply into assistant messages.
// Pure function: no I/O, no side effects.
//
// The reply may be a bare array, an object carrying a "data" array, or
// a single object; each item independently becomes one message. Items
// are never dropped, even when every field of them is empty.
func Normalize(data any) []domain.Message {
	items := itemList(data)
	msgs := make([]domain.Message, 0, len(items))
	for _, item := range items {
		msgs = append(msgs, buildMessage(item))
	}
	return msgs
}

// NormalizeRaw decodes a raw JSON body and normalizes it. A body that
// is not JSON is a failed exchange, not an empty one.
func NormalizeRaw(raw []byte) ([]domain.Message, error) {
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode response body: %w", err)
	}
	return Normalize(data), nil
}

func itemList(data any) []any {
	switch v := data.(type) {
	case []any:
		return v
	case map[string]any:
		if arr, ok := v["data"].([]any); ok {
			return arr
		}
	}
	return []any{data}
}

func buildMessage(item any) domain.Message {
	m := domain.Message{Role: domain.RoleAssistant}

	obj, ok := item.(map[string]any)
	if !ok {
		// Scalars and nulls render as a blank bubble.
		return m
	}

	if s, ok := textValue(obj["output"]); ok {
		m.Content = s
	} else if s, ok := textValue(obj["text"]); ok {
		m.Content = s
	}

	// Fixed order: image, images elements, then the base64-derived URI.
	if s, _ := obj["image"].(string); s != "" {
		m.Images = append(m.Images, s)
	}
	if arr, ok := obj["images"].([]any); ok {
		for _, e := range arr {
			if s, _ := e.(string); s != "" {
				m.Images = append(m.Images, s)
			}
		}
	}
	if s, _ := obj["b64_json"].(string); s != "" {
		m.Images = append(m.Images, "data:image/png;base64,"+s)
	}

	// Fixed order: links elements first, then url.
	if arr, ok := obj["links"].([]any); ok {
		for _, e := range arr {
			if s, _ := e.(string); s != "" {
				m.Links = append(m.Links, s)
			}
		}
	}
	if s, _ := obj["url"].(string); s != "" {
		m.Links = append(m.Links, s)
	}

	if arr, ok := obj["attachments"].([]any); ok {
		m.Attachments = rawElements(arr)
	}

	if v, ok := obj["sources"]; ok {
		m.Sources = rawSequence(v)
	} else if v, ok := obj["citations"]; ok {
		m.Sources = rawSequence(v)
	}

	return m
}

// textValue reports a field's display text along with its truthiness,
// so falsy values ("" , 0, false) fall through to the next candidate.
func textValue(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, t != ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), t != 0
	case bool:
		return strconv.FormatBool(t), t
	}
	return "", false
}

// rawSequence passes a sources/citations value through verbatim:
// arrays element by element, a single descriptor as a one-item list.
func rawSequence(v any) []json.RawMessage {
	if v == nil {
		return nil
	}
	if arr, ok := v.([]any); ok {
		return rawElements(arr)
	}
	return rawElements([]any{v})
}

func rawElements(arr []any) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(arr))
	for _, e := range arr {
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		out = append(out, json.RawMessage(data))
	}
	return out
}
