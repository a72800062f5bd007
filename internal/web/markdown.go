package web

import (
	"bytes"

	"github.com/yuin/goldmark"
)

// renderMarkdown converts assistant reply content to HTML for the UI.
// On conversion failure the raw text is dropped in favor of an empty
// string; the client falls back to plain-text rendering.
func renderMarkdown(content string) string {
	if content == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(content), &buf); err != nil {
		return ""
	}
	return buf.String()
}
