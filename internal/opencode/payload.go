package opencode

import "fmt"

// maxTitleLen caps the session title derived from the prompt.
const maxTitleLen = 50

// PageContext describes the browser page a request originated from.
type PageContext struct {
	URL       string `json:"url,omitempty"`
	Title     string `json:"title,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

func (c PageContext) render() string {
	return fmt.Sprintf("\n\n[Browser Context]\nURL: %s\nTitle: %s\nUser Agent: %s",
		c.URL, c.Title, c.UserAgent)
}

// Request is one prompt to forward to the server, with optional browser
// context and agent routing.
type Request struct {
	Prompt  string
	Context *PageContext
	Agent   string
}

// TextPart is one text element of a message payload.
type TextPart struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

// MessagePayload is the body posted to /session/{id}/message.
type MessagePayload struct {
	Parts []TextPart `json:"parts"`
	Agent string     `json:"agent,omitempty"`
}

// buildPayload renders the prompt, the optional context block, and the
// optional agent label into the server's message shape.
func buildPayload(req Request) MessagePayload {
	parts := []TextPart{{Text: req.Prompt, Type: "text"}}

	if req.Context != nil && *req.Context != (PageContext{}) {
		parts = append(parts, TextPart{Text: req.Context.render(), Type: "text"})
	}

	return MessagePayload{Parts: parts, Agent: req.Agent}
}

// sessionTitle derives a short session title from the prompt, truncated to
// the first 50 characters.
func sessionTitle(prompt string) string {
	runes := []rune(prompt)
	if len(runes) <= maxTitleLen {
		return prompt
	}

	return string(runes[:maxTitleLen])
}
