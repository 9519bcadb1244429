package api

import (
	"golang.org/x/exp/utf8string"
)

const (
	ParseModeHTML       = "HTML"
	ParseModeMarkdownV2 = "MarkdownV2"

	// MaxTextLength is the maximum message length in characters accepted by the remote.
	MaxTextLength = 4096
)

// Params are additional call parameters copied verbatim into the request body.
// A nil value removes the parameter, including defaults set by the client.
type Params map[string]interface{}

func (p Params) apply(body map[string]interface{}) map[string]interface{} {
	for key, value := range p {
		if value == nil {
			delete(body, key)
			continue
		}

		body[key] = value
	}

	return body
}

// Reply is a message sent back in response to an update.
type Reply struct {
	Text string
	// ParseMode defaults to HTML.
	ParseMode string
	Params    Params
}

// Text is a shortcut for a plain Reply.
func Text(text string) *Reply {
	return &Reply{Text: text}
}

func clamp(text string) string {
	value := utf8string.NewString(text)
	if value.RuneCount() <= MaxTextLength {
		return text
	}

	return value.Slice(0, MaxTextLength)
}
