package provider

import (
	"encoding/json"

	"github.com/a2bot/relay/pkg/chat"
)

// completionRequest is the Chat Completions request body.
type completionRequest struct {
	Model       string      `json:"model"`
	Messages    []chat.Turn `json:"messages"`
	Temperature float64     `json:"temperature"`
}

// completionResponse is the subset of the Chat Completions response the
// relay consumes.
type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// modelListResponse is the /models response envelope. Data stays raw so
// a backend that returns something other than an array degrades to an
// empty catalog instead of a decode error.
type modelListResponse struct {
	Data json.RawMessage `json:"data"`
}

// ModelEntry is one catalog entry with its inferred capability tags.
// Entries are ephemeral: tags are re-derived on every listing.
type ModelEntry struct {
	ID           string
	Capabilities []string
}
