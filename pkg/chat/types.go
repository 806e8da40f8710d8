// Package chat defines the conversation types shared across the relay:
// turns, content parts, and the persisted history codec. Content is a
// tagged variant (plain string or ordered part list) matching the
// Chat Completions wire format, and decoding validates shapes so that
// malformed documents never propagate past the storage boundary.
package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PartType identifies the kind of a content part.
type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image_url"
)

// ContentPart is one atomic unit of a multimodal turn: either text or an
// image reference. Image parts carry a self-contained data: URI; raw remote
// URLs are resolved before a part is ever constructed.
type ContentPart struct {
	Type     PartType
	Text     string
	ImageURL string
}

// TextPart builds a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: PartText, Text: text}
}

// ImagePart builds an image content part from a data: URI.
func ImagePart(url string) ContentPart {
	return ContentPart{Type: PartImage, ImageURL: url}
}

// MarshalJSON serializes the part to the provider wire format:
// {"type":"text","text":...} or {"type":"image_url","image_url":{"url":...}}.
func (p ContentPart) MarshalJSON() ([]byte, error) {
	switch p.Type {
	case PartText:
		type wire struct {
			Type PartType `json:"type"`
			Text string   `json:"text"`
		}
		return json.Marshal(wire{Type: p.Type, Text: p.Text})
	case PartImage:
		type wireURL struct {
			URL string `json:"url"`
		}
		type wire struct {
			Type     PartType `json:"type"`
			ImageURL wireURL  `json:"image_url"`
		}
		return json.Marshal(wire{Type: p.Type, ImageURL: wireURL{URL: p.ImageURL}})
	default:
		return nil, fmt.Errorf("unknown content part type %q", p.Type)
	}
}

// UnmarshalJSON deserializes a part, rejecting unknown types and image
// parts without a URL.
func (p *ContentPart) UnmarshalJSON(data []byte) error {
	var w struct {
		Type     PartType `json:"type"`
		Text     string   `json:"text"`
		ImageURL *struct {
			URL string `json:"url"`
		} `json:"image_url"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	switch w.Type {
	case PartText:
		p.Type = PartText
		p.Text = w.Text
		p.ImageURL = ""
	case PartImage:
		if w.ImageURL == nil || w.ImageURL.URL == "" {
			return fmt.Errorf("image part has no url")
		}
		p.Type = PartImage
		p.Text = ""
		p.ImageURL = w.ImageURL.URL
	default:
		return fmt.Errorf("unknown content part type %q", w.Type)
	}
	return nil
}

// Turn is one message in a conversation. Content is either the plain Text
// string or the ordered Parts list; Parts takes precedence when non-nil.
// A turn's content is never empty.
type Turn struct {
	Role  Role
	Text  string
	Parts []ContentPart
}

// TextTurn builds a turn with plain string content.
func TextTurn(role Role, text string) Turn {
	return Turn{Role: role, Text: text}
}

// PartsTurn builds a turn with multi-part content.
func PartsTurn(role Role, parts []ContentPart) Turn {
	return Turn{Role: role, Parts: parts}
}

// IsMultipart reports whether the turn uses the part-array content form.
func (t Turn) IsMultipart() bool {
	return t.Parts != nil
}

// MarshalJSON serializes the turn to {role, content} where content is a
// string for plain turns and a part array for multimodal turns.
func (t Turn) MarshalJSON() ([]byte, error) {
	type wire struct {
		Role    Role `json:"role"`
		Content any  `json:"content"`
	}
	if t.Parts != nil {
		return json.Marshal(wire{Role: t.Role, Content: t.Parts})
	}
	return json.Marshal(wire{Role: t.Role, Content: t.Text})
}

// UnmarshalJSON deserializes a turn, validating the role and rejecting
// empty content and unrecognized content shapes.
func (t *Turn) UnmarshalJSON(data []byte) error {
	var w struct {
		Role    Role            `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	switch w.Role {
	case RoleSystem, RoleUser, RoleAssistant:
	default:
		return fmt.Errorf("unknown role %q", w.Role)
	}

	var text string
	if err := json.Unmarshal(w.Content, &text); err == nil {
		if text == "" {
			return fmt.Errorf("turn content is empty")
		}
		t.Role = w.Role
		t.Text = text
		t.Parts = nil
		return nil
	}

	var parts []ContentPart
	if err := json.Unmarshal(w.Content, &parts); err != nil {
		return fmt.Errorf("turn content must be a string or part array: %w", err)
	}
	if len(parts) == 0 {
		return fmt.Errorf("turn content is empty")
	}
	t.Role = w.Role
	t.Text = ""
	t.Parts = parts
	return nil
}

// EncodeHistory serializes turns as the persisted history document,
// an indented JSON array. A nil slice encodes as an empty array.
func EncodeHistory(turns []Turn) ([]byte, error) {
	if turns == nil {
		turns = []Turn{}
	}
	return json.MarshalIndent(turns, "", "  ")
}

// DecodeHistory parses a persisted history document. Anything that is not
// a well-formed array of valid turns is an error; callers degrade that to
// an empty history.
func DecodeHistory(data []byte) ([]Turn, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("history document is not an array")
	}
	var turns []Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, err
	}
	return turns, nil
}
