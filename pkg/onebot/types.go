// Package onebot implements the slice of the OneBot v11 protocol the
// relay needs: inbound message events delivered over an HTTP webhook,
// and outgoing API calls against the front-end implementation
// (go-cqhttp, NapCat, LLOneBot) for sending replies.
package onebot

import "strconv"

// Segment types the relay reads or writes. Unknown types pass through
// untouched and are ignored by the assembler.
const (
	SegText  = "text"
	SegImage = "image"
	SegAt    = "at"
	SegNode  = "node"
)

// Segment is one unit of a OneBot message array.
type Segment struct {
	Type string      `json:"type"`
	Data SegmentData `json:"data"`
}

// SegmentData carries the union of fields across the segment types the
// relay touches. Unused fields stay empty and are omitted on the wire.
type SegmentData struct {
	// Text payload of a "text" segment.
	Text string `json:"text,omitempty"`

	// File, URL, and Base64 describe an "image" segment. File may hold
	// a plain file name or an inline "base64://" reference.
	File   string `json:"file,omitempty"`
	URL    string `json:"url,omitempty"`
	Base64 string `json:"base64,omitempty"`

	// QQ is the mention target of an "at" segment.
	QQ string `json:"qq,omitempty"`

	// Name, UIn, and Content describe a custom forward "node" segment.
	Name    string `json:"name,omitempty"`
	UIn     string `json:"uin,omitempty"`
	Content string `json:"content,omitempty"`
}

// Message is an ordered list of segments.
type Message []Segment

// TextSegment returns a plain text segment.
func TextSegment(text string) Segment {
	return Segment{Type: SegText, Data: SegmentData{Text: text}}
}

// Text returns a message holding a single text segment.
func Text(text string) Message {
	return Message{TextSegment(text)}
}

// ForwardNode returns a custom forward node attributed to the given
// sender name and uin.
func ForwardNode(name, uin, content string) Segment {
	return Segment{Type: SegNode, Data: SegmentData{Name: name, UIn: uin, Content: content}}
}

// PlainText concatenates the text of all text segments.
func (m Message) PlainText() string {
	var out string
	for _, seg := range m {
		if seg.Type == SegText {
			out += seg.Data.Text
		}
	}
	return out
}

// AddressedTo reports whether the message @-mentions uin.
func (m Message) AddressedTo(uin int64) bool {
	target := strconv.FormatInt(uin, 10)
	for _, seg := range m {
		if seg.Type == SegAt && seg.Data.QQ == target {
			return true
		}
	}
	return false
}

// StripMentions returns a copy of m with at segments for uin removed.
func (m Message) StripMentions(uin int64) Message {
	target := strconv.FormatInt(uin, 10)
	out := make(Message, 0, len(m))
	for _, seg := range m {
		if seg.Type == SegAt && seg.Data.QQ == target {
			continue
		}
		out = append(out, seg)
	}
	return out
}

// Sender describes the message author as reported by the front-end.
type Sender struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	Card     string `json:"card,omitempty"`
}

// Event is the envelope common to all OneBot callbacks. Only message
// events carry the full set of fields; the relay requires the array
// post format for the message body.
type Event struct {
	Time        int64   `json:"time"`
	SelfID      int64   `json:"self_id"`
	PostType    string  `json:"post_type"`
	MessageType string  `json:"message_type"`
	MessageID   int64   `json:"message_id"`
	UserID      int64   `json:"user_id"`
	GroupID     int64   `json:"group_id"`
	Message     Message `json:"message"`
	RawMessage  string  `json:"raw_message"`
	Sender      Sender  `json:"sender"`
}

// IsMessage reports whether the event is a chat message.
func (e *Event) IsMessage() bool {
	return e.PostType == "message"
}

// IsGroup reports whether the message was sent in a group.
func (e *Event) IsGroup() bool {
	return e.MessageType == "group"
}
