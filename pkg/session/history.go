package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/a2bot/relay/pkg/chat"
	"github.com/a2bot/relay/pkg/store"
)

// MaxContextMessages is the number of turns retained per conversation.
// Older turns are dropped when the history grows past this bound.
const MaxContextMessages = 20

// History loads and saves conversation documents through a Store.
type History struct {
	store  store.Store
	logger *slog.Logger
}

// NewHistory creates a history manager backed by s.
func NewHistory(s store.Store, logger *slog.Logger) *History {
	if logger == nil {
		logger = slog.Default()
	}
	return &History{store: s, logger: logger}
}

// Load returns the stored conversation for key. A missing document is
// the normal first-contact case and yields an empty history silently.
// An unreadable or corrupt document also yields an empty history, with
// a warning, so one bad file cannot wedge a session forever.
func (h *History) Load(ctx context.Context, key string) []chat.Turn {
	doc, err := h.store.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			h.logger.Warn("failed to load session history, starting fresh",
				"session", key, "error", err)
		}
		return nil
	}

	turns, err := chat.DecodeHistory(doc)
	if err != nil {
		h.logger.Warn("failed to decode session history, starting fresh",
			"session", key, "error", err)
		return nil
	}
	return turns
}

// Save persists the conversation for key.
func (h *History) Save(ctx context.Context, key string, turns []chat.Turn) error {
	doc, err := chat.EncodeHistory(turns)
	if err != nil {
		return err
	}
	return h.store.Save(ctx, key, doc)
}

// AppendAndTrim appends turns to history and keeps only the most recent
// MaxContextMessages entries.
func AppendAndTrim(history []chat.Turn, turns ...chat.Turn) []chat.Turn {
	history = append(history, turns...)
	if len(history) > MaxContextMessages {
		history = history[len(history)-MaxContextMessages:]
	}
	return history
}
