// Package prompt loads the optional system prompt that precedes every
// completion request.
package prompt

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/a2bot/relay/pkg/chat"
)

// Loader reads a system prompt from a file. The file is read on every
// Load call so operators can edit the prompt without a restart.
type Loader struct {
	path   string
	logger *slog.Logger
}

// NewLoader creates a loader for the given prompt file path. An empty
// path means no system prompt is configured.
func NewLoader(path string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{path: path, logger: logger}
}

// Load returns the system turn to prepend to a completion request. The
// second return is false when no usable prompt exists: the loader is
// unconfigured, the file is missing or unreadable, or its content is
// blank. Requests proceed without a system turn in all of those cases.
func (l *Loader) Load() (chat.Turn, bool) {
	if l.path == "" {
		return chat.Turn{}, false
	}

	content, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			l.logger.Warn("system prompt file not found", "path", l.path)
		} else {
			l.logger.Warn("failed to read system prompt file", "path", l.path, "error", err)
		}
		return chat.Turn{}, false
	}

	text := strings.TrimSpace(string(content))
	if text == "" {
		return chat.Turn{}, false
	}
	return chat.TextTurn(chat.RoleSystem, text), true
}
