package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/a2bot/relay/pkg/store"
)

// UserSettings holds per-user preferences that survive restarts.
// Fields are omitted from the stored document when unset so old
// documents stay forward compatible.
type UserSettings struct {
	// Model overrides the configured default model for this user.
	Model string `json:"model,omitempty"`
}

// Settings loads and saves per-user preference documents.
type Settings struct {
	store  store.Store
	logger *slog.Logger
}

// NewSettings creates a settings manager backed by s.
func NewSettings(s store.Store, logger *slog.Logger) *Settings {
	if logger == nil {
		logger = slog.Default()
	}
	return &Settings{store: s, logger: logger}
}

// Load returns the stored preferences for userID. Missing or corrupt
// documents yield zero settings so the caller falls back to defaults.
func (s *Settings) Load(ctx context.Context, userID string) UserSettings {
	doc, err := s.store.Load(ctx, SettingsKey(userID))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("failed to load user settings, using defaults",
				"user", userID, "error", err)
		}
		return UserSettings{}
	}

	var settings UserSettings
	if err := json.Unmarshal(doc, &settings); err != nil {
		s.logger.Warn("failed to decode user settings, using defaults",
			"user", userID, "error", err)
		return UserSettings{}
	}
	return settings
}

// Save persists the preferences for userID.
func (s *Settings) Save(ctx context.Context, userID string, settings UserSettings) error {
	doc, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return s.store.Save(ctx, SettingsKey(userID), doc)
}
