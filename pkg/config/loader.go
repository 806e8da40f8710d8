package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, RELAY_CONFIG env, ./config.yaml, /etc/relay/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	// Start with defaults.
	cfg := Defaults()

	// Discover and load YAML config file.
	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	// Apply environment variable overrides.
	applyEnvOverrides(&cfg)

	// Resolve _file references.
	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	// Validate.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. RELAY_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/relay/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	// Explicit path takes priority.
	if configPath != "" {
		return configPath
	}

	// Check RELAY_CONFIG env var.
	if envPath := os.Getenv("RELAY_CONFIG"); envPath != "" {
		return envPath
	}

	// Check common locations.
	candidates := []string{
		"config.yaml",
		"/etc/relay/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps environment variables to config fields. Env vars
// beat the YAML file, matching the original .env-driven deployment style.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RELAY_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("RELAY_WEBHOOK_SECRET"); v != "" {
		cfg.Server.Secret = v
	}
	if v := os.Getenv("RELAY_ONEBOT_URL"); v != "" {
		cfg.OneBot.APIURL = v
	}
	if v := os.Getenv("RELAY_ONEBOT_TOKEN"); v != "" {
		cfg.OneBot.AccessToken = v
	}
	if v := os.Getenv("RELAY_BOT_NAME"); v != "" {
		cfg.OneBot.BotName = v
	}
	if v := os.Getenv("RELAY_OPENAI_BASE_URL"); v != "" {
		cfg.OpenAI.BaseURL = v
	}
	if v := os.Getenv("RELAY_OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("RELAY_MODEL"); v != "" {
		cfg.OpenAI.DefaultModel = v
	}
	if v := os.Getenv("RELAY_SYSTEM_PROMPT"); v != "" {
		cfg.OpenAI.SystemPrompt = v
	}
	if v := os.Getenv("RELAY_STORAGE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("RELAY_STORAGE_DIR"); v != "" {
		cfg.Storage.File.Dir = v
	}
	if v := os.Getenv("RELAY_POSTGRES_DSN"); v != "" {
		cfg.Storage.Postgres.DSN = v
	}

	// Configuring a notice group via env also enables the watcher, the
	// same gate the group setting has always been.
	if v := os.Getenv("RELAY_MONITOR_GROUP"); v != "" {
		if group, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Monitor.NotifyGroup = group
			cfg.Monitor.Enabled = true
		}
	}
}

// resolveFileReferences reads _file fields and populates the corresponding
// value fields. For each field ending in _file, if the value field is empty
// and the file field is set, the file is read, whitespace is trimmed, and
// the value field is populated.
func resolveFileReferences(cfg *Config) error {
	// server.secret_file -> server.secret
	if cfg.Server.SecretFile != "" && cfg.Server.Secret == "" {
		val, err := readSecretFile(cfg.Server.SecretFile)
		if err != nil {
			return fmt.Errorf("server.secret_file: %w", err)
		}
		cfg.Server.Secret = val
	}

	// onebot.access_token_file -> onebot.access_token
	if cfg.OneBot.AccessTokenFile != "" && cfg.OneBot.AccessToken == "" {
		val, err := readSecretFile(cfg.OneBot.AccessTokenFile)
		if err != nil {
			return fmt.Errorf("onebot.access_token_file: %w", err)
		}
		cfg.OneBot.AccessToken = val
	}

	// openai.api_key_file -> openai.api_key
	if cfg.OpenAI.APIKeyFile != "" && cfg.OpenAI.APIKey == "" {
		val, err := readSecretFile(cfg.OpenAI.APIKeyFile)
		if err != nil {
			return fmt.Errorf("openai.api_key_file: %w", err)
		}
		cfg.OpenAI.APIKey = val
	}

	// storage.postgres.dsn_file -> storage.postgres.dsn
	if cfg.Storage.Postgres.DSNFile != "" && cfg.Storage.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Storage.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("storage.postgres.dsn_file: %w", err)
		}
		cfg.Storage.Postgres.DSN = val
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
