// Package config provides unified configuration for the relay.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (RELAY_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the relay.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	OneBot  OneBotConfig  `yaml:"onebot"`
	OpenAI  OpenAIConfig  `yaml:"openai"`
	Storage StorageConfig `yaml:"storage"`
	Monitor MonitorConfig `yaml:"monitor"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig holds webhook server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`             // default: ":8080"
	Secret          string        `yaml:"secret"`           // X-Signature HMAC secret, optional
	SecretFile      string        `yaml:"secret_file"`      // _file variant for secret
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 30s
}

// OneBotConfig holds settings for calling the OneBot HTTP API.
type OneBotConfig struct {
	APIURL          string `yaml:"api_url"` // required
	AccessToken     string `yaml:"access_token"`
	AccessTokenFile string `yaml:"access_token_file"` // _file variant for access_token
	BotName         string `yaml:"bot_name"`          // default: "A2Bot"
}

// OpenAIConfig holds settings for the OpenAI-compatible backend.
type OpenAIConfig struct {
	BaseURL           string        `yaml:"base_url"`           // default: "https://api.openai.com/v1"
	APIKey            string        `yaml:"api_key"`            // optional; completions degrade to a notice
	APIKeyFile        string        `yaml:"api_key_file"`       // _file variant for api_key
	DefaultModel      string        `yaml:"default_model"`      // default: "gpt-4o-mini"
	SystemPrompt      string        `yaml:"system_prompt"`      // path to the system prompt file, optional
	CompletionTimeout time.Duration `yaml:"completion_timeout"` // default: 30s
	PeripheralTimeout time.Duration `yaml:"peripheral_timeout"` // default: 10s
}

// StorageConfig holds session persistence settings.
type StorageConfig struct {
	Type     string         `yaml:"type"` // "file", "memory" or "postgres", default: "file"
	File     FileConfig     `yaml:"file"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// FileConfig holds file-store settings.
type FileConfig struct {
	Dir string `yaml:"dir"` // default: "data"
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	DSNFile         string        `yaml:"dsn_file"`          // _file variant for dsn
	MaxConns        int32         `yaml:"max_conns"`         // default: 10
	MinConns        int32         `yaml:"min_conns"`         // default: 2
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"` // default: 5m
	MigrateOnStart  bool          `yaml:"migrate_on_start"`  // default: true
}

// MonitorConfig holds model catalog watcher settings.
type MonitorConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Schedule    string `yaml:"schedule"`     // five-field cron, default: "* * * * *"
	NotifyGroup int64  `yaml:"notify_group"` // required when enabled
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"` // default: true
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // trace|debug|info|warn|error, default: "info"
	Debug string `yaml:"debug"` // comma-separated debug categories
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		OneBot: OneBotConfig{
			BotName: "A2Bot",
		},
		OpenAI: OpenAIConfig{
			BaseURL:           "https://api.openai.com/v1",
			DefaultModel:      "gpt-4o-mini",
			CompletionTimeout: 30 * time.Second,
			PeripheralTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Type: "file",
			File: FileConfig{Dir: "data"},
			Postgres: PostgresConfig{
				MaxConns:        10,
				MinConns:        2,
				MaxConnLifetime: 5 * time.Minute,
				MigrateOnStart:  true,
			},
		},
		Monitor: MonitorConfig{
			Schedule: "* * * * *",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
