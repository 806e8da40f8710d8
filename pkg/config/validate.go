package config

import (
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	// onebot.api_url is required: without it replies cannot be delivered.
	if c.OneBot.APIURL == "" {
		errs = append(errs, fmt.Errorf("onebot.api_url is required"))
	}

	if c.OpenAI.BaseURL == "" {
		errs = append(errs, fmt.Errorf("openai.base_url is required"))
	}

	if c.Server.Addr == "" {
		errs = append(errs, fmt.Errorf("server.addr is required"))
	}

	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout must be positive, got %v", c.Server.ReadTimeout))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.write_timeout must be positive, got %v", c.Server.WriteTimeout))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout must be positive, got %v", c.Server.ShutdownTimeout))
	}
	if c.OpenAI.CompletionTimeout <= 0 {
		errs = append(errs, fmt.Errorf("openai.completion_timeout must be positive, got %v", c.OpenAI.CompletionTimeout))
	}
	if c.OpenAI.PeripheralTimeout <= 0 {
		errs = append(errs, fmt.Errorf("openai.peripheral_timeout must be positive, got %v", c.OpenAI.PeripheralTimeout))
	}

	// storage.type must be a known value, with its dependent fields set.
	switch c.Storage.Type {
	case "file":
		if c.Storage.File.Dir == "" {
			errs = append(errs, fmt.Errorf("storage.file.dir is required when storage.type is \"file\""))
		}
	case "memory":
		// valid
	case "postgres":
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"file\", \"memory\" or \"postgres\", got %q", c.Storage.Type))
	}

	if c.Monitor.Enabled {
		if c.Monitor.NotifyGroup == 0 {
			errs = append(errs, fmt.Errorf("monitor.notify_group is required when the monitor is enabled"))
		}
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(c.Monitor.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("monitor.schedule %q: %w", c.Monitor.Schedule, err))
		}
	}

	return errors.Join(errs...)
}
