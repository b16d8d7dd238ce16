package config

import (
	"fmt"
	"strings"
)

// Validate checks high-impact runtime configuration constraints.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ParamsFile) == "" {
		return fmt.Errorf("params_file must not be empty")
	}
	if c.EvalInterval <= 0 {
		return fmt.Errorf("eval_interval must be > 0, got %v", c.EvalInterval)
	}

	level := strings.ToLower(strings.TrimSpace(c.LogLevel))
	switch level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug|info|warn|error, got %q", c.LogLevel)
	}

	if err := c.Scoring.Policy().Validate(); err != nil {
		return fmt.Errorf("scoring: %w", err)
	}

	if c.Gate.MaxConsecutiveRejections < 0 {
		return fmt.Errorf("gate.max_consecutive_rejections must be >= 0, got %d", c.Gate.MaxConsecutiveRejections)
	}
	if c.History.Enabled && strings.TrimSpace(c.History.Path) == "" {
		return fmt.Errorf("history.path must not be empty when history is enabled")
	}
	if c.API.Enabled && strings.TrimSpace(c.API.Addr) == "" {
		return fmt.Errorf("api.addr must not be empty when the api is enabled")
	}
	if c.Telegram.Enabled && (c.Telegram.BotToken == "" || c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram requires bot_token and chat_id when enabled")
	}

	return nil
}
