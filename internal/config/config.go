package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ariafx/session-validator/internal/scoring"
)

type Config struct {
	ParamsFile   string        `yaml:"params_file"`
	EvalInterval time.Duration `yaml:"eval_interval"`
	LogLevel     string        `yaml:"log_level"`

	Scoring  ScoringConfig  `yaml:"scoring"`
	Gate     GateConfig     `yaml:"gate"`
	History  HistoryConfig  `yaml:"history"`
	API      APIConfig      `yaml:"api"`
	Telegram TelegramConfig `yaml:"telegram"`
}

type ScoringConfig struct {
	ConfidenceDivisor float64 `yaml:"confidence_divisor"`
	RiskRewardDivisor float64 `yaml:"risk_reward_divisor"`
	MeanWeight        float64 `yaml:"mean_weight"`
	MaxWeight         float64 `yaml:"max_weight"`
	StdWeight         float64 `yaml:"std_weight"`
	WarnThreshold     float64 `yaml:"warn_threshold"`
	CriticalThreshold float64 `yaml:"critical_threshold"`
}

// Policy converts the config section into a scoring policy.
func (s ScoringConfig) Policy() scoring.Policy {
	return scoring.Policy{
		ConfidenceDivisor: s.ConfidenceDivisor,
		RiskRewardDivisor: s.RiskRewardDivisor,
		MeanWeight:        s.MeanWeight,
		MaxWeight:         s.MaxWeight,
		StdWeight:         s.StdWeight,
		WarnThreshold:     s.WarnThreshold,
		CriticalThreshold: s.CriticalThreshold,
	}
}

type GateConfig struct {
	MaxConsecutiveRejections int `yaml:"max_consecutive_rejections"`
}

type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

func Default() Config {
	policy := scoring.DefaultPolicy()
	return Config{
		ParamsFile:   "params.yaml",
		EvalInterval: 5 * time.Minute,
		LogLevel:     "info",
		Scoring: ScoringConfig{
			ConfidenceDivisor: policy.ConfidenceDivisor,
			RiskRewardDivisor: policy.RiskRewardDivisor,
			MeanWeight:        policy.MeanWeight,
			MaxWeight:         policy.MaxWeight,
			StdWeight:         policy.StdWeight,
			WarnThreshold:     policy.WarnThreshold,
			CriticalThreshold: policy.CriticalThreshold,
		},
		Gate: GateConfig{
			MaxConsecutiveRejections: 3,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    "evaluations.db",
		},
		API: APIConfig{
			Addr: ":8080",
		},
	}
}

func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("VALIDATOR_PARAMS_FILE")); v != "" {
		c.ParamsFile = v
	}
	if v := strings.TrimSpace(os.Getenv("VALIDATOR_LOG_LEVEL")); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("VALIDATOR_HISTORY_PATH")); v != "" {
		c.History.Path = v
	}
	if v := os.Getenv("VALIDATOR_TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("VALIDATOR_TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("VALIDATOR_API_ENABLED"); v != "" {
		c.API.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
}
