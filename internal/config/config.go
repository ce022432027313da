package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	DefaultConfigPath       = "config.toml"
	DefaultHTTPAddr         = ":8080"
	DefaultHistoryDir       = "chat_histories"
	DefaultFullHistoryDir   = "full_chat_histories"
	DefaultTierRegistryPath = "full_history_users.json"
	DefaultTextModel        = "gemini-2.5-flash"
	DefaultVisionAudioModel = "gemini-2.5-flash"

	// Activity governor defaults. Window and quota together mean one
	// admitted request per ten seconds before the cooldown kicks in.
	DefaultRateWindowSeconds = 10
	DefaultRateQuota         = 1
	DefaultCooldownSeconds   = 30
	DefaultRepeatThreshold   = 2

	// History retention. The standard cap is counted in exchanges, so the
	// stored turn cap is twice this value; the extended cap is in turns.
	DefaultMaxStandardTurns = 10
	DefaultMaxExtendedTurns = 200

	DefaultSessionExpiry   = time.Hour
	DefaultRestartInterval = time.Hour
)

// Config holds everything the process needs to start. Secrets come from the
// environment (a .env file is honored, matching deployment practice);
// numeric policy knobs are compiled-in defaults that an optional config.toml
// may override.
type Config struct {
	TelegramBotToken string `validate:"required"`
	GeminiAPIKey     string `validate:"required"`
	AdminUserID      int64  `validate:"required"`

	Log    LogConfig
	Server ServerConfig
	Policy PolicyConfig
	Models ModelConfig
	Paths  PathConfig
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

// PolicyConfig carries the activity-governor and retention constants.
type PolicyConfig struct {
	RateWindowSeconds int `toml:"rate_window_seconds"`
	RateQuota         int `toml:"rate_quota"`
	CooldownSeconds   int `toml:"cooldown_seconds"`
	RepeatThreshold   int `toml:"repeat_threshold"`

	MaxStandardTurns int `toml:"max_standard_turns"`
	MaxExtendedTurns int `toml:"max_extended_turns"`

	SessionExpiryMinutes   int `toml:"session_expiry_minutes"`
	RestartIntervalMinutes int `toml:"restart_interval_minutes"`
}

type ModelConfig struct {
	Text        string `toml:"text"`
	VisionAudio string `toml:"vision_audio"`
}

type PathConfig struct {
	HistoryDir     string `toml:"history_dir"`
	FullHistoryDir string `toml:"full_history_dir"`
	TierRegistry   string `toml:"tier_registry"`
}

func (p PolicyConfig) RateWindow() time.Duration {
	return time.Duration(p.RateWindowSeconds) * time.Second
}

func (p PolicyConfig) Cooldown() time.Duration {
	return time.Duration(p.CooldownSeconds) * time.Second
}

func (p PolicyConfig) SessionExpiry() time.Duration {
	return time.Duration(p.SessionExpiryMinutes) * time.Minute
}

func (p PolicyConfig) RestartInterval() time.Duration {
	return time.Duration(p.RestartIntervalMinutes) * time.Minute
}

// StandardTurnCap is the stored-entry cap for the standard tier.
func (p PolicyConfig) StandardTurnCap() int { return p.MaxStandardTurns * 2 }

// ExtendedTurnCap is the stored-entry cap for the extended tier.
func (p PolicyConfig) ExtendedTurnCap() int { return p.MaxExtendedTurns }

// Load builds the configuration from the environment plus an optional toml
// file at path. Missing required secrets abort startup.
func Load(path string) (Config, error) {
	// Best effort; deployments without a .env file set real env vars.
	_ = godotenv.Load()

	cfg := Config{
		Log:    LogConfig{Level: "info", Format: "text"},
		Server: ServerConfig{Addr: DefaultHTTPAddr},
		Policy: PolicyConfig{
			RateWindowSeconds:      DefaultRateWindowSeconds,
			RateQuota:              DefaultRateQuota,
			CooldownSeconds:        DefaultCooldownSeconds,
			RepeatThreshold:        DefaultRepeatThreshold,
			MaxStandardTurns:       DefaultMaxStandardTurns,
			MaxExtendedTurns:       DefaultMaxExtendedTurns,
			SessionExpiryMinutes:   int(DefaultSessionExpiry / time.Minute),
			RestartIntervalMinutes: int(DefaultRestartInterval / time.Minute),
		},
		Models: ModelConfig{
			Text:        DefaultTextModel,
			VisionAudio: DefaultVisionAudioModel,
		},
		Paths: PathConfig{
			HistoryDir:     DefaultHistoryDir,
			FullHistoryDir: DefaultFullHistoryDir,
			TierRegistry:   DefaultTierRegistryPath,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("decode %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}

	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	if raw := os.Getenv("ADMIN_USER_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("ADMIN_USER_ID must be a numeric Telegram user ID: %w", err)
		}
		cfg.AdminUserID = id
	}

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("TELEGRAM_BOT_TOKEN, GEMINI_API_KEY, and ADMIN_USER_ID environment variables must be set: %w", err)
	}
	return cfg, nil
}
