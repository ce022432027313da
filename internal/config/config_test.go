package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("ADMIN_USER_ID", "1000")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	require.Equal(t, int64(1000), cfg.AdminUserID)
	require.Equal(t, DefaultRateQuota, cfg.Policy.RateQuota)
	require.Equal(t, DefaultMaxStandardTurns*2, cfg.Policy.StandardTurnCap())
	require.Equal(t, DefaultMaxExtendedTurns, cfg.Policy.ExtendedTurnCap())
	require.Equal(t, DefaultSessionExpiry, cfg.Policy.SessionExpiry())
	require.Equal(t, DefaultTextModel, cfg.Models.Text)
	require.Equal(t, DefaultHistoryDir, cfg.Paths.HistoryDir)
}

func TestLoad_MissingSecretsAbortsStartup(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("ADMIN_USER_ID", "")

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestLoad_NonNumericAdminID(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("ADMIN_USER_ID", "alice")

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestLoad_TomlOverridesPolicy(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[policy]
rate_quota = 5
cooldown_seconds = 60

[log]
level = "debug"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 5, cfg.Policy.RateQuota)
	require.Equal(t, 60, cfg.Policy.CooldownSeconds)
	require.Equal(t, "debug", cfg.Log.Level)
	// Untouched knobs keep their defaults.
	require.Equal(t, DefaultRepeatThreshold, cfg.Policy.RepeatThreshold)
}
