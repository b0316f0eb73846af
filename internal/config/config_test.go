package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644))
	return dir
}

func TestLoadConfigAppliesLockdownDefaults(t *testing.T) {
	dir := writeConfig(t, `
server:
  port: "9090"
  mode: debug
platform:
  base_url: http://platform.local/api
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	require.Equal(t, "9090", cfg.Server.Port)
	require.Equal(t, "http://platform.local/api", cfg.Platform.BaseURL)
	require.Equal(t, 30*time.Minute, cfg.Lockdown.FallbackBudget())
	require.Equal(t, time.Second, cfg.Lockdown.TickInterval())
	require.Equal(t, 160, cfg.Lockdown.ResizeThresholdPx)
	require.Equal(t, 3, cfg.Lockdown.MaxSubmitAttempts)
	require.Contains(t, cfg.Lockdown.BlockedKeyCombos, "f12")
}

func TestLoadConfigOverridesLockdownPolicy(t *testing.T) {
	dir := writeConfig(t, `
platform:
  base_url: http://platform.local/api
lockdown:
  fallback_budget_seconds: 600
  tick_interval_ms: 250
  resize_threshold_px: 200
  blocked_key_combos: ["ctrl+c"]
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	require.Equal(t, 10*time.Minute, cfg.Lockdown.FallbackBudget())
	require.Equal(t, 250*time.Millisecond, cfg.Lockdown.TickInterval())
	require.Equal(t, 200, cfg.Lockdown.ResizeThresholdPx)
	require.Equal(t, []string{"ctrl+c"}, cfg.Lockdown.BlockedKeyCombos)
}

func TestLoadConfigRejectsWeakSecretInRelease(t *testing.T) {
	dir := writeConfig(t, `
server:
  mode: release
jwt:
  secret: short
platform:
  base_url: http://platform.local/api
`)

	_, err := LoadConfig(dir)
	require.Error(t, err)
}

func TestLoadConfigRequiresPlatformURL(t *testing.T) {
	dir := writeConfig(t, `
server:
  mode: debug
`)

	_, err := LoadConfig(dir)
	require.ErrorContains(t, err, "platform.base_url")
}
