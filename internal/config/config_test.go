package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)

	cfg, err = LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "claude-sonnet-4-5-20250929", cfg.Claude.Model)
	require.Equal(t, 1024, cfg.Claude.MaxTokens)
	require.Equal(t, 15000, cfg.Analysis.MaxInputLength)
	require.Contains(t, cfg.Premium.Users, "andrealan2003@gmail.com")
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enclaro.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = 9000

[premium]
users = ["vip@example.com"]
`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 9000, cfg.Server.Port)
	require.Equal(t, []string{"vip@example.com"}, cfg.Premium.Users)
	// Untouched sections keep their defaults.
	require.Equal(t, 1024, cfg.Claude.MaxTokens)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ENCLARO_SERVER__PORT", "9100")
	t.Setenv("ENCLARO_LOGGING__LEVEL", "debug")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfig_PlatformEnv(t *testing.T) {
	t.Setenv("CLAUDE_API_KEY", "sk-test-key")
	t.Setenv("DATABASE_URL", "postgres://localhost/enclaro")
	t.Setenv("PORT", "10000")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, "sk-test-key", cfg.Claude.APIKey)
	require.Equal(t, "postgres://localhost/enclaro", cfg.Database.URL)
	require.Equal(t, 10000, cfg.Server.Port)
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enclaro.toml")

	require.NoError(t, InitConfig(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 8000, cfg.Server.Port)

	// Refuses to overwrite an existing file.
	require.Error(t, InitConfig(path))
}

func TestValidate(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))

	cfg.Server.Port = -1
	require.Error(t, Validate(cfg))

	cfg.Server.Port = 8000
	cfg.Claude.Model = ""
	require.Error(t, Validate(cfg))
}
