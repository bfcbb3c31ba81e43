package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port int `koanf:"port"`
	} `koanf:"server"`

	Claude struct {
		APIKey         string `koanf:"api_key"`
		Model          string `koanf:"model"`
		MaxTokens      int    `koanf:"max_tokens"`
		TimeoutSeconds int    `koanf:"timeout_seconds"`
	} `koanf:"claude"`

	Analysis struct {
		MaxInputLength int `koanf:"max_input_length"`
	} `koanf:"analysis"`

	Premium struct {
		Users []string `koanf:"users"`
	} `koanf:"premium"`

	Database struct {
		URL string `koanf:"url"`
	} `koanf:"database"`

	Logging struct {
		Level  string `koanf:"level"`
		Pretty bool   `koanf:"pretty"`
	} `koanf:"logging"`
}

// LoadConfig loads the configuration: defaults, then an optional TOML file,
// then ENCLARO_* environment variables, then the plain environment variables
// the hosting platform sets (CLAUDE_API_KEY, DATABASE_URL, PORT).
func LoadConfig(configPath string) (*Config, error) {
	var k = koanf.New(".")

	// Set up default configuration
	k.Load(confmap.Provider(map[string]interface{}{
		"server.port":               8000,
		"claude.model":              "claude-sonnet-4-5-20250929",
		"claude.max_tokens":         1024,
		"claude.timeout_seconds":    90,
		"analysis.max_input_length": 15000,
		"premium.users":             []string{"andrealan2003@gmail.com"},
		"logging.level":             "info",
	}, "."), nil)

	// Load from TOML file if it exists
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		defaultPaths := []string{"./enclaro.toml", "$HOME/.enclaro.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	// Load from environment variables with prefix ENCLARO_; a double
	// underscore separates nesting levels (ENCLARO_CLAUDE__API_KEY).
	k.Load(env.Provider("ENCLARO_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "ENCLARO_")
		return strings.Replace(strings.ToLower(s), "__", ".", -1)
	}), nil)

	// Unmarshal into Config struct
	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	applyPlatformEnv(&config)

	return &config, nil
}

// applyPlatformEnv honors the unprefixed variables the reference deployment
// relies on.
func applyPlatformEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("CLAUDE_API_KEY")); v != "" {
		cfg.Claude.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("CLAUDE_MODEL")); v != "" {
		cfg.Claude.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.Database.URL = v
	}
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}

// InitConfig initializes a new configuration file
func InitConfig(configPath string) error {
	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	sampleConfig := `# Enclaro backend configuration

[server]
port = 8000

[claude]
api_key = "your-anthropic-api-key"
model = "claude-sonnet-4-5-20250929"
max_tokens = 1024
timeout_seconds = 90

[analysis]
max_input_length = 15000

[premium]
users = ["andrealan2003@gmail.com"]

[database]
# Leave empty to disable history persistence.
url = ""

[logging]
level = "info"
pretty = false
`

	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}

// Validate validates the configuration
func Validate(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Claude.Model == "" {
		return fmt.Errorf("claude model is required")
	}

	if config.Analysis.MaxInputLength <= 0 {
		return fmt.Errorf("analysis max_input_length must be positive")
	}

	// The API key is deliberately not required here: the server may start
	// without it and every analyze call then fails with a configuration
	// error, matching the reference deployment.
	return nil
}
