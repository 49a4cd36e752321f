package config

import (
	"os"
	"regexp"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. A missing file produces defaults only.
// A local .env file, when present, is loaded into the environment first.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	cfg.AuthToken = expandEnvVars(cfg.AuthToken)
	return cfg, nil
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.ChatServiceURL == "" {
		cfg.ChatServiceURL = "http://localhost:5000"
	}
	if cfg.CommerceURL == "" {
		cfg.CommerceURL = "http://localhost:8080"
	}
	if cfg.Chat.Model == "" {
		cfg.Chat.Model = "openai/gpt-oss-20b"
	}
	if cfg.Chat.Greeting == "" {
		cfg.Chat.Greeting = "Xin chào! Tôi là AI Agent của cửa hàng. Bạn cần hỗ trợ gì?"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// applyEnvOverrides reads SHOPCHAT_* environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SHOPCHAT_CHAT_URL"); v != "" {
		cfg.ChatServiceURL = v
	}
	if v := os.Getenv("SHOPCHAT_COMMERCE_URL"); v != "" {
		cfg.CommerceURL = v
	}
	if v := os.Getenv("SHOPCHAT_TOKEN"); v != "" {
		cfg.AuthToken = v
	}
	if v := os.Getenv("SHOPCHAT_MODEL"); v != "" {
		cfg.Chat.Model = v
	}
	if v := os.Getenv("SHOPCHAT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
