// Package config loads and resolves shopchat configuration.
package config

// Config is the root configuration for shopchat.
type Config struct {
	// ChatServiceURL is the base URL of the storefront AI chat service.
	ChatServiceURL string `yaml:"chatServiceUrl,omitempty"`

	// CommerceURL is the base URL of the commerce backend (cart, orders, profile).
	CommerceURL string `yaml:"commerceUrl,omitempty"`

	// AuthToken is the bearer credential sent on authenticated requests.
	// May reference an environment variable as ${VAR}.
	AuthToken string `yaml:"authToken,omitempty"`

	Chat    ChatConfig    `yaml:"chat,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
}

// ChatConfig controls chat exchange behavior.
type ChatConfig struct {
	// Model is the model id carried on streaming chat requests.
	Model string `yaml:"model,omitempty"`

	// Streaming selects the /chat/stream endpoint when true.
	Streaming *bool `yaml:"streaming,omitempty"`

	// Greeting is the assistant message seeded into a brand-new conversation.
	Greeting string `yaml:"greeting,omitempty"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // trace|debug|info|warn|error|fatal|silent
}

// ConfigError is returned when a config file is invalid.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

// Defaults returns a Config with all defaults applied.
func Defaults() Config {
	cfg := Config{}
	applyDefaults(&cfg)
	return cfg
}

// StreamingEnabled reports whether streaming chat is enabled (default true).
func (c Config) StreamingEnabled() bool {
	if c.Chat.Streaming == nil {
		return true
	}
	return *c.Chat.Streaming
}
