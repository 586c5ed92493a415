package config

import "time"

// Config represents the complete hookbox configuration.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	State    StateConfig    `yaml:"state"`
	Server   ServerConfig   `yaml:"server"`
	Webhooks WebhooksConfig `yaml:"webhooks"`

	// SourcePath is the absolute path the config was loaded from.
	SourcePath string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name     string `yaml:"name" validate:"required"`
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`
}

// StateConfig defines where endpoints and logs are stored.
type StateConfig struct {
	Driver string `yaml:"driver" validate:"oneof=sqlite postgres"`
	Path   string `yaml:"path" validate:"required_if=Driver sqlite"`
	DSN    string `yaml:"dsn" validate:"required_if=Driver postgres"`
}

// ServerConfig defines the HTTP listener serving ingestion and management.
type ServerConfig struct {
	Listen string `yaml:"listen" validate:"required,hostname_port"`
	// PublicURL is the externally visible base URL used in endpoint listings.
	// Empty means the request's scheme and host.
	PublicURL    string        `yaml:"public_url" validate:"omitempty,url"`
	ReadTimeout  time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gt=0"`
}

// WebhooksConfig defines ingestion behaviour.
type WebhooksConfig struct {
	// AuthPolicy is "permissive" (calls without a bearer token are accepted)
	// or "require_token".
	AuthPolicy string          `yaml:"auth_policy" validate:"oneof=permissive require_token"`
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig limits calls per client address. Requests 0 disables it.
type RateLimitConfig struct {
	Requests int           `yaml:"requests" validate:"gte=0"`
	Window   time.Duration `yaml:"window" validate:"gte=0"`
}

// ChecksumManifest is the content of a .checksums file.
type ChecksumManifest struct {
	Version     int               `yaml:"version"`
	GeneratedAt string            `yaml:"generated_at"`
	Hashes      map[string]string `yaml:"hashes"`
}

// Defaults returns a Config with the built-in defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:     "hookbox",
			LogLevel: "info",
		},
		State: StateConfig{
			Driver: "sqlite",
			Path:   "./data/hookbox.db",
		},
		Server: ServerConfig{
			Listen:       "127.0.0.1:5000",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Webhooks: WebhooksConfig{
			AuthPolicy: "permissive",
			RateLimit: RateLimitConfig{
				Requests: 0,
				Window:   time.Minute,
			},
		},
	}
}

// PermissiveAuth reports whether calls without a bearer token are accepted.
func (c *Config) PermissiveAuth() bool {
	return c.Webhooks.AuthPolicy == "" || c.Webhooks.AuthPolicy == "permissive"
}
