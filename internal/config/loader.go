package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// DefaultPath is used when no --config flag is given.
const DefaultPath = "./hookbox.yaml"

// Load reads, verifies and validates the configuration at configPath.
// Unset keys keep their Defaults() value. When a .checksums manifest sits
// next to the file, the file must match it.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s\n"+
				"Hint: Check the path or run with --config flag", absPath)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := VerifyChecksum(absPath); err != nil {
		return nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	cfg.SourcePath = absPath
	return cfg, nil
}

// Parse decodes YAML config data over Defaults() and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	expanded := interpolateEnv(string(data))
	if strings.TrimSpace(expanded) != "" {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	normalize(cfg)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=value pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotEnv(paths ...string) ([]string, error) {
	var loaded []string
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return loaded, fmt.Errorf("stat %s: %w", p, err)
		}
		if err := godotenv.Load(p); err != nil {
			return loaded, fmt.Errorf("load %s: %w", p, err)
		}
		loaded = append(loaded, p)
	}
	return loaded, nil
}

// interpolateEnv replaces ${VAR} with the value of VAR. Unset variables are
// left as written so validation reports them.
func interpolateEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return match
	})
}

func normalize(cfg *Config) {
	cfg.Service.LogLevel = strings.ToLower(strings.TrimSpace(cfg.Service.LogLevel))
	cfg.State.Driver = strings.ToLower(strings.TrimSpace(cfg.State.Driver))
	if cfg.State.Driver == "" {
		cfg.State.Driver = "sqlite"
	}
	cfg.Webhooks.AuthPolicy = strings.ToLower(strings.TrimSpace(cfg.Webhooks.AuthPolicy))
	if cfg.Webhooks.AuthPolicy == "" {
		cfg.Webhooks.AuthPolicy = "permissive"
	}
	cfg.Server.PublicURL = strings.TrimRight(strings.TrimSpace(cfg.Server.PublicURL), "/")
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

func validate(cfg *Config) error {
	err := structValidator.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// fieldPaths maps validator namespaces to YAML keys.
var fieldPaths = map[string]string{
	"Config.Service.Name":                "service.name",
	"Config.Service.LogLevel":            "service.log_level",
	"Config.State.Driver":                "state.driver",
	"Config.State.Path":                  "state.path",
	"Config.State.DSN":                   "state.dsn",
	"Config.Server.Listen":               "server.listen",
	"Config.Server.PublicURL":            "server.public_url",
	"Config.Server.ReadTimeout":          "server.read_timeout",
	"Config.Server.WriteTimeout":         "server.write_timeout",
	"Config.Webhooks.AuthPolicy":         "webhooks.auth_policy",
	"Config.Webhooks.RateLimit.Requests": "webhooks.rate_limit.requests",
	"Config.Webhooks.RateLimit.Window":   "webhooks.rate_limit.window",
}

func describe(fe validator.FieldError) string {
	field, ok := fieldPaths[fe.Namespace()]
	if !ok {
		field = fe.Namespace()
	}
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fmt.Sprint(fe.Value()))
	case "hostname_port":
		return fmt.Sprintf("%s must be host:port, got %q", field, fmt.Sprint(fe.Value()))
	case "url":
		return fmt.Sprintf("%s must be an absolute URL, got %q", field, fmt.Sprint(fe.Value()))
	case "gt", "gte":
		return fmt.Sprintf("%s must be %s %s", field, map[string]string{"gt": ">", "gte": ">="}[fe.Tag()], fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
