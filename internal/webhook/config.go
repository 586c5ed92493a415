package webhook

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattjoyce/hookbox/internal/config"
)

// DefaultRateLimitWindow applies when requests is set without a window.
const DefaultRateLimitWindow = time.Minute

// FromGlobalConfig converts config.WebhooksConfig to webhook.Config.
func FromGlobalConfig(wc *config.WebhooksConfig) (Config, error) {
	if wc == nil {
		return Config{}, fmt.Errorf("webhooks config is nil")
	}

	policy, err := ParseAuthPolicy(wc.AuthPolicy)
	if err != nil {
		return Config{}, err
	}

	if wc.RateLimit.Requests < 0 {
		return Config{}, fmt.Errorf("webhooks.rate_limit.requests must not be negative")
	}
	window := wc.RateLimit.Window
	if window <= 0 {
		window = DefaultRateLimitWindow
	}

	return Config{
		AuthPolicy:        policy,
		RateLimitRequests: wc.RateLimit.Requests,
		RateLimitWindow:   window,
	}, nil
}

// ParseAuthPolicy maps a configured policy name. Empty means permissive.
func ParseAuthPolicy(s string) (AuthPolicy, error) {
	switch AuthPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyPermissive:
		return PolicyPermissive, nil
	case PolicyRequireToken:
		return PolicyRequireToken, nil
	default:
		return "", fmt.Errorf("unknown webhooks.auth_policy %q (want %q or %q)", s, PolicyPermissive, PolicyRequireToken)
	}
}
