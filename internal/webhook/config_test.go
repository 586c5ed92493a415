package webhook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/hookbox/internal/config"
)

func TestFromGlobalConfig(t *testing.T) {
	_, err := FromGlobalConfig(nil)
	assert.Error(t, err)

	cfg, err := FromGlobalConfig(&config.Defaults().Webhooks)
	require.NoError(t, err)
	assert.Equal(t, PolicyPermissive, cfg.AuthPolicy)
	assert.Zero(t, cfg.RateLimitRequests)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)

	cfg, err = FromGlobalConfig(&config.WebhooksConfig{
		AuthPolicy: "Require_Token",
		RateLimit:  config.RateLimitConfig{Requests: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, PolicyRequireToken, cfg.AuthPolicy)
	assert.Equal(t, 10, cfg.RateLimitRequests)
	assert.Equal(t, DefaultRateLimitWindow, cfg.RateLimitWindow)

	_, err = FromGlobalConfig(&config.WebhooksConfig{AuthPolicy: "strict"})
	assert.ErrorContains(t, err, "unknown webhooks.auth_policy")

	_, err = FromGlobalConfig(&config.WebhooksConfig{RateLimit: config.RateLimitConfig{Requests: -1}})
	assert.Error(t, err)
}
