package app

import (
	"strings"
	"time"

	"github.com/jobeco/fairprice/internal/auth"
	"github.com/jobeco/fairprice/internal/cache"
	"github.com/jobeco/fairprice/internal/middleware"
)

const (
	defaultLoginRequests = 5
	defaultLoginWindow   = 5 * time.Minute
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TokenTTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: ttl,
	}
}

// LoginLimit returns the login attempt budget with defaults applied.
func (c RateLimitConfig) LoginLimit() (int, time.Duration) {
	requests := c.Requests
	if requests <= 0 {
		requests = defaultLoginRequests
	}
	window := c.Window
	if window <= 0 {
		window = defaultLoginWindow
	}
	return requests, window
}

// RateStore builds the counter backend for login throttling. The database
// store shares counters across replicas through the cache table.
func (c RateLimitConfig) RateStore(store cache.Store) middleware.RateStore {
	if strings.EqualFold(strings.TrimSpace(c.Store), "database") && store != nil {
		return middleware.NewCacheRateStore(store)
	}
	return middleware.NewMemoryRateStore()
}
