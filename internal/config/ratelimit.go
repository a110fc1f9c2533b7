package config

import "time"

// RateLimitConfig drives the redis token bucket.  The general bucket covers
// every /v1 route; the auth bucket is a tighter one for the OTP, login and
// password reset endpoints, where each request may send an email or SMS.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	AuthCapacity   int
	AuthRefill     time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

func LoadRateLimitConfig() RateLimitConfig {
	def := RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("RATE_LIMIT_CAPACITY", 60),
		RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		AuthCapacity:   envInt("RATE_LIMIT_AUTH_CAPACITY", 5),
		AuthRefill:     envDur("RATE_LIMIT_AUTH_REFILL_EVERY", 30*time.Second),
		TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip_user_route"),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	}
	if def.Capacity < 1 {
		def.Capacity = 1
	}
	if def.AuthCapacity < 1 {
		def.AuthCapacity = 1
	}
	if def.RefillTokens < 1 {
		def.RefillTokens = 1
	}
	if def.RefillInterval <= 0 {
		def.RefillInterval = time.Second
	}
	if def.AuthRefill <= 0 {
		def.AuthRefill = 30 * time.Second
	}
	minTTL := 5 * def.AuthRefill
	if def.TTL < minTTL {
		def.TTL = minTTL
	}
	return def
}

// Auth returns the tighter bucket used on credential endpoints.  It keys
// on IP and route only since callers are anonymous.
func (c RateLimitConfig) Auth() RateLimitConfig {
	out := c
	out.Capacity = c.AuthCapacity
	out.RefillTokens = 1
	out.RefillInterval = c.AuthRefill
	out.KeyStrategy = "ip_route"
	out.Prefix = c.Prefix + ":auth"
	return out
}
