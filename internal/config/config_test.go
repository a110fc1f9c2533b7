package config

import (
	"testing"
	"time"
)

func TestLoadMemoryStoreSkipsDatabaseKeys(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("USE_MEMORY_STORE", "true")
	t.Setenv("APP_ENV", "production")
	t.Setenv("REMINDER_INTERVAL", "15m")
	t.Setenv("BOOKING_STRICT_WORKFLOW", "yes")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_123")

	cfg := Load()
	if !cfg.UseMemoryStore || cfg.DBHost != "" {
		t.Fatalf("unexpected db settings: %+v", cfg)
	}
	if !cfg.IsProduction() {
		t.Error("APP_ENV=production should report production")
	}
	if cfg.ReminderInterval != 15*time.Minute {
		t.Errorf("ReminderInterval = %s", cfg.ReminderInterval)
	}
	if !cfg.StrictWorkflow {
		t.Error("StrictWorkflow should be true")
	}
	if cfg.JWTTTL != 7*24*time.Hour {
		t.Errorf("JWTTTL = %s, want 168h", cfg.JWTTTL)
	}
	if cfg.AdminResetSecret != "reset123" {
		t.Errorf("AdminResetSecret = %q", cfg.AdminResetSecret)
	}
	if cfg.Location != time.UTC {
		t.Errorf("Location = %v", cfg.Location)
	}
	if cfg.StripeWebhookSecret != "whsec_123" {
		t.Errorf("StripeWebhookSecret = %q", cfg.StripeWebhookSecret)
	}
}

func TestRabbitURLPrefersRabbitMQVar(t *testing.T) {
	t.Setenv("RABBITMQ_URL", "amqp://a/")
	t.Setenv("AMQP_URL", "amqp://b/")
	if got := rabbitURL(); got != "amqp://a/" {
		t.Fatalf("rabbitURL = %q", got)
	}
	t.Setenv("RABBITMQ_URL", "")
	if got := rabbitURL(); got != "amqp://b/" {
		t.Fatalf("rabbitURL = %q", got)
	}
}

func TestRateLimitAuthBucket(t *testing.T) {
	t.Setenv("RATE_LIMIT_AUTH_CAPACITY", "3")
	t.Setenv("RATE_LIMIT_AUTH_REFILL_EVERY", "1m")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	cfg := LoadRateLimitConfig()
	if cfg.TTL != 5*time.Minute {
		t.Errorf("TTL should be raised to 5 refill periods, got %s", cfg.TTL)
	}
	auth := cfg.Auth()
	if auth.Capacity != 3 || auth.RefillInterval != time.Minute || auth.KeyStrategy != "ip_route" {
		t.Fatalf("unexpected auth bucket %+v", auth)
	}
	if auth.Prefix != "rl:auth" {
		t.Errorf("Prefix = %q", auth.Prefix)
	}
}

func TestRedisOptionsHostPortWins(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("REDIS_DB", "2")
	opts := RedisOptions()
	if opts.Addr != "redis:6379" || opts.DB != 2 {
		t.Fatalf("unexpected options %+v", opts)
	}
}
