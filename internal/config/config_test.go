package config

import "testing"

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/webhooks")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("default port = %s", cfg.Port)
	}
	if cfg.NumWorkers != 50 {
		t.Errorf("default workers = %d", cfg.NumWorkers)
	}
	if cfg.DisableThreshold != 5 {
		t.Errorf("default disable threshold = %d", cfg.DisableThreshold)
	}
	if cfg.DeliveryRateLimit != 0 {
		t.Errorf("default rate limit = %d", cfg.DeliveryRateLimit)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "9999")
	t.Setenv("NUM_WORKERS", "8")
	t.Setenv("DISABLE_THRESHOLD", "10")
	t.Setenv("DELIVERY_RATE_LIMIT", "25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Port != "9999" || cfg.NumWorkers != 8 || cfg.DisableThreshold != 10 || cfg.DeliveryRateLimit != 25 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379")

	if _, err := Load(); err == nil {
		t.Error("expected error when DATABASE_URL is missing")
	}
}

func TestLoad_MissingRedisURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/webhooks")
	t.Setenv("REDIS_URL", "")

	if _, err := Load(); err == nil {
		t.Error("expected error when REDIS_URL is missing")
	}
}

func TestLoad_RejectsZeroThreshold(t *testing.T) {
	setRequired(t)
	t.Setenv("DISABLE_THRESHOLD", "0")

	if _, err := Load(); err == nil {
		t.Error("expected error for a zero disable threshold")
	}
}

func TestGetEnvInt_IgnoresGarbage(t *testing.T) {
	t.Setenv("NUM_WORKERS", "many")
	if got := getEnvInt("NUM_WORKERS", 50); got != 50 {
		t.Errorf("expected fallback 50, got %d", got)
	}
}
