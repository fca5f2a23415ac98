package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %s", cfg.Port)
	}
	if cfg.ReminderFirstOffset != 24*time.Hour {
		t.Errorf("expected default first reminder offset 24h, got %s", cfg.ReminderFirstOffset)
	}
	if cfg.ReminderSecondOffset != time.Hour {
		t.Errorf("expected default second reminder offset 1h, got %s", cfg.ReminderSecondOffset)
	}
	if cfg.VitalsMaxEntries != 30 {
		t.Errorf("expected default vitals capacity 30, got %d", cfg.VitalsMaxEntries)
	}
	if cfg.AlertCooldown != 15*time.Minute {
		t.Errorf("expected default alert cooldown 15m, got %s", cfg.AlertCooldown)
	}
	if cfg.PanicCooldown != 2*time.Minute {
		t.Errorf("expected default panic cooldown 2m, got %s", cfg.PanicCooldown)
	}
	if cfg.RateLimitRPS != 100 {
		t.Errorf("expected default rate limit 100 rps, got %f", cfg.RateLimitRPS)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	os.Setenv("PORT", "9090")
	os.Setenv("VITALS_MAX_ENTRIES", "7")
	os.Setenv("PANIC_COOLDOWN", "5m")
	defer func() {
		os.Unsetenv("PORT")
		os.Unsetenv("VITALS_MAX_ENTRIES")
		os.Unsetenv("PANIC_COOLDOWN")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Port)
	}
	if cfg.VitalsMaxEntries != 7 {
		t.Errorf("expected vitals capacity 7, got %d", cfg.VitalsMaxEntries)
	}
	if cfg.PanicCooldown != 5*time.Minute {
		t.Errorf("expected panic cooldown 5m, got %s", cfg.PanicCooldown)
	}
}

func TestConfig_IsDev(t *testing.T) {
	c := &Config{Env: "development"}
	if !c.IsDev() {
		t.Error("expected IsDev() to return true for development")
	}

	c.Env = "production"
	if c.IsDev() {
		t.Error("expected IsDev() to return false for production")
	}
	if !c.IsProduction() {
		t.Error("expected IsProduction() to return true for production")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		VitalsMaxEntries:     30,
		ReminderFirstOffset:  24 * time.Hour,
		ReminderSecondOffset: time.Hour,
		AlertCooldown:        15 * time.Minute,
		PanicCooldown:        2 * time.Minute,
		RateLimitRPS:         100,
		RateLimitBurst:       200,
		RequestTimeout:       30 * time.Second,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero vitals capacity", func(c *Config) { c.VitalsMaxEntries = 0 }},
		{"negative reminder offset", func(c *Config) { c.ReminderFirstOffset = -time.Hour }},
		{"negative alert cooldown", func(c *Config) { c.AlertCooldown = -time.Minute }},
		{"negative panic cooldown", func(c *Config) { c.PanicCooldown = -time.Minute }},
		{"zero rate limit", func(c *Config) { c.RateLimitRPS = 0 }},
		{"zero burst", func(c *Config) { c.RateLimitBurst = 0 }},
		{"zero request timeout", func(c *Config) { c.RequestTimeout = 0 }},
	}
	for _, tt := range tests {
		c := valid
		tt.mutate(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}
