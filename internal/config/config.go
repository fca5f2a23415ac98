package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                 string        `mapstructure:"PORT"`
	Env                  string        `mapstructure:"ENV"`
	CORSOrigins          []string      `mapstructure:"CORS_ORIGINS"`
	ReminderFirstOffset  time.Duration `mapstructure:"REMINDER_FIRST_OFFSET"`
	ReminderSecondOffset time.Duration `mapstructure:"REMINDER_SECOND_OFFSET"`
	VitalsMaxEntries     int           `mapstructure:"VITALS_MAX_ENTRIES"`
	AlertCooldown        time.Duration `mapstructure:"ALERT_COOLDOWN"`
	PanicCooldown        time.Duration `mapstructure:"PANIC_COOLDOWN"`
	RateLimitRPS         float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst       int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout       time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit            string        `mapstructure:"BODY_LIMIT"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("REMINDER_FIRST_OFFSET", "24h")
	v.SetDefault("REMINDER_SECOND_OFFSET", "1h")
	v.SetDefault("VITALS_MAX_ENTRIES", 30)
	v.SetDefault("ALERT_COOLDOWN", "15m")
	v.SetDefault("PANIC_COOLDOWN", "2m")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("BODY_LIMIT", "1M")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("REMINDER_FIRST_OFFSET")
	v.BindEnv("REMINDER_SECOND_OFFSET")
	v.BindEnv("VITALS_MAX_ENTRIES")
	v.BindEnv("ALERT_COOLDOWN")
	v.BindEnv("PANIC_COOLDOWN")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("REQUEST_TIMEOUT")
	v.BindEnv("BODY_LIMIT")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.VitalsMaxEntries <= 0 {
		return fmt.Errorf("VITALS_MAX_ENTRIES must be positive, got %d", c.VitalsMaxEntries)
	}
	if c.ReminderFirstOffset < 0 || c.ReminderSecondOffset < 0 {
		return fmt.Errorf("reminder offsets must not be negative")
	}
	if c.AlertCooldown < 0 {
		return fmt.Errorf("ALERT_COOLDOWN must not be negative, got %s", c.AlertCooldown)
	}
	if c.PanicCooldown < 0 {
		return fmt.Errorf("PANIC_COOLDOWN must not be negative, got %s", c.PanicCooldown)
	}
	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive, got %f", c.RateLimitRPS)
	}
	if c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be positive, got %d", c.RateLimitBurst)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	return nil
}
