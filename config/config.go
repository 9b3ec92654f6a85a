package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Port      string `mapstructure:"PORT"`
	Env       string `mapstructure:"ENV"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`
	Timezone  string `mapstructure:"TIMEZONE"`

	DBDriver       string `mapstructure:"DB_DRIVER"`
	DBURL          string `mapstructure:"DB_URL"`
	DBMaxOpenConns int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns int    `mapstructure:"DB_MAX_IDLE_CONNS"`

	JWTSecret      string   `mapstructure:"JWT_SECRET"`
	JWTExpiryHours int      `mapstructure:"JWT_EXPIRY_HOURS"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`

	CronSecret               string        `mapstructure:"CRON_SECRET"`
	FollowUpCron             string        `mapstructure:"FOLLOWUP_CRON"`
	FollowUpSchedulerEnabled bool          `mapstructure:"FOLLOWUP_SCHEDULER_ENABLED"`
	FollowUpDispatchTimeout  time.Duration `mapstructure:"FOLLOWUP_DISPATCH_TIMEOUT"`
	FollowUpConcurrency      int           `mapstructure:"FOLLOWUP_CONCURRENCY"`
	FollowUpStaleClaimAfter  time.Duration `mapstructure:"FOLLOWUP_STALE_CLAIM_AFTER"`
	DispatchRatePerSec       int           `mapstructure:"DISPATCH_RATE_PER_SEC"`

	TwilioAccountSID     string `mapstructure:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken      string `mapstructure:"TWILIO_AUTH_TOKEN"`
	TwilioPhoneNumber    string `mapstructure:"TWILIO_PHONE_NUMBER"`
	TwilioWhatsAppNumber string `mapstructure:"TWILIO_WHATSAPP_NUMBER"`
}

var envKeys = []string{
	"PORT", "ENV", "LOG_LEVEL", "LOG_PRETTY", "TIMEZONE",
	"DB_DRIVER", "DB_URL", "DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS",
	"JWT_SECRET", "JWT_EXPIRY_HOURS", "CORS_ORIGINS",
	"CRON_SECRET", "FOLLOWUP_CRON", "FOLLOWUP_SCHEDULER_ENABLED",
	"FOLLOWUP_DISPATCH_TIMEOUT", "FOLLOWUP_CONCURRENCY", "FOLLOWUP_STALE_CLAIM_AFTER",
	"DISPATCH_RATE_PER_SEC",
	"TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_PHONE_NUMBER", "TWILIO_WHATSAPP_NUMBER",
}

// Load reads envFile (if present) into the process environment and then binds
// every known key from the environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		// A missing .env is normal outside local development.
		_ = godotenv.Load(envFile)
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
	v.SetDefault("TIMEZONE", "America/Sao_Paulo")
	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("JWT_EXPIRY_HOURS", 24)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("FOLLOWUP_CRON", "*/5 * * * *")
	v.SetDefault("FOLLOWUP_SCHEDULER_ENABLED", true)
	v.SetDefault("FOLLOWUP_DISPATCH_TIMEOUT", "15s")
	v.SetDefault("FOLLOWUP_CONCURRENCY", 1)
	v.SetDefault("FOLLOWUP_STALE_CLAIM_AFTER", "10m")
	v.SetDefault("DISPATCH_RATE_PER_SEC", 5)

	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	for i := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DBURL == "" {
		return fmt.Errorf("DB_URL is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	if c.DBDriver != DriverPostgres && c.DBDriver != DriverSQLite {
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.JWTExpiryHours <= 0 {
		c.JWTExpiryHours = 24
	}
	if c.FollowUpDispatchTimeout <= 0 {
		c.FollowUpDispatchTimeout = 15 * time.Second
	}
	if c.FollowUpConcurrency <= 0 {
		c.FollowUpConcurrency = 1
	}
	if c.FollowUpStaleClaimAfter <= 0 {
		c.FollowUpStaleClaimAfter = 10 * time.Minute
	}
	if c.DispatchRatePerSec <= 0 {
		c.DispatchRatePerSec = 5
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.JWTExpiryHours) * time.Hour
}

// TwilioEnabled reports whether real message dispatch is configured.
func (c *Config) TwilioEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != ""
}
