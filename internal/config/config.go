package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the runtime configuration of the server and the migrate tool.
type Config struct {
	Port        string
	DatabaseURL string

	LogLevel  string
	LogFormat string

	DemoUserID string

	Simulation Simulation

	// NotificationRetention caps stored notifications per user; 0 keeps all.
	NotificationRetention int

	FirebaseCredentialsFile   string
	FirebaseCredentialsBase64 string
	FCMTopic                  string

	RateLimitRPM       int
	CORSAllowedOrigins []string
}

// Simulation configures the fill-level simulation loop run per subscriber.
type Simulation struct {
	Interval          time.Duration
	ChangeProbability float64
	MinDelta          int
	MaxDelta          int
	FullThreshold     int
	// Seed of 0 means a time-based seed.
	Seed uint64
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("DEMO_USER_ID", "demo-user")
	v.SetDefault("SIM_INTERVAL", "10s")
	v.SetDefault("SIM_CHANGE_PROBABILITY", 0.1)
	v.SetDefault("SIM_MIN_DELTA", -3)
	v.SetDefault("SIM_MAX_DELTA", 6)
	v.SetDefault("SIM_FULL_THRESHOLD", 80)
	v.SetDefault("SIM_SEED", 0)
	v.SetDefault("NOTIFICATION_RETENTION", 0)
	v.SetDefault("FIREBASE_CREDENTIALS_FILE", "")
	v.SetDefault("FIREBASE_CREDENTIALS_BASE64", "")
	v.SetDefault("FCM_TOPIC", "containers")
	v.SetDefault("RATE_LIMIT_RPM", 300)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
}

// Load reads an optional .env file into the environment and then resolves
// every setting from the environment, falling back to defaults.
// envFiles defaults to ".env"; a missing file is not an error.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// godotenv never overrides variables already set in the process.
		_ = godotenv.Load(f)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Port:        v.GetString("PORT"),
		DatabaseURL: v.GetString("DATABASE_URL"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		LogFormat:   v.GetString("LOG_FORMAT"),
		DemoUserID:  v.GetString("DEMO_USER_ID"),
		Simulation: Simulation{
			Interval:          v.GetDuration("SIM_INTERVAL"),
			ChangeProbability: v.GetFloat64("SIM_CHANGE_PROBABILITY"),
			MinDelta:          v.GetInt("SIM_MIN_DELTA"),
			MaxDelta:          v.GetInt("SIM_MAX_DELTA"),
			FullThreshold:     v.GetInt("SIM_FULL_THRESHOLD"),
			Seed:              v.GetUint64("SIM_SEED"),
		},
		NotificationRetention:     v.GetInt("NOTIFICATION_RETENTION"),
		FirebaseCredentialsFile:   v.GetString("FIREBASE_CREDENTIALS_FILE"),
		FirebaseCredentialsBase64: v.GetString("FIREBASE_CREDENTIALS_BASE64"),
		FCMTopic:                  v.GetString("FCM_TOPIC"),
		RateLimitRPM:              v.GetInt("RATE_LIMIT_RPM"),
		CORSAllowedOrigins:        splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Port) == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	if c.DemoUserID == "" {
		errs = append(errs, errors.New("DEMO_USER_ID must not be empty"))
	}
	if c.Simulation.Interval <= 0 {
		errs = append(errs, fmt.Errorf("SIM_INTERVAL must be positive, got %s", c.Simulation.Interval))
	}
	if c.Simulation.ChangeProbability < 0 || c.Simulation.ChangeProbability > 1 {
		errs = append(errs, fmt.Errorf("SIM_CHANGE_PROBABILITY must be within [0,1], got %v", c.Simulation.ChangeProbability))
	}
	if c.Simulation.MinDelta > c.Simulation.MaxDelta {
		errs = append(errs, fmt.Errorf("SIM_MIN_DELTA (%d) must not exceed SIM_MAX_DELTA (%d)", c.Simulation.MinDelta, c.Simulation.MaxDelta))
	}
	if c.Simulation.FullThreshold < 0 || c.Simulation.FullThreshold > 100 {
		errs = append(errs, fmt.Errorf("SIM_FULL_THRESHOLD must be within [0,100], got %d", c.Simulation.FullThreshold))
	}
	if c.NotificationRetention < 0 {
		errs = append(errs, errors.New("NOTIFICATION_RETENTION must not be negative"))
	}
	if c.RateLimitRPM < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPM must not be negative"))
	}

	return errors.Join(errs...)
}

// UsesPostgres reports whether a database URL was configured.
func (c *Config) UsesPostgres() bool {
	return c.DatabaseURL != ""
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
