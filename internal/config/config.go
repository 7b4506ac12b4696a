package config

import (
	"errors"
	"os"
	"time"

	"github.com/hray3182/Upkeep/internal/rrule"
	"github.com/joho/godotenv"
)

type Config struct {
	Env           string
	DatabaseURI   string
	TelegramToken string
	AIAPIKey      string
	AIBaseURL     string
	AIModel       string

	NATSURL     string
	NATSSubject string
	DeviceName  string

	FCMCredentialsFile string
	FCMTopic           string

	MetricsAddr string

	ReevaluateDebounce    time.Duration
	ReevaluateInterval    time.Duration
	DispatchInterval      time.Duration
	DistanceReminderDelay time.Duration
	FallbackRule          string
}

func Load() (*Config, error) {
	_ = godotenv.Load() // .env is optional in production

	hostname, _ := os.Hostname()

	cfg := &Config{
		Env:           getEnvOrDefault("APP_ENV", "development"),
		DatabaseURI:   os.Getenv("DATABASE_URI"),
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		AIAPIKey:      os.Getenv("AI_API_KEY"),
		AIBaseURL:     getEnvOrDefault("AI_BASE_URL", "https://openrouter.ai/api/v1"),
		AIModel:       getEnvOrDefault("AI_MODEL", "openai/gpt-4o-mini"),

		NATSURL:     os.Getenv("NATS_URL"),
		NATSSubject: getEnvOrDefault("NATS_SUBJECT", "upkeep.data.changed"),
		DeviceName:  getEnvOrDefault("DEVICE_NAME", hostname),

		FCMCredentialsFile: os.Getenv("FCM_CREDENTIALS_FILE"),
		FCMTopic:           getEnvOrDefault("FCM_TOPIC", "upkeep-reminders"),

		MetricsAddr: os.Getenv("METRICS_ADDR"),

		ReevaluateDebounce:    getDurationOrDefault("REEVALUATE_DEBOUNCE", 500*time.Millisecond),
		ReevaluateInterval:    getDurationOrDefault("REEVALUATE_INTERVAL", 15*time.Minute),
		DispatchInterval:      getDurationOrDefault("DISPATCH_INTERVAL", 30*time.Second),
		DistanceReminderDelay: getDurationOrDefault("DISTANCE_REMINDER_DELAY", 5*time.Second),
		FallbackRule:          getEnvOrDefault("REMINDER_FALLBACK_RULE", rrule.DefaultFallbackRule),
	}

	if err := rrule.Validate(cfg.FallbackRule); err != nil {
		cfg.FallbackRule = rrule.DefaultFallbackRule
	}

	return cfg, nil
}

// Validate reports missing required settings.
func (c *Config) Validate() error {
	if c.DatabaseURI == "" {
		return errors.New("DATABASE_URI is required")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
