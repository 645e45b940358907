package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds everything the checkout API needs from the environment.
// Missing required values are a startup error, not a mid-request surprise.
type Config struct {
	Port                string
	PostgresURL         string
	AppBaseURL          string
	StripeSecretKey     string
	StripeWebhookSecret string
	JWTSecret           string
	KafkaBrokers        []string
}

func Load() (*Config, error) {
	// Local dev convenience; in real deployments the environment is set by
	// the orchestrator and .env does not exist.
	_ = godotenv.Load()

	cfg := &Config{
		Port:                os.Getenv("PORT"),
		PostgresURL:         os.Getenv("POSTGRES_URL"),
		AppBaseURL:          strings.TrimRight(os.Getenv("APP_BASE_URL"), "/"),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
	}

	if cfg.Port == "" {
		cfg.Port = "8081"
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	required := []struct {
		name  string
		value string
	}{
		{"POSTGRES_URL", cfg.PostgresURL},
		{"APP_BASE_URL", cfg.AppBaseURL},
		{"STRIPE_SECRET_KEY", cfg.StripeSecretKey},
		{"STRIPE_WEBHOOK_SECRET", cfg.StripeWebhookSecret},
		{"JWT_SECRET", cfg.JWTSecret},
	}
	for _, req := range required {
		if req.value == "" {
			return nil, fmt.Errorf("%s environment variable is required", req.name)
		}
	}

	return cfg, nil
}
