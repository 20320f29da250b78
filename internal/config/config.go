package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Required.
	BotToken      string // transport credential
	DeployChannel string // channel where the admin provisions
	AdminID       string // the one identity allowed to deploy

	// Optional.
	GatewayURL  string
	HTTPAddr    string
	MetricsAddr string
	NATSURL     string // empty disables event publishing
	DataDir     string
	RebootDelay time.Duration
}

func Load() (*Config, error) {
	// Load .env if present; doesn't override existing env vars
	_ = godotenv.Load()

	token := os.Getenv("VPSBOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("VPSBOT_TOKEN is required")
	}
	deployChannel := os.Getenv("VPSBOT_DEPLOY_CHANNEL")
	if deployChannel == "" {
		return nil, fmt.Errorf("VPSBOT_DEPLOY_CHANNEL is required")
	}
	adminID := os.Getenv("VPSBOT_ADMIN_ID")
	if adminID == "" {
		return nil, fmt.Errorf("VPSBOT_ADMIN_ID is required")
	}

	rebootDelay := 5 * time.Second
	if v := os.Getenv("VPSBOT_REBOOT_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("VPSBOT_REBOOT_DELAY must be a duration: %w", err)
		}
		rebootDelay = d
	}

	return &Config{
		BotToken:      token,
		DeployChannel: deployChannel,
		AdminID:       adminID,
		GatewayURL:    envOrDefault("VPSBOT_GATEWAY_URL", "ws://localhost:7700/gateway"),
		HTTPAddr:      envOrDefault("VPSBOT_HTTP_ADDR", ":8080"),
		MetricsAddr:   envOrDefault("VPSBOT_METRICS_ADDR", ":9090"),
		NATSURL:       os.Getenv("VPSBOT_NATS_URL"),
		DataDir:       envOrDefault("VPSBOT_DATA_DIR", "./data/badger"),
		RebootDelay:   rebootDelay,
	}, nil
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
