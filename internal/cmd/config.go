package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration. Every field can come from the
// optional YAML file and be overridden by environment variables.
type Config struct {
	Server struct {
		Port          string `yaml:"port"`
		InviteBaseURL string `yaml:"invite_base_url"`
	} `yaml:"server"`
	Storage struct {
		DataDir string `yaml:"data_dir"`
	} `yaml:"storage"`
	Sync struct {
		NATSURL           string        `yaml:"nats_url"`
		Bucket            string        `yaml:"bucket"`
		ReconnectWait     time.Duration `yaml:"reconnect_wait"`
		AuthEndpoint      string        `yaml:"auth_endpoint"`
		TelemetryEndpoint string        `yaml:"telemetry_endpoint"`
	} `yaml:"sync"`
	Prompts struct {
		URL  string `yaml:"url"`
		File string `yaml:"file"`
	} `yaml:"prompts"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func loadConfig(path string) (*Config, error) {
	var config Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.Server.Port = getEnv("PORT", defaultString(config.Server.Port, "8080"))
	config.Server.InviteBaseURL = getEnv("INVITE_BASE_URL",
		defaultString(config.Server.InviteBaseURL, "http://localhost:8080"))
	config.Storage.DataDir = getEnv("DATA_DIR", defaultString(config.Storage.DataDir, "data"))

	// An empty NATS URL means the process never attempts realtime sync and
	// every room runs against the local store.
	config.Sync.NATSURL = getEnv("NATS_URL", config.Sync.NATSURL)
	config.Sync.Bucket = getEnv("NATS_BUCKET", defaultString(config.Sync.Bucket, "ROOM_STATE"))
	if config.Sync.ReconnectWait <= 0 {
		config.Sync.ReconnectWait = time.Duration(getEnvAsInt("NATS_RECONNECT_WAIT_SECONDS", 2)) * time.Second
	}
	config.Sync.AuthEndpoint = getEnv("SYNC_AUTH_ENDPOINT", config.Sync.AuthEndpoint)
	config.Sync.TelemetryEndpoint = getEnv("TELEMETRY_ENDPOINT", config.Sync.TelemetryEndpoint)

	config.Prompts.URL = getEnv("PROMPTS_URL", config.Prompts.URL)
	config.Prompts.File = getEnv("PROMPTS_FILE", defaultString(config.Prompts.File, "prompts.json"))

	return &config, nil
}

func defaultString(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
