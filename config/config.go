package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ServerAddress string `yaml:"server_address"`
	SettingsFile  string `yaml:"settings_file"`
	OutputDir     string `yaml:"output_dir"`
	ReportPrefix  string `yaml:"report_prefix"`
	Language      string `yaml:"language"`
	Timezone      string `yaml:"timezone"`

	HTTPTimeout     time.Duration `yaml:"http_timeout"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	MaxPollAttempts int           `yaml:"max_poll_attempts"`
	ExportXLSX      bool          `yaml:"export_xlsx"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	JWTSecret             string   `yaml:"jwt_secret"`
	UIPasswordHash        string   `yaml:"ui_password_hash"`
	SettingsEncryptionKey string   `yaml:"settings_encryption_key"`
	CORSOrigins           []string `yaml:"cors_origins"`

	MQTTBroker   string `yaml:"mqtt_broker"`
	MQTTTopic    string `yaml:"mqtt_topic"`
	MQTTUsername string `yaml:"mqtt_username"`
	MQTTPassword string `yaml:"mqtt_password"`
}

func defaults() *Config {
	return &Config{
		ServerAddress:   ":8090",
		SettingsFile:    "goe_charger_settings.json",
		OutputDir:       "./reports",
		ReportPrefix:    "goe_charger_bericht",
		Language:        "de",
		Timezone:        "Europe/Berlin",
		HTTPTimeout:     30 * time.Second,
		PollInterval:    2 * time.Second,
		MaxPollAttempts: 30,
		LogLevel:        "info",
		LogFormat:       "json",
		JWTSecret:       "goe-report-secret-change-in-production",
		CORSOrigins:     []string{"http://localhost:5173", "http://localhost:4173"},
		MQTTTopic:       "goe-report",
	}
}

// Load reads an optional .env file, then the YAML file named by CONFIG_FILE,
// then lets environment variables override both.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: decode yaml: %w", err)
		}
	}

	cfg.ServerAddress = getEnv("SERVER_ADDRESS", cfg.ServerAddress)
	cfg.SettingsFile = getEnv("SETTINGS_FILE", cfg.SettingsFile)
	cfg.OutputDir = getEnv("OUTPUT_DIR", cfg.OutputDir)
	cfg.ReportPrefix = getEnv("REPORT_PREFIX", cfg.ReportPrefix)
	cfg.Language = getEnv("REPORT_LANGUAGE", cfg.Language)
	cfg.Timezone = getEnv("TIMEZONE", cfg.Timezone)
	cfg.HTTPTimeout = getEnvDuration("HTTP_TIMEOUT", cfg.HTTPTimeout)
	cfg.PollInterval = getEnvDuration("POLL_INTERVAL", cfg.PollInterval)
	cfg.MaxPollAttempts = getEnvInt("MAX_POLL_ATTEMPTS", cfg.MaxPollAttempts)
	cfg.ExportXLSX = getEnvBool("EXPORT_XLSX", cfg.ExportXLSX)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.UIPasswordHash = getEnv("UI_PASSWORD_HASH", cfg.UIPasswordHash)
	cfg.SettingsEncryptionKey = getEnv("SETTINGS_ENCRYPTION_KEY", cfg.SettingsEncryptionKey)
	cfg.CORSOrigins = getEnvList("CORS_ORIGINS", cfg.CORSOrigins)
	cfg.MQTTBroker = getEnv("MQTT_BROKER", cfg.MQTTBroker)
	cfg.MQTTTopic = getEnv("MQTT_TOPIC", cfg.MQTTTopic)
	cfg.MQTTUsername = getEnv("MQTT_USERNAME", cfg.MQTTUsername)
	cfg.MQTTPassword = getEnv("MQTT_PASSWORD", cfg.MQTTPassword)

	if cfg.MaxPollAttempts <= 0 {
		return nil, fmt.Errorf("config: MAX_POLL_ATTEMPTS must be positive, got %d", cfg.MaxPollAttempts)
	}
	if cfg.PollInterval < 0 {
		return nil, fmt.Errorf("config: POLL_INTERVAL must not be negative")
	}

	return cfg, nil
}

// Location resolves Timezone, falling back to the machine's local zone.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
