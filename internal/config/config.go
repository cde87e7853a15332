package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application's configuration.
type Config struct {
	Port           string
	AllowedOrigins []string
	StaticDir      string
	DeviceToken    string

	LivenessWindow time.Duration
	LocationFile   string
	UsersFile      string
	SessionTTL     time.Duration
	SessionStore   string // "memory" or "redis"
	SecureCookies  bool
	AlertTimezone  string

	Redis    RedisConfig
	InfluxDB InfluxDBConfig
	MQTT     MQTTConfig
	Telegram TelegramConfig
	SMS      SMSConfig
	SMTP     SMTPConfig

	Log struct {
		Level  string
		Format string
	}
}

// RedisConfig backs the optional Redis session table.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// InfluxDBConfig enables telemetry history when URL, Token and Org are all set.
type InfluxDBConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Enabled reports whether InfluxDB history is configured.
func (c InfluxDBConfig) Enabled() bool {
	return c.URL != "" && c.Token != "" && c.Org != ""
}

// MQTTConfig enables MQTT ingestion when Broker is set.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
}

type TelegramConfig struct {
	URL    string
	Token  string
	ChatID string
}

type SMSConfig struct {
	URL    string
	APIKey string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	Cooldown time.Duration
}

// LoadConfig loads the configuration from an optional .env file and the environment.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on system environment variables")
	}

	cfg := Config{
		Port:           getEnv("PORT", "3000"),
		AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		StaticDir:      getEnv("STATIC_DIR", "public"),
		DeviceToken:    os.Getenv("DEVICE_TOKEN"),
		LocationFile:   getEnv("LOCATION_FILE", "location-data.json"),
		UsersFile:      getEnv("USERS_FILE", "users.json"),
		SessionStore:   getEnv("SESSION_STORE", "memory"),
		AlertTimezone:  getEnv("ALERT_TIMEZONE", "Asia/Kolkata"),
	}

	var err error
	if cfg.LivenessWindow, err = getDuration("LIVENESS_WINDOW", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTL, err = getDuration("SESSION_TTL", time.Hour); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		if cfg.SecureCookies, err = strconv.ParseBool(v); err != nil {
			return Config{}, fmt.Errorf("invalid COOKIE_SECURE: %w", err)
		}
	}

	cfg.Redis = RedisConfig{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
	}
	if cfg.Redis.DB, err = getInt("REDIS_DB", 0); err != nil {
		return Config{}, err
	}

	cfg.InfluxDB = InfluxDBConfig{
		URL:    os.Getenv("INFLUXDB_URL"),
		Token:  os.Getenv("INFLUXDB_TOKEN"),
		Org:    os.Getenv("INFLUXDB_ORG"),
		Bucket: getEnv("INFLUXDB_BUCKET", "fallwatch"),
	}

	cfg.MQTT = MQTTConfig{
		Broker:   os.Getenv("MQTT_BROKER"),
		ClientID: getEnv("MQTT_CLIENT_ID", "fallwatch-server"),
		Username: os.Getenv("MQTT_USERNAME"),
		Password: os.Getenv("MQTT_PASSWORD"),
		Topic:    getEnv("MQTT_TOPIC", "fallwatch/+/readings"),
		QoS:      1,
	}

	cfg.Telegram = TelegramConfig{
		URL:    getEnv("TELEGRAM_API_URL", "https://api.telegram.org"),
		Token:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		ChatID: os.Getenv("TELEGRAM_CHAT_ID"),
	}

	cfg.SMS = SMSConfig{
		URL:    getEnv("FAST2SMS_URL", "https://www.fast2sms.com/dev/bulkV2"),
		APIKey: os.Getenv("FAST2SMS_API_KEY"),
	}

	cfg.SMTP = SMTPConfig{
		Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
		Username: os.Getenv("EMAIL_USER"),
		Password: os.Getenv("EMAIL_PASS"),
		From:     getEnv("EMAIL_FROM", os.Getenv("EMAIL_USER")),
		To:       splitList(os.Getenv("ALERT_EMAIL")),
	}
	if cfg.SMTP.Port, err = getInt("SMTP_PORT", 587); err != nil {
		return Config{}, err
	}
	if cfg.SMTP.Cooldown, err = getDuration("EMAIL_COOLDOWN", 2*time.Minute); err != nil {
		return Config{}, err
	}

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if cfg.SessionStore != "memory" && cfg.SessionStore != "redis" {
		return Config{}, fmt.Errorf("SESSION_STORE must be \"memory\" or \"redis\", got %q", cfg.SessionStore)
	}
	if cfg.LivenessWindow <= 0 {
		return Config{}, fmt.Errorf("LIVENESS_WINDOW must be positive, got %s", cfg.LivenessWindow)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
