package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const configFileEnv = "CONFIG_FILE"

type Config struct {
	Environment string `yaml:"env"`
	LogLevel    string `yaml:"log_level"`
	HTTPPort    string `yaml:"http_port"`
	DBDSN       string `yaml:"db_dsn"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	AuthJWTSecret        string `yaml:"auth_jwt_secret"`
	MediaTokenSecret     string `yaml:"media_token_secret"`
	MediaTokenTTLSeconds int    `yaml:"media_token_ttl_seconds"`
	JoinWindowMinutes    int    `yaml:"join_window_minutes"`

	TelegramToken         string `yaml:"telegram_token"`
	TelegramDefaultChatID int64  `yaml:"telegram_default_chat_id"`

	InternalAPIToken string `yaml:"internal_api_token"`
	DefaultTimezone  string `yaml:"default_timezone"`
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	} else {
		log.Println("Loaded configuration from .env file")
	}

	cfg := &Config{}

	// YAML-файл задаёт базу, переменные окружения её перекрывают
	if path := strings.TrimSpace(os.Getenv(configFileEnv)); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Printf("Config loaded (env=%s, port=%s)\n", cfg.Environment, cfg.HTTPPort)

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	envString("ENV", &cfg.Environment)
	envString("LOG_LEVEL", &cfg.LogLevel)
	envString("HTTP_PORT", &cfg.HTTPPort)
	envString("DB_DSN", &cfg.DBDSN)
	envString("REDIS_ADDR", &cfg.RedisAddr)
	envString("REDIS_PASSWORD", &cfg.RedisPassword)
	envString("AUTH_JWT_SECRET", &cfg.AuthJWTSecret)
	envString("MEDIA_TOKEN_SECRET", &cfg.MediaTokenSecret)
	envString("TELEGRAM_TOKEN", &cfg.TelegramToken)
	envString("INTERNAL_API_TOKEN", &cfg.InternalAPIToken)
	envString("DEFAULT_TIMEZONE", &cfg.DefaultTimezone)

	if err := envInt("REDIS_DB", &cfg.RedisDB); err != nil {
		return err
	}
	if err := envInt("MEDIA_TOKEN_TTL_SECONDS", &cfg.MediaTokenTTLSeconds); err != nil {
		return err
	}
	if err := envInt("JOIN_WINDOW_MINUTES", &cfg.JoinWindowMinutes); err != nil {
		return err
	}
	if raw, ok := os.LookupEnv("TELEGRAM_DEFAULT_CHAT_ID"); ok && strings.TrimSpace(raw) != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return fmt.Errorf("config: parse TELEGRAM_DEFAULT_CHAT_ID: %w", err)
		}
		cfg.TelegramDefaultChatID = id
	}
	return nil
}

func envString(key string, target *string) {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		*target = val
	}
}

func envInt(key string, target *int) error {
	val, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(val) == "" {
		return nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", key, err)
	}
	*target = parsed
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTPPort == "" {
		cfg.HTTPPort = "8080"
	}
	if cfg.MediaTokenTTLSeconds == 0 {
		cfg.MediaTokenTTLSeconds = 3600
	}
	if cfg.JoinWindowMinutes == 0 {
		cfg.JoinWindowMinutes = 15
	}
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = "UTC"
	}
}

// Validate проверяет обязательные поля и значения
func (c *Config) Validate() error {
	if c.DBDSN == "" {
		return fmt.Errorf("DB_DSN is required but not set")
	}
	if c.AuthJWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required but not set")
	}
	if c.MediaTokenSecret == "" {
		return fmt.Errorf("MEDIA_TOKEN_SECRET is required but not set")
	}
	if c.MediaTokenTTLSeconds < 0 {
		return fmt.Errorf("MEDIA_TOKEN_TTL_SECONDS must be positive")
	}
	if c.JoinWindowMinutes < 0 {
		return fmt.Errorf("JOIN_WINDOW_MINUTES must not be negative")
	}
	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		return fmt.Errorf("DEFAULT_TIMEZONE %q is not a known timezone", c.DefaultTimezone)
	}
	return nil
}

func (c *Config) GetDBDSN() string {
	return c.DBDSN
}

// Location - часовой пояс по умолчанию для шаблонов без своего пояса
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) JoinWindow() time.Duration {
	return time.Duration(c.JoinWindowMinutes) * time.Minute
}
