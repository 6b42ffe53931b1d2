package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the task bot service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	AdminBotToken  string
	UserBotToken   string
	ChatAPIBaseURL string

	DatabaseURL string
	MasterKey   string

	// Daily reminder instants in Timezone.
	WorkStart Clock
	WorkEnd   Clock
	Timezone  *time.Location

	InviteCodeTTL time.Duration
}

// Clock is a wall-clock instant within a day (HH:MM).
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "taskbot"),
		AllowAnyOrigin:   false,
		AdminBotToken:    trimmedEnv("ADMIN_BOT_TOKEN"),
		UserBotToken:     trimmedEnv("USER_BOT_TOKEN"),
		ChatAPIBaseURL:   envOrDefault("CHAT_API_BASE_URL", "https://api.telegram.org"),
		DatabaseURL:      trimmedEnv("DATABASE_URL"),
		MasterKey:        trimmedEnv("MASTER_KEY"),
		ShutdownTimeout:  15 * time.Second,
		InviteCodeTTL:    24 * time.Hour,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.InviteCodeTTL, err = durationFromEnv("INVITE_CODE_TTL", cfg.InviteCodeTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	cfg.WorkStart, err = clockFromEnv("WORK_START_TIME", Clock{Hour: 9, Minute: 30})
	if err != nil {
		return Config{}, err
	}
	cfg.WorkEnd, err = clockFromEnv("WORK_END_TIME", Clock{Hour: 17, Minute: 30})
	if err != nil {
		return Config{}, err
	}

	tzName := envOrDefault("TIMEZONE", "Europe/Moscow")
	cfg.Timezone, err = time.LoadLocation(tzName)
	if err != nil {
		return Config{}, fmt.Errorf("TIMEZONE parse error: %w", err)
	}

	if cfg.AdminBotToken == "" {
		return Config{}, fmt.Errorf("ADMIN_BOT_TOKEN is required")
	}
	if cfg.UserBotToken == "" {
		return Config{}, fmt.Errorf("USER_BOT_TOKEN is required")
	}
	if cfg.MasterKey == "" {
		return Config{}, fmt.Errorf("MASTER_KEY is required")
	}
	if cfg.InviteCodeTTL < time.Minute {
		return Config{}, fmt.Errorf("INVITE_CODE_TTL must be at least 1m")
	}

	return cfg, nil
}

// ParseClock parses an "HH:MM" value.
func ParseClock(v string) (Clock, error) {
	parts := strings.SplitN(strings.TrimSpace(v), ":", 2)
	if len(parts) != 2 {
		return Clock{}, fmt.Errorf("expected HH:MM, got %q", v)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return Clock{}, fmt.Errorf("expected HH:MM, got %q", v)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return Clock{}, fmt.Errorf("expected HH:MM, got %q", v)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("clock out of range: %q", v)
	}
	return Clock{Hour: hour, Minute: minute}, nil
}

func clockFromEnv(key string, fallback Clock) (Clock, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	c, err := ParseClock(v)
	if err != nil {
		return Clock{}, fmt.Errorf("%s parse error: %w", key, err)
	}
	return c, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s parse error: %w", key, err)
	}
	return b, nil
}
