package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Lessons  LessonsConfig
	Schedule ScheduleConfig
	Notify   NotifyConfig
	VoteLink VoteLinkConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// LessonsConfig holds the rules that gate lesson changes.
type LessonsConfig struct {
	Location          *time.Location
	SeriesFile        string
	MinChangeLeadTime time.Duration
	SlotGranularity   time.Duration
	SlotLimit         int
	RescheduleHorizon int
	UpcomingHorizon   int
}

// ScheduleConfig governs the weekly schedule view cache.
type ScheduleConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// NotifyConfig configures outbound notification delivery.
type NotifyConfig struct {
	NATSURL       string
	SubjectPrefix string
	Workers       int
	Retries       int
	RatePerSecond float64
}

// VoteLinkConfig configures signed one-tap vote links.
type VoteLinkConfig struct {
	Secret  string
	BaseURL string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	loc, err := time.LoadLocation(v.GetString("TIMEZONE"))
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	cfg.Lessons = LessonsConfig{
		Location:          loc,
		SeriesFile:        v.GetString("SERIES_FILE"),
		MinChangeLeadTime: parseDuration(v.GetString("MIN_CHANGE_LEAD_TIME"), 2*time.Hour),
		SlotGranularity:   parseDuration(v.GetString("SLOT_GRANULARITY"), 30*time.Minute),
		SlotLimit:         positiveOr(v.GetInt("SLOT_LIMIT"), 20),
		RescheduleHorizon: positiveOr(v.GetInt("RESCHEDULE_HORIZON_DAYS"), 14),
		UpcomingHorizon:   positiveOr(v.GetInt("UPCOMING_HORIZON_DAYS"), 14),
	}

	cfg.Schedule = ScheduleConfig{
		CacheEnabled: v.GetBool("ENABLE_SCHEDULE_CACHE"),
		CacheTTL:     parseDuration(v.GetString("SCHEDULE_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Notify = NotifyConfig{
		NATSURL:       v.GetString("NATS_URL"),
		SubjectPrefix: v.GetString("NATS_SUBJECT_PREFIX"),
		Workers:       positiveOr(v.GetInt("NOTIFY_WORKERS"), 2),
		Retries:       v.GetInt("NOTIFY_RETRIES"),
		RatePerSecond: v.GetFloat64("NOTIFY_RATE_PER_SEC"),
	}

	cfg.VoteLink = VoteLinkConfig{
		Secret:  v.GetString("VOTE_LINK_SECRET"),
		BaseURL: strings.TrimRight(v.GetString("VOTE_LINK_BASE_URL"), "/"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "lessonsync")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("TIMEZONE", "UTC")
	v.SetDefault("SERIES_FILE", "./series.yaml")
	v.SetDefault("MIN_CHANGE_LEAD_TIME", "2h")
	v.SetDefault("SLOT_GRANULARITY", "30m")
	v.SetDefault("SLOT_LIMIT", 20)
	v.SetDefault("RESCHEDULE_HORIZON_DAYS", 14)
	v.SetDefault("UPCOMING_HORIZON_DAYS", 14)

	v.SetDefault("ENABLE_SCHEDULE_CACHE", false)
	v.SetDefault("SCHEDULE_CACHE_TTL", "10m")

	v.SetDefault("NATS_URL", "")
	v.SetDefault("NATS_SUBJECT_PREFIX", "lessons.notify")
	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFY_RETRIES", 3)
	v.SetDefault("NOTIFY_RATE_PER_SEC", 25)

	v.SetDefault("VOTE_LINK_SECRET", "dev_vote_link_secret")
	v.SetDefault("VOTE_LINK_BASE_URL", "http://localhost:8080/api/v1/votes")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}

	return d
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
