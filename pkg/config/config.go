package config

import (
	"errors"
	"io/fs"
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
	Env  string
	Port int

	Database DatabaseConfig
	Redis    RedisConfig
	Log      LogConfig
	Remote   RemoteConfig
	Sync     SyncConfig
	Matcher  MatcherConfig
	Cache    CacheConfig
	CORS     CORSConfig
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

type LogConfig struct {
	Level  string
	Format string
}

// RemoteConfig points at the timetable source used by the CLI.
type RemoteConfig struct {
	SnapshotPath string
}

// SyncConfig governs the reconciliation run.
type SyncConfig struct {
	BatchSize               int
	LoginMaxAttempts        int
	LoginBackoff            time.Duration
	RepresentativeWeekShift int
	SemesterSplit           string
	Cron                    string
	LegacyTablePath         string
}

// MatcherConfig controls how events are projected onto the weekly timetable.
type MatcherConfig struct {
	Timezone string
}

// CacheConfig toggles Redis caching of impact results.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// CORSConfig lists the origins allowed to read the ops endpoints.
type CORSConfig struct {
	AllowedOrigins []string
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")

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

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Remote = RemoteConfig{
		SnapshotPath: v.GetString("REMOTE_SNAPSHOT_PATH"),
	}

	cfg.Sync = SyncConfig{
		BatchSize:               positiveOr(v.GetInt("SYNC_BATCH_SIZE"), 5),
		LoginMaxAttempts:        positiveOr(v.GetInt("SYNC_LOGIN_MAX_ATTEMPTS"), 3),
		LoginBackoff:            parseDuration(v.GetString("SYNC_LOGIN_BACKOFF"), 5*time.Second),
		RepresentativeWeekShift: v.GetInt("SYNC_REPRESENTATIVE_WEEK_OFFSET"),
		SemesterSplit:           v.GetString("SYNC_SEMESTER_SPLIT"),
		Cron:                    v.GetString("SYNC_CRON"),
		LegacyTablePath:         v.GetString("SYNC_LEGACY_TABLE_PATH"),
	}

	cfg.Matcher = MatcherConfig{
		Timezone: v.GetString("MATCHER_TIMEZONE"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("CACHE_ENABLED"),
		TTL:     parseDuration(v.GetString("CACHE_TTL"), 15*time.Minute),
	}

	cfg.CORS = CORSConfig{
		AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("REMOTE_SNAPSHOT_PATH", "./data/remote.yaml")

	v.SetDefault("SYNC_BATCH_SIZE", 5)
	v.SetDefault("SYNC_LOGIN_MAX_ATTEMPTS", 3)
	v.SetDefault("SYNC_LOGIN_BACKOFF", "5s")
	v.SetDefault("SYNC_REPRESENTATIVE_WEEK_OFFSET", 2)
	v.SetDefault("SYNC_SEMESTER_SPLIT", "02-01")
	v.SetDefault("SYNC_CRON", "0 3 * * 1")
	v.SetDefault("SYNC_LEGACY_TABLE_PATH", "")

	v.SetDefault("MATCHER_TIMEZONE", "Europe/Zurich")

	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("CACHE_TTL", "15m")

	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
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
