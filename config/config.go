package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Presence   PresenceConfig
	Redis      RedisConfig
	Cloudinary CloudinaryConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
	Issuer        string
}

// PresenceConfig tunes the disconnect-watcher machinery. GracePeriod is how
// long after channel loss a user may still read as Online; PongWait/PingPeriod
// follow the usual websocket keepalive ratio.
type PresenceConfig struct {
	GracePeriod   time.Duration
	PongWait      time.Duration
	PingPeriod    time.Duration
	WriteWait     time.Duration
	SweepInterval time.Duration
}

// RedisConfig selects the Redis-backed lease manager when Addr is set;
// otherwise leases run on in-process timers.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
}

func Load() *Config {
	gracePeriod := envDuration("PRESENCE_GRACE_PERIOD", 30*time.Second)
	pongWait := envDuration("PRESENCE_PONG_WAIT", 20*time.Second)
	return &Config{
		Server: ServerConfig{
			Port:         envString("PORT", "8080"),
			Env:          envString("APP_ENV", "development"),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:             envString("DATABASE_DSN", "nearme:nearme@tcp(localhost:3306)/nearme?charset=utf8mb4&parseTime=True&loc=Local"),
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		JWT: JWTConfig{
			AccessSecret:  envString("JWT_ACCESS_SECRET", "change-me-in-production"),
			RefreshSecret: envString("JWT_REFRESH_SECRET", "change-me-refresh"),
			AccessExpiry:  15 * time.Minute,
			RefreshExpiry: 168 * time.Hour,
			Issuer:        "nearme",
		},
		Presence: PresenceConfig{
			GracePeriod:   gracePeriod,
			PongWait:      pongWait,
			PingPeriod:    pongWait * 9 / 10,
			WriteWait:     10 * time.Second,
			SweepInterval: time.Second,
		},
		Redis: RedisConfig{
			Addr:     envString("REDIS_ADDR", ""),
			Password: envString("REDIS_PASSWORD", ""),
			DB:       envInt("REDIS_DB", 0),
		},
		Cloudinary: CloudinaryConfig{
			CloudName: envString("CLOUDINARY_CLOUD_NAME", ""),
			APIKey:    envString("CLOUDINARY_API_KEY", ""),
			APISecret: envString("CLOUDINARY_API_SECRET", ""),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
