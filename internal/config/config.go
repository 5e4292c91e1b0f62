// Package config loads all runtime settings from the environment. Groups
// are prefixed: APP_, SERVER_, DB_, REDIS_ and SECURITY_.
package config

import (
	"fmt"
	"net/url"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Worker scheduling strategies for splitting the connection budget.
const (
	StrategyStable     = "stable"
	StrategyThroughput = "throughput"
)

type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Security SecurityConfig
}

type AppConfig struct {
	RootPath    string
	Title       string
	Env         string
	Version     string
	Debug       bool
	CORSOrigins []string
	SentryDSN   string
}

type ServerConfig struct {
	Host     string
	Port     int
	Workers  int
	Strategy string
	Log      bool
}

type DatabaseConfig struct {
	Driver                string
	Host                  string
	Port                  int
	Name                  string
	User                  string
	Password              string
	ReplicaHost           string
	ReplicaUser           string
	ReplicaPassword       string
	ConnectionTimeout     int
	MinConnections        int32
	MaxConnections        int32
	ReplicaMaxConnections int32
	PingConnection        bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	DB       int
}

type SecurityConfig struct {
	Algorithm       string
	SecretKey       string
	PublicKey       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// Load reads the full configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			RootPath:    getEnv("APP_ROOT_PATH", ""),
			Title:       getEnv("APP_TITLE", "warden"),
			Env:         getEnv("APP_ENV", "development"),
			Version:     getEnv("APP_VERSION", "dev"),
			Debug:       getEnvAsBool("APP_DEBUG", false),
			CORSOrigins: getEnvAsSlice("APP_CORS_ORIGINS"),
			SentryDSN:   getEnv("SENTRY_DSN", ""),
		},
		Server: ServerConfig{
			Host:     getEnv("SERVER_HOST", "127.0.0.1"),
			Port:     getEnvAsInt("SERVER_PORT", 9393),
			Workers:  resolveWorkers(getEnv("SERVER_WORKERS", "auto")),
			Strategy: getEnv("SERVER_STRATEGY", StrategyThroughput),
			Log:      getEnvAsBool("SERVER_LOG", true),
		},
		Database: DatabaseConfig{
			Driver:                getEnv("DB_DRIVER", "postgres"),
			Host:                  getEnv("DB_HOST", "127.0.0.1"),
			Port:                  getEnvAsInt("DB_PORT", 5432),
			Name:                  getEnv("DB_NAME", "warden"),
			User:                  getEnv("DB_USER", "postgres"),
			Password:              getEnv("DB_PASSWORD", ""),
			ReplicaHost:           getEnv("DB_REPLICA_HOST", ""),
			ReplicaUser:           getEnv("DB_REPLICA_USER", "replicator"),
			ReplicaPassword:       getEnv("DB_REPLICA_PASSWORD", ""),
			ConnectionTimeout:     getEnvAsInt("DB_CONNECTION_TIMEOUT", 10),
			MinConnections:        int32(getEnvAsInt("DB_MIN_CONNECTIONS", 10)),
			MaxConnections:        int32(getEnvAsInt("DB_MAX_CONNECTIONS", 100)),
			ReplicaMaxConnections: int32(getEnvAsInt("DB_REPLICA_MAX_CONNECTIONS", 100)),
			PingConnection:        getEnvAsBool("DB_PING_CONNECTION", true),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "127.0.0.1"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Username: getEnv("REDIS_USERNAME", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Security: SecurityConfig{
			Algorithm:       getEnv("SECURITY_ALGORITHM", "HS256"),
			SecretKey:       getEnv("SECURITY_SECRET_KEY", ""),
			PublicKey:       getEnv("SECURITY_PUBLIC_KEY", ""),
			AccessTokenTTL:  time.Duration(getEnvAsInt("SECURITY_ACCESS_TOKEN_EXPIRE_SECONDS", 3600)) * time.Second,
			RefreshTokenTTL: time.Duration(getEnvAsInt("SECURITY_REFRESH_TOKEN_EXPIRE_SECONDS", 86400)) * time.Second,
		},
	}

	if cfg.Security.SecretKey == "" {
		return nil, fmt.Errorf("SECURITY_SECRET_KEY is required")
	}
	if cfg.Server.Strategy != StrategyStable && cfg.Server.Strategy != StrategyThroughput {
		return nil, fmt.Errorf("SERVER_STRATEGY must be %q or %q", StrategyStable, StrategyThroughput)
	}
	return cfg, nil
}

// Addr is the host:port the server binds to.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// MasterURL builds the primary connection string.
func (d DatabaseConfig) MasterURL() string {
	return d.dsn(d.Host, d.User, d.Password)
}

// ReplicaURL builds the read replica connection string. Falls back to the
// master when no replica host is configured.
func (d DatabaseConfig) ReplicaURL() string {
	if !d.HasReplica() {
		return d.MasterURL()
	}
	return d.dsn(d.ReplicaHost, d.ReplicaUser, d.ReplicaPassword)
}

// HasReplica reports whether a separate read replica is configured.
func (d DatabaseConfig) HasReplica() bool { return d.ReplicaHost != "" }

func (d DatabaseConfig) dsn(host, user, password string) string {
	return fmt.Sprintf("%s://%s:%s@%s:%d/%s",
		d.Driver, url.QueryEscape(user), url.QueryEscape(password), host, d.Port, d.Name)
}

// Addr is the host:port of the Redis server.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// PoolSizing are the pgx pool bounds derived from the worker split.
type PoolSizing struct {
	MinConns int32
	MaxConns int32
}

// SizePool splits the total connection budget across workers and scales the
// per-worker bounds back to one shared pool. The stable strategy keeps the
// floor at the configured minimum; throughput pushes each worker close to
// its share of the maximum.
func SizePool(totalMin, totalMax, workers int32, strategy string) PoolSizing {
	if workers < 1 {
		workers = 1
	}
	perWorkerMax := ceilDiv(totalMax, workers)

	var size, overflow int32
	switch strategy {
	case StrategyStable:
		size = totalMin / workers
		overflow = perWorkerMax - size
	default:
		floor := ceilDiv(totalMin, workers)
		size = perWorkerMax - 1
		if size < floor {
			size = floor
		}
		if size > perWorkerMax {
			size = perWorkerMax
		}
		overflow = perWorkerMax - size
	}
	if size < 1 {
		size = 1
	}
	if overflow < 0 {
		overflow = 0
	}

	sizing := PoolSizing{
		MinConns: size * workers,
		MaxConns: (size + overflow) * workers,
	}
	if sizing.MinConns > totalMin {
		sizing.MinConns = totalMin
	}
	if sizing.MaxConns > totalMax {
		sizing.MaxConns = totalMax
	}
	if sizing.MinConns > sizing.MaxConns {
		sizing.MinConns = sizing.MaxConns
	}
	return sizing
}

// ConcurrencyLimit caps in-flight requests at each worker's share of the
// master and replica connection budgets. Zero means unlimited and is the
// single-worker answer: one worker owns the whole budget anyway.
func ConcurrencyLimit(maxConns, replicaMaxConns, workers int32) int64 {
	if workers <= 1 {
		return 0
	}
	return int64(ceilDiv(maxConns, workers) + ceilDiv(replicaMaxConns, workers))
}

func ceilDiv(a, b int32) int32 {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}

func resolveWorkers(raw string) int {
	if strings.EqualFold(raw, "auto") {
		n := runtime.NumCPU() - 1
		if n < 1 {
			n = 1
		}
		return n
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsSlice(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
