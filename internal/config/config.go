package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

// Supported store backends.
const (
	BackendMemory    = "memory"
	BackendRedis     = "redis"
	BackendMemcached = "memcached"
	BackendPostgres  = "postgres"
)

// Config holds configuration loaded from environment variables.
type Config struct {
	StoreBackend string
	StoreAddr    string // host:port for redis and memcached
	DatabaseURL  string
	StoreTimeout time.Duration

	Strategy         string
	BalanceKey       string
	DefaultBalance   int64
	BalanceTTL       time.Duration
	CASMaxAttempts   int
	WatchMaxAttempts int

	BreakerFailures int
	BreakerCooldown time.Duration

	ListenAddr              string
	GracefulShutdownTimeout int
}

// Load reads environment variables and returns a Config with sensible defaults.
func Load() Config {
	cfg := Config{
		StoreBackend: os.Getenv("STORE_BACKEND"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		Strategy:     os.Getenv("CHARGE_STRATEGY"),
		BalanceKey:   os.Getenv("BALANCE_KEY"),
		ListenAddr:   os.Getenv("LISTEN_ADDR"),
	}
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = BackendMemory
	}
	cfg.StoreAddr = storeAddr(cfg.StoreBackend)
	if cfg.Strategy == "" {
		cfg.Strategy = defaultStrategy(cfg.StoreBackend)
	}
	if cfg.BalanceKey == "" {
		cfg.BalanceKey = "account1/balance"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}

	cfg.DefaultBalance = envInt64("DEFAULT_BALANCE", 100)
	cfg.CASMaxAttempts = int(envInt64("CAS_MAX_ATTEMPTS", 10))
	cfg.WatchMaxAttempts = int(envInt64("WATCH_MAX_ATTEMPTS", 100))
	cfg.BreakerFailures = int(envInt64("BREAKER_FAILURES", 5))
	cfg.GracefulShutdownTimeout = int(envInt64("GRACEFUL_SHUTDOWN_TIMEOUT", 15))
	cfg.StoreTimeout = envDuration("STORE_TIMEOUT", 2*time.Second)
	cfg.BreakerCooldown = envDuration("BREAKER_COOLDOWN", 5*time.Second)
	cfg.BalanceTTL = envDuration("BALANCE_TTL", 0)
	return cfg
}

// Validate reports settings that would make the process misbehave.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendRedis, BackendMemcached:
		if c.StoreAddr == "" {
			return fmt.Errorf("%s backend needs ENDPOINT or %s_ADDR", c.StoreBackend, envPrefix(c.StoreBackend))
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("postgres backend needs DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.DefaultBalance <= 0 {
		return fmt.Errorf("DEFAULT_BALANCE must be positive, got %d", c.DefaultBalance)
	}
	if c.DefaultBalance/20 <= 0 {
		return fmt.Errorf("DEFAULT_BALANCE %d is too small for a default charge", c.DefaultBalance)
	}
	if c.CASMaxAttempts <= 0 || c.WatchMaxAttempts <= 0 {
		return fmt.Errorf("attempt bounds must be positive")
	}
	return nil
}

// storeAddr prefers <BACKEND>_ADDR and falls back to ENDPOINT:PORT.
func storeAddr(backend string) string {
	prefix := envPrefix(backend)
	if prefix == "" {
		return ""
	}
	if addr := os.Getenv(prefix + "_ADDR"); addr != "" {
		return addr
	}
	host := os.Getenv("ENDPOINT")
	if host == "" {
		return ""
	}
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort(backend)
	}
	return net.JoinHostPort(host, port)
}

func envPrefix(backend string) string {
	switch backend {
	case BackendRedis:
		return "REDIS"
	case BackendMemcached:
		return "MEMCACHED"
	}
	return ""
}

func defaultPort(backend string) string {
	if backend == BackendMemcached {
		return "11211"
	}
	return "6379"
}

// defaultStrategy picks the primitive each backend is best at.
func defaultStrategy(backend string) string {
	switch backend {
	case BackendMemcached, BackendPostgres:
		return "cas"
	default:
		return "decrement"
	}
}

func envInt64(name string, def int64) int64 {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envDuration(name string, def time.Duration) time.Duration {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
