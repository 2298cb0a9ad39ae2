package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, name := range []string{
		"STORE_BACKEND", "REDIS_ADDR", "MEMCACHED_ADDR", "ENDPOINT", "PORT", "DATABASE_URL",
		"CHARGE_STRATEGY", "BALANCE_KEY", "DEFAULT_BALANCE", "BALANCE_TTL", "LISTEN_ADDR",
	} {
		t.Setenv(name, "")
	}

	cfg := Load()
	require.Equal(t, BackendMemory, cfg.StoreBackend)
	require.Equal(t, "decrement", cfg.Strategy)
	require.Equal(t, "account1/balance", cfg.BalanceKey)
	require.EqualValues(t, 100, cfg.DefaultBalance)
	require.Equal(t, 10, cfg.CASMaxAttempts)
	require.Equal(t, 100, cfg.WatchMaxAttempts)
	require.Equal(t, ":8080", cfg.ListenAddr)
	require.Equal(t, 15, cfg.GracefulShutdownTimeout)
	require.Zero(t, cfg.BalanceTTL)
	require.NoError(t, cfg.Validate())
}

func TestLoadEndpointAndPort(t *testing.T) {
	t.Setenv("STORE_BACKEND", BackendMemcached)
	t.Setenv("MEMCACHED_ADDR", "")
	t.Setenv("ENDPOINT", "cache.internal")
	t.Setenv("PORT", "")
	t.Setenv("CHARGE_STRATEGY", "")

	cfg := Load()
	require.Equal(t, "cache.internal:11211", cfg.StoreAddr)
	require.Equal(t, "cas", cfg.Strategy)
	require.NoError(t, cfg.Validate())
}

func TestLoadExplicitAddrWins(t *testing.T) {
	t.Setenv("STORE_BACKEND", BackendRedis)
	t.Setenv("REDIS_ADDR", "10.0.0.1:6380")
	t.Setenv("ENDPOINT", "ignored")
	t.Setenv("BALANCE_TTL", "1h")

	cfg := Load()
	require.Equal(t, "10.0.0.1:6380", cfg.StoreAddr)
	require.Equal(t, time.Hour, cfg.BalanceTTL)
}

func TestValidate(t *testing.T) {
	base := Config{StoreBackend: BackendMemory, DefaultBalance: 100, CASMaxAttempts: 10, WatchMaxAttempts: 100}
	require.NoError(t, base.Validate())

	bad := base
	bad.StoreBackend = "etcd"
	require.Error(t, bad.Validate())

	bad = base
	bad.StoreBackend = BackendRedis
	require.Error(t, bad.Validate())

	bad = base
	bad.StoreBackend = BackendPostgres
	require.Error(t, bad.Validate())

	bad = base
	bad.DefaultBalance = 10
	require.Error(t, bad.Validate())

	bad = base
	bad.CASMaxAttempts = 0
	require.Error(t, bad.Validate())
}
