package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 0.15, cfg.TaxRate)
	assert.Equal(t, 999, cfg.MaxQuantityPerLine)
	assert.Equal(t, float64(50), cfg.MaxDiscountPercent)
	assert.Equal(t, 3, cfg.SyncMaxAttempts)
	assert.Equal(t, 1500*time.Millisecond, cfg.SyncRetryDelay())
	assert.Equal(t, 7*24*time.Hour, cfg.SyncRetention())
	assert.Equal(t, "sqlite", cfg.QueueBackend)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("TAX_RATE", "0.05")
	t.Setenv("SYNC_MAX_ATTEMPTS", "5")
	t.Setenv("START_ONLINE", "false")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")

	cfg := Load()

	assert.Equal(t, 0.05, cfg.TaxRate)
	assert.Equal(t, 5, cfg.SyncMaxAttempts)
	assert.False(t, cfg.StartOnline)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("SYNC_RETRY_DELAY_MS", "soon")
	t.Setenv("TAX_RATE", "fifteen")

	cfg := Load()

	assert.Equal(t, 1500, cfg.SyncRetryDelayMs)
	assert.Equal(t, 0.15, cfg.TaxRate)
}

func TestLoad_CashierUsers(t *testing.T) {
	t.Setenv("CASHIER_USERS", "ana:secret, luis:pw2,broken,:nouser")

	cfg := Load()

	assert.Equal(t, map[string]string{"ana": "secret", "luis": "pw2"}, cfg.CashierUsers)
	assert.Equal(t, 8*time.Hour, cfg.JWTExpiry())
}

func TestLocation_FallsBackToLocal(t *testing.T) {
	cfg := &Config{Timezone: "Mars/Olympus_Mons"}
	assert.Equal(t, time.Local, cfg.Location())

	cfg.Timezone = "UTC"
	assert.Equal(t, time.UTC, cfg.Location())
}
