package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuanvumaihuynh/ledger/internal/config"
	"github.com/tuanvumaihuynh/ledger/internal/event"
)

type testConfig struct {
	Log   config.Log
	MySQL config.MySQL
	HTTP  config.HTTP
	Sweep config.Sweep
	Kafka config.Kafka
}

func setDBEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_USER", "ledger")
	t.Setenv("DB_PASSWORD", "s3cret")
	t.Setenv("DB_NAME", "accounting")
}

func TestNew(t *testing.T) {
	t.Run("Should apply defaults", func(t *testing.T) {
		setDBEnv(t)

		cfg, err := config.New[testConfig]()
		require.NoError(t, err)

		assert.Equal(t, "db.internal", cfg.MySQL.Host)
		assert.Equal(t, 3306, cfg.MySQL.Port)
		assert.Equal(t, 10, cfg.MySQL.ConnectionLimit)
		assert.Equal(t, 0, cfg.MySQL.QueueLimit)
		assert.Equal(t, 60*time.Second, cfg.MySQL.ConnectTimeout)
		assert.Equal(t, 60*time.Second, cfg.MySQL.AcquireTimeout)
		assert.Equal(t, 60*time.Second, cfg.MySQL.IdleTimeout)
		assert.True(t, cfg.MySQL.KeepAlive)

		assert.Equal(t, uint32(5000), cfg.HTTP.Port)
		assert.Equal(t, int64(10<<20), cfg.HTTP.Body.Limit)
		assert.Equal(t, []string{"*"}, cfg.HTTP.CorsAllowedOrigins)

		assert.Equal(t, "0 0 * * *", cfg.Sweep.Schedule)
		assert.False(t, cfg.Kafka.Enabled())
		assert.Equal(t, event.TopicInvoiceOverdueSwept, cfg.Kafka.ReportTopic())
		assert.Equal(t, config.LogFormatText, cfg.Log.Format)
	})

	t.Run("Should fail fast when credentials are missing", func(t *testing.T) {
		t.Setenv("DB_HOST", "db.internal")
		t.Setenv("DB_NAME", "accounting")

		_, err := config.New[testConfig]()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DB_USER")
	})

	t.Run("Should reject an empty host", func(t *testing.T) {
		setDBEnv(t)
		t.Setenv("DB_HOST", "")

		_, err := config.New[testConfig]()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Host")
	})

	t.Run("Should reject a zero connection limit", func(t *testing.T) {
		setDBEnv(t)
		t.Setenv("DB_CONNECTION_LIMIT", "0")

		_, err := config.New[testConfig]()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ConnectionLimit")
	})

	t.Run("Should reject an unknown log format", func(t *testing.T) {
		setDBEnv(t)
		t.Setenv("LOG_FORMAT", "xml")

		_, err := config.New[testConfig]()
		require.Error(t, err)
	})
}

func TestSweepLocation(t *testing.T) {
	loc, err := config.Sweep{Timezone: "UTC"}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	_, err = config.Sweep{Timezone: "Mars/Olympus"}.Location()
	assert.Error(t, err)
}

func TestKafkaEnabled(t *testing.T) {
	assert.False(t, config.Kafka{}.Enabled())
	assert.True(t, config.Kafka{Addresses: []string{"localhost:9092"}}.Enabled())
}

func TestKafkaReportTopic(t *testing.T) {
	t.Run("Should default to the overdue swept topic", func(t *testing.T) {
		assert.Equal(t, event.TopicInvoiceOverdueSwept, config.Kafka{}.ReportTopic())
	})

	t.Run("Should prefer the configured topic", func(t *testing.T) {
		setDBEnv(t)
		t.Setenv("KAFKA_SWEEP_TOPIC", "billing.overdue")

		cfg, err := config.New[testConfig]()
		require.NoError(t, err)
		assert.Equal(t, "billing.overdue", cfg.Kafka.ReportTopic())
	})
}
