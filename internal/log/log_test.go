package log_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuanvumaihuynh/ledger/internal/config"
	"github.com/tuanvumaihuynh/ledger/internal/log"
	"github.com/tuanvumaihuynh/ledger/pkg/correlationid"
)

func TestNewHandler(t *testing.T) {
	t.Run("Should add correlation id to JSON records", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(log.NewHandler(&buf, config.Log{Format: config.LogFormatJSON, Level: slog.LevelInfo}))

		ctx := correlationid.NewContext(context.Background(), "req-42")
		logger.With(slog.String("service", "sweep")).InfoContext(ctx, "invoices marked overdue", slog.Int64("count", 3))

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "req-42", record["correlation_id"])
		assert.Equal(t, "sweep", record["service"])
		assert.EqualValues(t, 3, record["count"])
		assert.NotContains(t, record, "trace_id")
	})

	t.Run("Should honor the level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(log.NewHandler(&buf, config.Log{Format: config.LogFormatText, Level: slog.LevelWarn}))

		logger.Info("hidden")
		assert.Empty(t, buf.String())

		logger.Warn("shown")
		assert.Contains(t, buf.String(), "shown")
	})
}
