package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.9.0"

	"github.com/tuanvumaihuynh/ledger/internal/config"
)

func TestInitTracerWithoutCollector(t *testing.T) {
	cleanup, err := InitTracer(context.Background(), config.Otel{ServiceName: "ledger"})
	require.NoError(t, err)
	require.NotNil(t, cleanup)

	assert.NoError(t, cleanup(context.Background()))
	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")
}

func TestNewResource(t *testing.T) {
	res := newResource(config.Otel{ServiceName: "ledger", K8sPodName: "ledger-0"})

	set := res.Set()
	name, ok := set.Value(semconv.ServiceNameKey)
	require.True(t, ok)
	assert.Equal(t, "ledger", name.AsString())

	_, ok = set.Value(semconv.K8SNamespaceNameKey)
	assert.False(t, ok)
}
