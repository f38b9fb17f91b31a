package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkforge/nigel/internal/log"
)

func TestSetupDefaultEndpoint(t *testing.T) {
	cfg := Config{
		Environment: "test",
		ServiceName: "test-service",
		Logger:      log.NewNop(),
	}

	ctx := context.Background()
	shutdown, err := Setup(ctx, cfg)

	require.NoError(t, err)
	require.NotNil(t, shutdown)

	assert.NoError(t, shutdown(ctx))
}

func TestSetupCollectorUnavailable(t *testing.T) {
	// The batch processor buffers in the background, so an unreachable
	// collector must not break startup or shutdown.
	cfg := Config{
		Endpoint:    "localhost:59999",
		Environment: "test",
		ServiceName: "test-service",
		Logger:      log.NewNop(),
	}

	ctx := context.Background()
	shutdown, err := Setup(ctx, cfg)
	require.NoError(t, err)

	assert.NotPanics(t, func() { _ = shutdown(ctx) })
}
