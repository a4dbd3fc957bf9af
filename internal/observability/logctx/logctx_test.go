package logctx

import (
	"context"
	"testing"

	"github.com/Zhima-Mochi/kitchenledger/internal/observability"

	"github.com/stretchr/testify/assert"
)

func TestFromOrFallsBack(t *testing.T) {
	fallback := observability.NopLogger()
	ctx := context.Background()

	assert.Nil(t, From(ctx))
	assert.Equal(t, fallback, FromOr(ctx, fallback))
	assert.Equal(t, ctx, With(ctx, nil))
}

func TestWithStoresLogger(t *testing.T) {
	logger := observability.NopLogger().With(observability.F("k", "v"))
	ctx := With(context.Background(), logger)
	assert.Equal(t, logger, From(ctx))
	assert.Equal(t, logger, FromOr(ctx, observability.NopLogger()))
}
