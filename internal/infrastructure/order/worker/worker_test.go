package worker

import (
	"context"
	"errors"
	"testing"

	apporder "github.com/Zhima-Mochi/kitchenledger/internal/application/order"
	domoutbox "github.com/Zhima-Mochi/kitchenledger/internal/domain/outbox"
	dompay "github.com/Zhima-Mochi/kitchenledger/internal/domain/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCache struct {
	invalidated []string
	err         error
}

func (c *fakeCache) Get(context.Context, string) (*apporder.OrderView, error) {
	return nil, apporder.ErrCacheMiss
}
func (c *fakeCache) Set(context.Context, *apporder.OrderView) error { return nil }
func (c *fakeCache) Invalidate(_ context.Context, id string) error {
	c.invalidated = append(c.invalidated, id)
	return c.err
}

type fakeBus struct{ subs map[string]domoutbox.Handler }

func (b *fakeBus) Subscribe(name string, h domoutbox.Handler) {
	if b.subs == nil {
		b.subs = make(map[string]domoutbox.Handler)
	}
	b.subs[name] = h
}

func TestSettledPaymentInvalidatesOrderView(t *testing.T) {
	cache := &fakeCache{}
	bus := &fakeBus{}
	var wrapped []string
	wrap := func(name string, h domoutbox.Handler) domoutbox.Handler {
		wrapped = append(wrapped, name)
		return h
	}
	New(cache, bus, wrap, nil).Start()

	h, ok := bus.subs["payment.settled"]
	require.True(t, ok)
	assert.Equal(t, []string{"order_cache_invalidation"}, wrapped)

	require.NoError(t, h(context.Background(), dompay.SettledEvent{OrderID: "ord-1", Status: dompay.StatusCompleted}))
	assert.Equal(t, []string{"ord-1"}, cache.invalidated)
}

func TestInvalidateFailureIsReturned(t *testing.T) {
	cache := &fakeCache{err: errors.New("redis down")}
	w := New(cache, nil, nil, nil)

	err := w.handlePaymentSettled(context.Background(), dompay.SettledEvent{OrderID: "ord-2"})
	require.Error(t, err)
	assert.ErrorIs(t, err, cache.err)
}

func TestStartWithoutCacheSubscribesNothing(t *testing.T) {
	bus := &fakeBus{}
	New(nil, bus, nil, nil).Start()
	assert.Empty(t, bus.subs)
}
