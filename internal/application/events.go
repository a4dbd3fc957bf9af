package application

import (
	"context"
	"time"

	domoutbox "github.com/Zhima-Mochi/kitchenledger/internal/domain/outbox"
	"github.com/Zhima-Mochi/kitchenledger/internal/observability"
	"github.com/Zhima-Mochi/kitchenledger/internal/observability/logctx"
)

const (
	publishPeer    = "outbox"
	publishTimeout = 300 * time.Millisecond
)

// PublishAll hands committed events to the publisher. Failures are logged and
// counted but never undo the commit; the first one is returned for the caller's log line.
func (in Instruments) PublishAll(ctx context.Context, pub domoutbox.Publisher, events ...domoutbox.Event) error {
	if pub == nil {
		return nil
	}
	var first error
	for _, e := range events {
		if e == nil {
			continue
		}
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		start := time.Now()
		outcome := "success"

		err := pub.Publish(pubCtx, e)
		if err == nil && pubCtx.Err() != nil {
			err = pubCtx.Err()
		}
		cancel()

		if err != nil {
			outcome = "error"
			if first == nil {
				first = err
			}
			logctx.FromOr(ctx, in.Logger()).Warn("event_publish_failed",
				observability.F("event", e.EventName()),
				observability.F("error", err.Error()),
			)
		}
		in.ObserveExternal(publishPeer, e.EventName(), outcome, start)
	}
	return first
}
