package worker

import (
	"sync/atomic"

	"github.com/moqsien/gkuv/iface"
	"github.com/moqsien/gkuv/uv"
)

// onHeartbeat caches the loop clock once, then ticks every live stream
// handle carrying a connection. One Now read per tick, not per
// connection.
func (that *Worker) onHeartbeat(*uv.Timer) error {
	now := that.loop.Now()
	atomic.StoreInt64(&that.nowMs, now)
	that.loop.Walk(func(h *uv.Handle) {
		if h.Type() != uv.HandleStream || h.IsClosing() {
			return
		}
		if t, ok := h.Data.(iface.Ticker); ok && t != nil {
			t.Tick(now)
		}
	})
	return nil
}

// CachedNow returns the timestamp cached by the most recent heartbeat.
// Safe from any goroutine.
func (that *Worker) CachedNow() int64 {
	return atomic.LoadInt64(&that.nowMs)
}
