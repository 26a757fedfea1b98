package worker

import (
	"time"

	"github.com/moqsien/gkuv/iface"
	"github.com/moqsien/gkuv/uv"
)

// Stop shuts the worker down: connections are drained first, then three
// escalating stages each get a third of timeout to coax the loop out.
// Any fatal error captured by the worker is returned once it joins.
func (that *Worker) Stop(timeout time.Duration) error {
	that.startMu.Lock()
	initd := that.initCompleted
	that.startMu.Unlock()
	if !initd {
		return nil
	}

	select {
	case <-that.joined:
		return that.FatalError()
	default:
	}

	if !that.connMgr.WalkConnsAndClose(that.shutdownTimeout) {
		that.trace.NotAllConnectionsClosedGracefully()
		if !that.connMgr.WalkConnsAndAbort(time.Second) {
			that.trace.NotAllConnectionsAborted()
		}
	}

	step := timeout / 3
	if that.postStage(that.allowStop, step) {
		return that.FatalError()
	}
	that.trace.LogError("event loop worker ignored the cooperative stop, closing its handles", nil)
	if that.postStage(that.onStopRude, step) {
		return that.FatalError()
	}
	that.trace.LogError("event loop worker ignored the handle close, abandoning its loop", nil)
	if that.postStage(that.onStopImmediate, step) {
		return that.FatalError()
	}
	that.trace.LogCritical("event loop worker did not stop within the shutdown budget", nil)
	return nil
}

// postStage posts one cooperative instruction and waits for the join
// channel. A post refused because the notifier is already retired means
// the worker is on its way out; keep waiting and let the caller escalate
// on timeout.
func (that *Worker) postStage(stage iface.PostFunc, d time.Duration) bool {
	_ = that.Post(stage, nil)
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-that.joined:
		return true
	case <-t.C:
		return false
	}
}

// allowStop is the graceful exit: with the heartbeat stopped and the
// notifier unreferenced, the loop returns once all other handles close.
func (that *Worker) allowStop(iface.PostArg) error {
	that.heartbeat.Stop()
	that.post.Unref()
	return nil
}

// onStopRude disposes every handle except the notifier itself.
func (that *Worker) onStopRude(iface.PostArg) error {
	that.loop.Walk(func(h *uv.Handle) {
		if h == &that.post.Handle || h.IsClosing() {
			return
		}
		h.Close(nil)
	})
	that.post.Unref()
	return nil
}

// onStopImmediate abandons the loop: Run returns without teardown and the
// remaining handles are knowingly leaked.
func (that *Worker) onStopImmediate(iface.PostArg) error {
	that.stopImmediate = true
	that.loop.Stop()
	return nil
}
