package worker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/moqsien/gkuv/iface"
	"github.com/moqsien/gkuv/uv"
)

type recordingTicker struct {
	mu    sync.Mutex
	ticks []int64
}

func (that *recordingTicker) Tick(nowMs int64) {
	that.mu.Lock()
	that.ticks = append(that.ticks, nowMs)
	that.mu.Unlock()
}

func (that *recordingTicker) snapshot() []int64 {
	that.mu.Lock()
	defer that.mu.Unlock()
	return append([]int64(nil), that.ticks...)
}

type nopHandler struct{}

func (nopHandler) ReadFromFd() error { return nil }
func (nopHandler) WriteToFd() error  { return nil }
func (nopHandler) Close(error) error { return nil }

func socketPair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	require.NoError(t, unix.SetNonblock(fds[0], true))
	require.NoError(t, unix.SetNonblock(fds[1], true))
	return fds[0], fds[1]
}

// Ensure every stream handle carrying a Ticker receives one tick per
// heartbeat with a non-decreasing cached timestamp.
func TestHeartbeatTicksConnections(t *testing.T) {
	w := startWorker(t, &Options{HeartbeatMs: 100})

	local, peer := socketPair(t)
	defer unix.Close(peer)

	rec := &recordingTicker{}
	c, err := w.PostAsync(func(iface.PostArg) error {
		s, serr := uv.NewStream(w.Loop(), local, nopHandler{})
		if serr != nil {
			return serr
		}
		s.Data = rec
		return nil
	}, nil)
	require.NoError(t, err)
	require.NoError(t, c.Wait())

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) >= 3
	}, 3*time.Second, 20*time.Millisecond)

	ticks := rec.snapshot()
	for i := 1; i < len(ticks); i++ {
		require.GreaterOrEqual(t, ticks[i], ticks[i-1])
	}
	require.NoError(t, w.Stop(time.Second))
}

// Ensure the heartbeat refreshes the worker's cached timestamp.
func TestHeartbeatCachesNow(t *testing.T) {
	w := startWorker(t, &Options{HeartbeatMs: 50})

	before := w.CachedNow()
	require.Eventually(t, func() bool {
		return w.CachedNow() > before
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, w.Stop(time.Second))
}

// Ensure QueueCloseHandle runs the close callback on the loop goroutine
// and the handle disappears from the walk.
func TestQueueCloseHandle(t *testing.T) {
	w := startWorker(t, nil)

	var tm *uv.Timer
	c, err := w.PostAsync(func(iface.PostArg) error {
		tm = uv.NewTimer(w.Loop())
		return nil
	}, nil)
	require.NoError(t, err)
	require.NoError(t, c.Wait())

	require.NoError(t, w.QueueCloseHandle(func(h *uv.Handle) error {
		h.Close(nil)
		return nil
	}, &tm.Handle))

	require.Eventually(t, func() bool {
		var present bool
		c, err := w.PostAsync(func(iface.PostArg) error {
			w.Loop().Walk(func(h *uv.Handle) {
				if h == &tm.Handle {
					present = true
				}
			})
			return nil
		}, nil)
		if err != nil || c.Wait() != nil {
			return false
		}
		return !present
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, w.Stop(time.Second))
}
