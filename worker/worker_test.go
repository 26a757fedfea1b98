package worker

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/moqsien/gkuv/iface"
	"github.com/moqsien/gkuv/utils/errs"
)

func startWorker(t *testing.T, opts *Options) *Worker {
	t.Helper()
	w := New(opts)
	require.NoError(t, w.Start())
	return w
}

// Ensure every post runs exactly once on the loop goroutine and Stop
// returns cleanly afterwards.
func TestHappyPathDrain(t *testing.T) {
	w := startWorker(t, nil)

	var counter int64
	for i := 0; i < 1000; i++ {
		require.NoError(t, w.Post(func(iface.PostArg) error {
			atomic.AddInt64(&counter, 1)
			return nil
		}, nil))
	}
	c, err := w.PostAsync(func(iface.PostArg) error { return nil }, nil)
	require.NoError(t, err)
	require.NoError(t, c.Wait())

	require.EqualValues(t, 1000, atomic.LoadInt64(&counter))
	require.NoError(t, w.Stop(3*time.Second))
	require.NoError(t, w.FatalError())
}

// Ensure posts from a single goroutine run in FIFO order.
func TestPostFIFO(t *testing.T) {
	w := startWorker(t, nil)

	var order []int
	for i := 0; i < 100; i++ {
		n := i
		require.NoError(t, w.Post(func(iface.PostArg) error {
			order = append(order, n)
			return nil
		}, nil))
	}
	c, err := w.PostAsync(func(iface.PostArg) error { return nil }, nil)
	require.NoError(t, err)
	require.NoError(t, c.Wait())

	require.Len(t, order, 100)
	for i, n := range order {
		require.Equal(t, i, n)
	}
	require.NoError(t, w.Stop(time.Second))
}

// Ensure the queue mutex is never held while a posted callback runs.
func TestMutexNotHeldDuringCallback(t *testing.T) {
	w := startWorker(t, nil)

	c, err := w.PostAsync(func(iface.PostArg) error {
		if !w.queueMu.TryLock() {
			return errors.New("queue mutex held during callback")
		}
		w.queueMu.Unlock()
		return nil
	}, nil)
	require.NoError(t, err)
	require.NoError(t, c.Wait())
	require.NoError(t, w.Stop(time.Second))
}

// Ensure concurrent posters from many goroutines all get their callbacks
// run with no deadlock and empty queues at the end.
func TestCrossThreadRace(t *testing.T) {
	w := startWorker(t, nil)

	const (
		posters = 16
		perEach = 2000
	)
	var counter int64
	var wg sync.WaitGroup
	for p := 0; p < posters; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perEach; i++ {
				_ = w.Post(func(iface.PostArg) error {
					atomic.AddInt64(&counter, 1)
					return nil
				}, nil)
			}
		}()
	}
	wg.Wait()

	c, err := w.PostAsync(func(iface.PostArg) error { return nil }, nil)
	require.NoError(t, err)
	require.NoError(t, c.Wait())
	require.EqualValues(t, posters*perEach, atomic.LoadInt64(&counter))

	require.Eventually(t, func() bool {
		w.queueMu.Lock()
		defer w.queueMu.Unlock()
		return len(w.workAdding) == 0 && len(w.workRunning) == 0
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, w.Stop(3*time.Second))
}

// Ensure Schedule(a) behaves exactly like posting a thunk that calls a.
func TestScheduleEquivalence(t *testing.T) {
	w := startWorker(t, nil)

	done := make(chan struct{})
	w.Schedule(func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled action never ran")
	}
	require.NoError(t, w.Stop(time.Second))
}

// Ensure Stop on a worker that never started is a prompt no-op.
func TestStopUninitialized(t *testing.T) {
	w := New(nil)
	start := time.Now()
	require.NoError(t, w.Stop(0))
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

// Ensure a cooperative stop joins quickly with no fatal error.
func TestCooperativeStop(t *testing.T) {
	w := startWorker(t, &Options{MaxDrainLoops: 2})

	require.NoError(t, w.Post(func(iface.PostArg) error {
		time.Sleep(5 * time.Millisecond)
		return nil
	}, nil))

	start := time.Now()
	require.NoError(t, w.Stop(300*time.Millisecond))
	require.Less(t, time.Since(start), time.Second)
	require.NoError(t, w.FatalError())

	select {
	case <-w.joined:
	default:
		t.Fatal("worker did not join after cooperative stop")
	}
}

// Ensure a worker stuck in a posted callback escalates through all three
// stages and Stop still returns without error.
func TestRudeStopOnStuckWorker(t *testing.T) {
	w := startWorker(t, nil)

	release := make(chan struct{})
	require.NoError(t, w.Post(func(iface.PostArg) error {
		<-release
		return nil
	}, nil))

	require.NoError(t, w.Stop(150*time.Millisecond))
	close(release)
	select {
	case <-w.joined:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not join after being released")
	}
}

// Ensure an error from a fire-and-forget post becomes the fatal error and
// is rethrown from Stop.
func TestFatalPropagation(t *testing.T) {
	w := startWorker(t, nil)

	boom := errors.New("posted work exploded")
	require.NoError(t, w.Post(func(iface.PostArg) error {
		return boom
	}, nil))

	select {
	case <-w.joined:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not die on fatal post error")
	}
	require.ErrorIs(t, w.Stop(time.Second), boom)
}

// Ensure a failing PostAsync callback fails only its completion.
func TestPostAsyncFailureIsIsolated(t *testing.T) {
	w := startWorker(t, nil)

	boom := errors.New("completion failure")
	c, err := w.PostAsync(func(iface.PostArg) error {
		return boom
	}, nil)
	require.NoError(t, err)
	require.ErrorIs(t, c.Wait(), boom)
	require.NoError(t, w.FatalError())
	require.NoError(t, w.Stop(time.Second))
}

// Ensure posts are refused once the worker has exited.
func TestPostAfterStop(t *testing.T) {
	w := startWorker(t, nil)
	require.NoError(t, w.Stop(time.Second))
	require.ErrorIs(t, w.Post(func(iface.PostArg) error { return nil }, nil), errs.ErrWorkerStopped)

	_, err := w.PostAsync(func(iface.PostArg) error { return nil }, nil)
	require.ErrorIs(t, err, errs.ErrWorkerStopped)
}

// Ensure a second Stop after the worker joined just reports the fatal
// state again.
func TestStopTwice(t *testing.T) {
	w := startWorker(t, nil)
	require.NoError(t, w.Stop(time.Second))
	require.NoError(t, w.Stop(time.Second))
}

// Ensure a completion posted around shutdown either runs exactly once or
// is failed with ErrWorkerStopped; it never hangs forever.
func TestPendingCompletionsResolveAcrossStop(t *testing.T) {
	w := startWorker(t, nil)

	release := make(chan struct{})
	require.NoError(t, w.Post(func(iface.PostArg) error {
		<-release
		return nil
	}, nil))
	c, err := w.PostAsync(func(iface.PostArg) error { return nil }, nil)
	require.NoError(t, err)

	require.NoError(t, w.Stop(150*time.Millisecond))
	close(release)

	select {
	case <-w.joined:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not join after being released")
	}
	resolved, werr := c.WaitTimeout(2 * time.Second)
	require.True(t, resolved)
	if werr != nil {
		require.ErrorIs(t, werr, errs.ErrWorkerStopped)
	}
}
