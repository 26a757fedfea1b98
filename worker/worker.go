/*
Package worker implements the single-threaded event-loop worker: one
goroutine owns a uv.Loop and is the execution home for every handle
allocated against it. Other goroutines hand it work through Post; a
heartbeat ticks live connections once a second; Stop walks a three-stage
escalation from cooperative exit to abandoning the loop outright.
*/
package worker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/moqsien/gkuv/conn"
	"github.com/moqsien/gkuv/iface"
	"github.com/moqsien/gkuv/uv"
)

var (
	_ iface.IWorker   = (*Worker)(nil)
	_ iface.Scheduler = (*Worker)(nil)
)

type Worker struct {
	loop      *uv.Loop
	post      *uv.Async
	heartbeat *uv.Timer

	queueMu      sync.Mutex
	workAdding   []workItem
	workRunning  []workItem
	closeAdding  []closeItem
	closeRunning []closeItem
	postClosed   bool // set once the notifier is being retired or the worker exits; guarded by queueMu

	startMu       sync.Mutex
	initCompleted bool
	stopImmediate bool

	fatalMu  sync.Mutex
	fatalErr error

	joined chan struct{}
	nowMs  int64 // cached by the heartbeat

	maxDrainLoops      int
	heartbeatMs        int64
	shutdownTimeout    time.Duration
	completionPoolSize int

	trace    iface.Trace
	lifetime iface.Lifetime

	completions  *ants.Pool
	connMgr      *conn.Manager
	pipeFactory  *conn.PipeFactory
	writeReqPool *conn.WriteReqPool
}

func New(opts *Options) *Worker {
	opts = opts.withDefaults()
	w := &Worker{
		joined:          make(chan struct{}),
		maxDrainLoops:   opts.MaxDrainLoops,
		heartbeatMs:     opts.HeartbeatMs,
		shutdownTimeout: opts.ShutdownTimeout,
		trace:           opts.Trace,
		lifetime:        opts.Lifetime,
	}
	w.completionPoolSize = opts.CompletionPool
	w.pipeFactory = conn.NewPipeFactory()
	w.writeReqPool = conn.NewWriteReqPool()
	w.connMgr = conn.NewManager(w, w.pipeFactory, w.writeReqPool)
	return w
}

// Start spawns the worker goroutine and blocks until the loop, the post
// notifier and the heartbeat timer are initialized, or returns the
// initialization error.
func (that *Worker) Start() error {
	startc := make(chan error, 1)
	go that.run(startc)
	return <-startc
}

func (that *Worker) run(startc chan<- error) {
	defer func() {
		that.abandonPending()
		that.writeReqPool.Dispose()
		that.pipeFactory.Dispose()
		if that.completions != nil {
			that.completions.Release()
		}
		close(that.joined)
	}()

	that.startMu.Lock()
	err := that.init()
	if err == nil {
		that.initCompleted = true
	}
	that.startMu.Unlock()
	startc <- err
	if err != nil {
		return
	}

	err = that.loop.Run(uv.RunDefault)
	if err == nil {
		if that.stopImmediate {
			// abandoned on purpose: handles leak, the process is exiting
			return
		}
		err = that.teardown()
	}
	if err != nil {
		that.captureFatal(err)
		that.lifetime.StopApplication()
	}
}

func (that *Worker) init() (err error) {
	if that.loop, err = uv.New(); err != nil {
		return err
	}
	if that.completions, err = ants.NewPool(that.completionPoolSize); err != nil {
		return err
	}
	that.post = uv.NewAsync(that.loop, that.onPost)
	that.heartbeat = uv.NewTimer(that.loop)
	that.heartbeat.Start(that.onHeartbeat, that.heartbeatMs, that.heartbeatMs)
	atomic.StoreInt64(&that.nowMs, that.loop.Now())
	return nil
}

// teardown retires the notifier and heartbeat through the close-handle
// queue, runs the loop once so their close callbacks fire, then disposes
// the loop itself.
func (that *Worker) teardown() error {
	that.queueMu.Lock()
	that.postClosed = true
	that.queueMu.Unlock()

	that.post.Ref()
	closeHandle := func(h *uv.Handle) error {
		h.Close(nil)
		return nil
	}
	that.QueueCloseAsyncHandle(closeHandle, &that.post.Handle)
	that.QueueCloseAsyncHandle(closeHandle, &that.heartbeat.Handle)
	if _, err := that.doPostCloseHandle(); err != nil {
		return err
	}
	if err := that.loop.Run(uv.RunNoWait); err != nil {
		return err
	}
	return that.loop.Close()
}

func (that *Worker) captureFatal(err error) {
	that.fatalMu.Lock()
	if that.fatalErr == nil {
		that.fatalErr = err
	}
	that.fatalMu.Unlock()
}

// FatalError returns the one-shot error captured by the worker
// goroutine, if any.
func (that *Worker) FatalError() error {
	that.fatalMu.Lock()
	defer that.fatalMu.Unlock()
	return that.fatalErr
}

// Loop returns the loop handle. Callers promise to touch it only from
// posted work.
func (that *Worker) Loop() *uv.Loop {
	return that.loop
}

func (that *Worker) ConnManager() *conn.Manager {
	return that.connMgr
}

func (that *Worker) PipeFactory() *conn.PipeFactory {
	return that.pipeFactory
}

func (that *Worker) WriteReqPool() *conn.WriteReqPool {
	return that.writeReqPool
}
