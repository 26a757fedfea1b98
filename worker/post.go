package worker

import (
	"github.com/moqsien/processes/logger"

	"github.com/moqsien/gkuv/iface"
	"github.com/moqsien/gkuv/utils/errs"
	"github.com/moqsien/gkuv/uv"
)

// Post queues cb to run on the loop goroutine and wakes it. Safe from any
// goroutine; fails with ErrWorkerStopped once the worker is exiting.
func (that *Worker) Post(cb iface.PostFunc, state iface.PostArg) error {
	return that.postItem(workItem{cb: cb, state: state})
}

// PostAsync is Post plus a Completion resolved after cb returns. The
// callback's error fails only the completion, never the worker.
func (that *Worker) PostAsync(cb iface.PostFunc, state iface.PostArg) (*Completion, error) {
	c := newCompletion()
	if err := that.postItem(workItem{cb: cb, state: state, completion: c}); err != nil {
		return nil, err
	}
	return c, nil
}

// Schedule satisfies iface.Scheduler.
func (that *Worker) Schedule(action func()) {
	_ = that.Post(func(state iface.PostArg) error {
		state.(func())()
		return nil
	}, action)
}

func (that *Worker) postItem(item workItem) error {
	that.queueMu.Lock()
	if that.postClosed {
		that.queueMu.Unlock()
		return errs.ErrWorkerStopped
	}
	that.workAdding = append(that.workAdding, item)
	that.queueMu.Unlock()
	if err := that.post.Send(); err != nil {
		return errs.ErrWorkerStopped
	}
	return nil
}

// QueueCloseHandle requests a handle close from any goroutine: the close
// callback is queued and the loop woken.
func (that *Worker) QueueCloseHandle(cb func(*uv.Handle) error, h *uv.Handle) error {
	that.queueMu.Lock()
	if that.postClosed {
		that.queueMu.Unlock()
		return errs.ErrWorkerStopped
	}
	that.closeAdding = append(that.closeAdding, closeItem{cb: cb, handle: h})
	that.queueMu.Unlock()
	if err := that.post.Send(); err != nil {
		return errs.ErrWorkerStopped
	}
	return nil
}

// QueueCloseAsyncHandle enqueues without waking the loop. Loop goroutine
// only; this is the path the notifier's own retirement takes, since no
// wake can be signalled through a closing notifier.
func (that *Worker) QueueCloseAsyncHandle(cb func(*uv.Handle) error, h *uv.Handle) {
	that.queueMu.Lock()
	that.closeAdding = append(that.closeAdding, closeItem{cb: cb, handle: h})
	that.queueMu.Unlock()
}

// onPost drains both queues, alternating until neither produced work or
// the pass cap is hit; anything left runs on the next wake.
func (that *Worker) onPost(*uv.Async) error {
	remaining := that.maxDrainLoops
	for {
		workDid, err := that.doPostWork()
		if err != nil {
			logger.Errorf("posted work failed on the event loop: %v", err)
			return err
		}
		closeDid, err := that.doPostCloseHandle()
		if err != nil {
			logger.Errorf("handle close failed on the event loop: %v", err)
			return err
		}
		remaining--
		if !(workDid || closeDid) || remaining <= 0 {
			return nil
		}
	}
}
