package worker

import (
	"github.com/moqsien/gkuv/iface"
	"github.com/moqsien/gkuv/utils/errs"
	"github.com/moqsien/gkuv/uv"
)

// workItem is one posted callback. completion is nil for fire-and-forget
// posts.
type workItem struct {
	cb         iface.PostFunc
	state      iface.PostArg
	completion *Completion
}

// closeItem is one native-handle close request; cb performs the
// type-specific close.
type closeItem struct {
	cb     func(*uv.Handle) error
	handle *uv.Handle
}

// Each queue is a double-buffered slice pair on the Worker: producers
// append to the adding half under queueMu, the loop goroutine swaps the
// halves under queueMu and then drains the running half without it.

func (that *Worker) doPostWork() (bool, error) {
	that.queueMu.Lock()
	that.workAdding, that.workRunning = that.workRunning, that.workAdding
	that.queueMu.Unlock()

	queue := that.workRunning
	for i := range queue {
		item := queue[i]
		queue[i] = workItem{}
		if item.completion != nil {
			that.fulfill(item.completion, item.cb(item.state))
			continue
		}
		if err := item.cb(item.state); err != nil {
			return true, err
		}
	}
	did := len(queue) > 0
	that.workRunning = queue[:0]
	return did, nil
}

func (that *Worker) doPostCloseHandle() (bool, error) {
	that.queueMu.Lock()
	that.closeAdding, that.closeRunning = that.closeRunning, that.closeAdding
	that.queueMu.Unlock()

	queue := that.closeRunning
	for i := range queue {
		item := queue[i]
		queue[i] = closeItem{}
		if err := item.cb(item.handle); err != nil {
			// closes run the loop's own free logic; not recoverable
			return true, err
		}
	}
	did := len(queue) > 0
	that.closeRunning = queue[:0]
	return did, nil
}

// abandonPending fails completions the worker will never run. Pending
// PostAsync completions resolve with ErrWorkerStopped rather than hanging.
func (that *Worker) abandonPending() {
	that.queueMu.Lock()
	that.postClosed = true
	adding, running := that.workAdding, that.workRunning
	that.workAdding, that.workRunning = nil, nil
	that.closeAdding, that.closeRunning = nil, nil
	that.queueMu.Unlock()

	for _, queue := range [][]workItem{running, adding} {
		for _, item := range queue {
			if item.completion != nil {
				item.completion.complete(errs.ErrWorkerStopped)
			}
		}
	}
}
