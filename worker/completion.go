package worker

import "time"

// Completion is the caller-visible half of PostAsync. It resolves on the
// worker's completion pool after the posted callback returns, never
// inline on the loop goroutine, so continuations cannot stall the loop.
type Completion struct {
	done chan struct{}
	err  error
}

func newCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// Wait blocks until the callback has run and returns its error.
func (that *Completion) Wait() error {
	<-that.done
	return that.err
}

// WaitTimeout waits up to d. The bool reports whether the completion
// resolved; false means it is still pending.
func (that *Completion) WaitTimeout(d time.Duration) (bool, error) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-that.done:
		return true, that.err
	case <-t.C:
		return false, nil
	}
}

func (that *Completion) complete(err error) {
	that.err = err
	close(that.done)
}

// fulfill hands the completion to the pool. Falling back to a fresh
// goroutine keeps the no-inline-continuations rule when the pool refuses
// the task (it has been released); a busy pool makes Submit wait instead.
func (that *Worker) fulfill(c *Completion, err error) {
	if that.completions != nil {
		if perr := that.completions.Submit(func() {
			c.complete(err)
		}); perr == nil {
			return
		}
	}
	go c.complete(err)
}
