package uv

import (
	"sync/atomic"

	"github.com/moqsien/gkuv/sys"
	"github.com/moqsien/gkuv/utils/errs"
)

// Async wakes the loop from any goroutine. Sends are coalesced: however
// many race in, at most one callback fires per loop turn.
type Async struct {
	Handle
	cb      func(*Async) error
	pending int32
	closed  int32
}

// NewAsync must be called on the loop goroutine.
func NewAsync(loop *Loop, cb func(*Async) error) *Async {
	a := &Async{cb: cb}
	a.Handle.attach(loop, HandleAsync, a)
	a.active = true
	loop.asyncs = append(loop.asyncs, a)
	return a
}

// Send is safe from any goroutine. It fails with ErrHandleClosed once the
// handle's close has begun.
func (that *Async) Send() error {
	if atomic.LoadInt32(&that.closed) == 1 {
		return errs.ErrHandleClosed
	}
	if atomic.CompareAndSwapInt32(&that.pending, 0, 1) {
		return sys.Trigger(that.loop.pollFd, that.loop.pollEvFd)
	}
	return nil
}
