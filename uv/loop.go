/*
Package uv is the single-threaded reactor the worker runs on: a poller
backed loop owning async, timer and stream handles, with run/stop/walk/now
semantics modeled after libuv. One goroutine drives Run; only Async.Send
and Now are safe from outside it.
*/
package uv

import (
	"sync/atomic"
	"time"

	"github.com/moqsien/gkuv/sys"
	"github.com/moqsien/gkuv/utils"
	"github.com/moqsien/gkuv/utils/errs"
)

type RunMode int

const (
	RunDefault RunMode = iota // run until Stop or no live handle remains
	RunOnce                   // one poll round, blocking
	RunNoWait                 // one poll round, non-blocking
)

type Loop struct {
	pollFd   int
	pollEvFd int
	base     time.Time
	nowMs    int64 // cached clock, refreshed once per loop turn
	handles  map[*Handle]struct{}
	streams  map[int]*Stream
	asyncs   []*Async
	timers   []*Timer
	closingQ []*Handle
	stopFlag int32
	closed   bool
}

func New() (*Loop, error) {
	pollFd, pollEvFd, err := sys.CreatePoll()
	if err != nil {
		return nil, err
	}
	l := &Loop{
		pollFd:   pollFd,
		pollEvFd: pollEvFd,
		base:     time.Now(),
		handles:  make(map[*Handle]struct{}),
		streams:  make(map[int]*Stream),
	}
	l.updateTime()
	return l, nil
}

// Now returns the cached monotonic timestamp in milliseconds since the
// loop was created. It is refreshed per loop turn, not per call.
func (that *Loop) Now() int64 {
	return atomic.LoadInt64(&that.nowMs)
}

func (that *Loop) updateTime() {
	atomic.StoreInt64(&that.nowMs, int64(time.Since(that.base)/time.Millisecond))
}

// Stop makes the Run in progress return at the end of its current turn.
// Run clears the flag on entry, so a Stop issued while no Run is active
// has no effect on the next Run.
func (that *Loop) Stop() {
	atomic.StoreInt32(&that.stopFlag, 1)
}

// Walk invokes fn for every handle not yet fully closed, including ones
// with a close pending.
func (that *Loop) Walk(fn func(*Handle)) {
	hs := make([]*Handle, 0, len(that.handles))
	for h := range that.handles {
		hs = append(hs, h)
	}
	for _, h := range hs {
		fn(h)
	}
}

func (that *Loop) alive() bool {
	if len(that.closingQ) > 0 {
		return true
	}
	for h := range that.handles {
		if h.keepsAlive() {
			return true
		}
	}
	return false
}

// Run drives the loop. In RunDefault mode it returns when Stop is called
// or no active referenced handle remains. A non-nil error from a handle
// callback aborts the run and is returned.
func (that *Loop) Run(mode RunMode) error {
	if that.closed {
		return errs.ErrLoopClosed
	}
	atomic.StoreInt32(&that.stopFlag, 0)
	for {
		if !that.alive() {
			return nil
		}
		that.updateTime()
		err := sys.Wait(that.pollFd, that.pollEvFd, that.pollTimeout(mode), that.dispatch)
		if err != nil {
			return err
		}
		that.updateTime()
		if err = that.runTimers(); err != nil {
			return err
		}
		that.runClosing()
		if mode != RunDefault || atomic.LoadInt32(&that.stopFlag) == 1 {
			return nil
		}
	}
}

// Close releases the poller. Every handle must have fired its close
// callback first.
func (that *Loop) Close() error {
	if that.closed {
		return errs.ErrLoopClosed
	}
	if len(that.handles) > 0 || len(that.closingQ) > 0 {
		return errs.ErrLoopBusy
	}
	that.closed = true
	if err := utils.SysError("pollfd_close", sys.CloseFd(that.pollFd)); err != nil {
		return err
	}
	if that.pollEvFd > 0 && that.pollEvFd != that.pollFd {
		return utils.SysError("pollevfd_close", sys.CloseFd(that.pollEvFd))
	}
	return nil
}

func (that *Loop) pollTimeout(mode RunMode) int {
	if mode == RunNoWait || len(that.closingQ) > 0 {
		return 0
	}
	timeout := -1
	now := atomic.LoadInt64(&that.nowMs)
	for _, t := range that.timers {
		if !t.IsActive() {
			continue
		}
		d := t.due - now
		if d < 0 {
			d = 0
		}
		if timeout < 0 || int(d) < timeout {
			timeout = int(d)
		}
	}
	return timeout
}

func (that *Loop) dispatch(fd int, events uint32, trigger bool) error {
	if trigger {
		return that.runAsyncs()
	}
	if s, ok := that.streams[fd]; ok {
		return sys.HandleEvents(events, s.handler)
	}
	return nil
}

func (that *Loop) runAsyncs() error {
	// snapshot: a callback may close handles under our feet
	pending := append([]*Async(nil), that.asyncs...)
	for _, a := range pending {
		if atomic.CompareAndSwapInt32(&a.pending, 1, 0) && a.cb != nil {
			if err := a.cb(a); err != nil {
				return err
			}
		}
	}
	return nil
}

func (that *Loop) runTimers() error {
	now := atomic.LoadInt64(&that.nowMs)
	due := append([]*Timer(nil), that.timers...)
	for _, t := range due {
		if !t.IsActive() || t.due > now {
			continue
		}
		if t.repeat > 0 {
			t.due = now + t.repeat
		} else {
			t.active = false
		}
		if t.cb != nil {
			if err := t.cb(t); err != nil {
				return err
			}
		}
	}
	return nil
}

func (that *Loop) runClosing() {
	for len(that.closingQ) > 0 {
		q := that.closingQ
		that.closingQ = nil
		for _, h := range q {
			delete(that.handles, h)
			if h.closeCb != nil {
				h.closeCb(h)
			}
		}
	}
}

// detach releases the native half of a closing handle.
func (that *Loop) detach(h *Handle) {
	switch o := h.owner.(type) {
	case *Async:
		atomic.StoreInt32(&o.closed, 1)
		for i, a := range that.asyncs {
			if a == o {
				that.asyncs = append(that.asyncs[:i], that.asyncs[i+1:]...)
				break
			}
		}
	case *Timer:
		for i, t := range that.timers {
			if t == o {
				that.timers = append(that.timers[:i], that.timers[i+1:]...)
				break
			}
		}
	case *Stream:
		delete(that.streams, h.fd)
		sys.UnRegister(that.pollFd, h.fd)
		sys.CloseFd(h.fd)
	}
}
