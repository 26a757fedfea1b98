package uv

// Timer fires a callback after a timeout, optionally repeating. All
// methods are loop-goroutine-only.
type Timer struct {
	Handle
	cb     func(*Timer) error
	due    int64
	repeat int64
}

func NewTimer(loop *Loop) *Timer {
	t := &Timer{}
	t.Handle.attach(loop, HandleTimer, t)
	loop.timers = append(loop.timers, t)
	return t
}

// Start schedules the timer timeoutMs from now; repeatMs > 0 reschedules
// it after every fire.
func (that *Timer) Start(cb func(*Timer) error, timeoutMs, repeatMs int64) {
	that.cb = cb
	that.due = that.loop.Now() + timeoutMs
	that.repeat = repeatMs
	that.active = true
}

// Stop deactivates the timer without closing it; Start may be called
// again.
func (that *Timer) Stop() {
	that.active = false
}
