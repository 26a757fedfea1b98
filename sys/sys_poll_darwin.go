//go:build darwin

package sys

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/moqsien/gkuv/utils"
)

// The wake event is a user-filter kevent with ident 0; CreatePoll reports
// it as pollEvFd so callers treat both platforms the same way.
const wakeIdent = 0

var eventsPool = sync.Pool{New: func() interface{} {
	evs := make([]unix.Kevent_t, InitPollSize)
	return &evs
}}

func CreatePoll() (pollFd, pollEvFd int, err error) {
	pollFd, err = unix.Kqueue()
	if err != nil {
		err = utils.SysError("kqueue", err)
		return
	}
	_, err = unix.Kevent(pollFd, []unix.Kevent_t{{
		Ident:  wakeIdent,
		Filter: unix.EVFILT_USER,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}}, nil, nil)
	if err != nil {
		unix.Close(pollFd)
		err = utils.SysError("kevent_add_user", err)
		return
	}
	pollEvFd = wakeIdent
	return
}

// Trigger wakes a Wait in progress. Safe from any goroutine.
func Trigger(pollFd, pollEvFd int) error {
	_, err := unix.Kevent(pollFd, []unix.Kevent_t{{
		Ident:  uint64(pollEvFd),
		Filter: unix.EVFILT_USER,
		Fflags: unix.NOTE_TRIGGER,
	}}, nil, nil)
	return utils.SysError("kevent_trigger", err)
}

func AddRead(pollFd, fd int) error {
	_, err := unix.Kevent(pollFd, []unix.Kevent_t{
		{Ident: uint64(fd), Flags: unix.EV_ADD, Filter: unix.EVFILT_READ},
	}, nil, nil)
	return utils.SysError("kevent_add", err)
}

func ModRead(pollFd, fd int) error {
	_, err := unix.Kevent(pollFd, []unix.Kevent_t{
		{Ident: uint64(fd), Flags: unix.EV_DELETE, Filter: unix.EVFILT_WRITE},
	}, nil, nil)
	if err == unix.ENOENT {
		err = nil
	}
	return utils.SysError("kevent_del", err)
}

func ModReadWrite(pollFd, fd int) error {
	_, err := unix.Kevent(pollFd, []unix.Kevent_t{
		{Ident: uint64(fd), Flags: unix.EV_ADD, Filter: unix.EVFILT_WRITE},
	}, nil, nil)
	return utils.SysError("kevent_add", err)
}

func UnRegister(pollFd, fd int) error {
	_, err := unix.Kevent(pollFd, []unix.Kevent_t{
		{Ident: uint64(fd), Flags: unix.EV_DELETE, Filter: unix.EVFILT_READ},
		{Ident: uint64(fd), Flags: unix.EV_DELETE, Filter: unix.EVFILT_WRITE},
	}, nil, nil)
	if err == unix.ENOENT {
		err = nil
	}
	return utils.SysError("kevent_del", err)
}

// Wait runs one poll round. timeoutMs < 0 blocks until readiness. fd
// events are dispatched first; a cross-thread wake is delivered last as a
// single trigger callback.
func Wait(pollFd, pollEvFd, timeoutMs int, w WaitCallback) error {
	evsp := eventsPool.Get().(*[]unix.Kevent_t)
	defer eventsPool.Put(evsp)
	events := *evsp

	var tsp *unix.Timespec
	if timeoutMs >= 0 {
		ts := unix.NsecToTimespec(int64(timeoutMs) * 1e6)
		tsp = &ts
	}
	n, err := unix.Kevent(pollFd, nil, events, tsp)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return utils.SysError("kevent_wait", err)
	}

	var triggered bool
	for i := 0; i < n; i++ {
		ev := &events[i]
		if ev.Filter == unix.EVFILT_USER && int(ev.Ident) == pollEvFd {
			triggered = true
			continue
		}
		var evs uint32
		if ev.Flags&unix.EV_EOF != 0 || ev.Flags&unix.EV_ERROR != 0 {
			evs |= EventClosed
		} else if ev.Filter == unix.EVFILT_READ {
			evs |= EventRead
		} else if ev.Filter == unix.EVFILT_WRITE {
			evs |= EventWrite
		}
		if err = w(int(ev.Ident), evs, false); err != nil {
			return err
		}
	}
	if triggered {
		return w(pollEvFd, 0, true)
	}
	return nil
}
