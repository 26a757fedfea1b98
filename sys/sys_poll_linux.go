//go:build linux

package sys

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/moqsien/gkuv/utils"
)

const (
	readEvents   = uint32(unix.EPOLLPRI | unix.EPOLLIN)
	writeEvents  = uint32(unix.EPOLLOUT)
	closedEvents = uint32(unix.EPOLLHUP | unix.EPOLLERR)
)

var eventsPool = sync.Pool{New: func() interface{} {
	evs := make([]unix.EpollEvent, InitPollSize)
	return &evs
}}

func CreatePoll() (pollFd, pollEvFd int, err error) {
	pollFd, err = unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		err = utils.SysError("epoll_create1", err)
		return
	}
	pollEvFd, err = unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(pollFd)
		err = utils.SysError("eventfd", err)
		return
	}
	if err = AddRead(pollFd, pollEvFd); err != nil {
		unix.Close(pollFd)
		unix.Close(pollEvFd)
	}
	return
}

var triggerPayload = []byte{0, 0, 0, 0, 0, 0, 0, 1}

// Trigger wakes a Wait in progress. Safe from any goroutine. A saturated
// eventfd counter means a wake is already pending, which is fine.
func Trigger(pollFd, pollEvFd int) error {
	_, err := unix.Write(pollEvFd, triggerPayload)
	if err == unix.EAGAIN {
		err = nil
	}
	return utils.SysError("eventfd_write", err)
}

func epollCtl(pollFd, fd, action int, evs uint32) error {
	var event *unix.EpollEvent
	if action != unix.EPOLL_CTL_DEL {
		event = &unix.EpollEvent{Fd: int32(fd), Events: evs}
	}
	err := unix.EpollCtl(pollFd, action, fd, event)
	var name string
	switch action {
	case unix.EPOLL_CTL_ADD:
		name = "epoll_ctl_add"
	case unix.EPOLL_CTL_MOD:
		name = "epoll_ctl_mod"
	case unix.EPOLL_CTL_DEL:
		name = "epoll_ctl_del"
	}
	return utils.SysError(name, err)
}

func AddRead(pollFd, fd int) error {
	return epollCtl(pollFd, fd, unix.EPOLL_CTL_ADD, readEvents)
}

func ModRead(pollFd, fd int) error {
	return epollCtl(pollFd, fd, unix.EPOLL_CTL_MOD, readEvents)
}

func ModReadWrite(pollFd, fd int) error {
	return epollCtl(pollFd, fd, unix.EPOLL_CTL_MOD, readEvents|writeEvents)
}

func UnRegister(pollFd, fd int) error {
	return epollCtl(pollFd, fd, unix.EPOLL_CTL_DEL, 0)
}

// Wait runs one poll round. timeoutMs < 0 blocks until readiness. fd
// events are dispatched first; a cross-thread wake is delivered last as a
// single trigger callback, after the eventfd counter is drained.
func Wait(pollFd, pollEvFd, timeoutMs int, w WaitCallback) error {
	evsp := eventsPool.Get().(*[]unix.EpollEvent)
	defer eventsPool.Put(evsp)
	events := *evsp

	n, err := unix.EpollWait(pollFd, events, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return utils.SysError("epoll_wait", err)
	}

	var triggered bool
	for i := 0; i < n; i++ {
		ev := &events[i]
		fd := int(ev.Fd)
		if fd == pollEvFd {
			triggered = true
			var buf [8]byte
			unix.Read(pollEvFd, buf[:])
			continue
		}
		var evs uint32
		if ev.Events&closedEvents != 0 {
			evs |= EventClosed
		}
		if ev.Events&readEvents != 0 {
			evs |= EventRead
		}
		if ev.Events&writeEvents != 0 {
			evs |= EventWrite
		}
		if err = w(fd, evs, false); err != nil {
			return err
		}
	}
	if triggered {
		return w(pollEvFd, 0, true)
	}
	return nil
}
