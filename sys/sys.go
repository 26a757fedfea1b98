/*
Package sys generalizes the platform poll syscalls the uv loop is built
on. Linux uses epoll plus an eventfd for cross-thread wakes, darwin uses
kqueue with an EVFILT_USER event.
*/
package sys

import (
	"golang.org/x/sys/unix"
)

// Normalized poll events, translated from the platform flags.
const (
	EventRead uint32 = 1 << iota
	EventWrite
	EventClosed
)

const InitPollSize = 128

var (
	EAGAIN     = unix.EAGAIN
	ECONNRESET = unix.ECONNRESET
)

// WaitCallback receives one readiness notification. trigger is set on a
// dedicated final invocation after a cross-thread wake was observed.
type WaitCallback func(fd int, events uint32, trigger bool) error

// EventHandler is implemented by stream owners; Wait dispatches fd
// readiness through it.
type EventHandler interface {
	ReadFromFd() error
	WriteToFd() error
	Close(err error) error
}

func HandleEvents(events uint32, handler EventHandler) (err error) {
	if events&EventClosed != 0 {
		return handler.Close(ECONNRESET)
	}
	if events&EventWrite != 0 {
		if err = handler.WriteToFd(); err != nil {
			return
		}
	}
	if events&EventRead != 0 {
		if err = handler.ReadFromFd(); err != nil {
			return
		}
	}
	return
}

func CloseFd(fd int) error {
	return unix.Close(fd)
}

func Read(fd int, p []byte) (int, error) {
	return unix.Read(fd, p)
}

func Write(fd int, p []byte) (int, error) {
	return unix.Write(fd, p)
}

func Writev(fd int, iovs [][]byte) (int, error) {
	return unix.Writev(fd, iovs)
}
