package errs

import "errors"

var (
	ErrWorkerStopped = errors.New("event loop worker is stopped")
	ErrHandleClosed  = errors.New("handle is already closed")
	ErrLoopClosed    = errors.New("loop is already closed")
	ErrLoopBusy      = errors.New("loop still owns live handles")
	ErrConnClosed    = errors.New("connection is closed")
)
