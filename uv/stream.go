package uv

import "github.com/moqsien/gkuv/sys"

// Stream ties a connected fd to the loop. Readiness is dispatched through
// the supplied handler; buffering belongs to the owner, not here.
type Stream struct {
	Handle
	handler sys.EventHandler
}

// NewStream registers fd for read events. Loop goroutine only.
func NewStream(loop *Loop, fd int, handler sys.EventHandler) (*Stream, error) {
	if err := sys.AddRead(loop.pollFd, fd); err != nil {
		return nil, err
	}
	s := &Stream{handler: handler}
	s.Handle.fd = fd
	s.Handle.attach(loop, HandleStream, s)
	s.active = true
	loop.streams[fd] = s
	return s, nil
}

// EnableWrite arms write readiness so a buffered out-buffer can flush.
func (that *Stream) EnableWrite() error {
	return sys.ModReadWrite(that.loop.pollFd, that.fd)
}

// DisableWrite returns to read-only interest once the out-buffer drains.
func (that *Stream) DisableWrite() error {
	return sys.ModRead(that.loop.pollFd, that.fd)
}
