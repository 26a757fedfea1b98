package conn

import (
	"sync/atomic"
	"time"

	"github.com/moqsien/gkuv/iface"
)

// Manager is the loop-owned connection registry. The map is touched only
// on the loop goroutine; the count is readable from anywhere.
type Manager struct {
	poster    iface.IWorker
	pipes     *PipeFactory
	writeReqs *WriteReqPool
	conns     map[int]*Conn
	count     int32
}

func NewManager(poster iface.IWorker, pipes *PipeFactory, writeReqs *WriteReqPool) *Manager {
	return &Manager{
		poster:    poster,
		pipes:     pipes,
		writeReqs: writeReqs,
		conns:     make(map[int]*Conn),
	}
}

func (that *Manager) add(c *Conn) {
	that.conns[c.Fd] = c
	atomic.AddInt32(&that.count, 1)
}

func (that *Manager) remove(c *Conn) {
	if _, found := that.conns[c.Fd]; !found {
		return
	}
	delete(that.conns, c.Fd)
	atomic.AddInt32(&that.count, -1)
}

func (that *Manager) Count() int32 {
	return atomic.LoadInt32(&that.count)
}

func (that *Manager) leaseWriteReq(c *Conn, p []byte, cb AsyncCallback) *WriteReq {
	req := that.writeReqs.Get()
	req.Conn = c
	req.Go = cb
	req.buf = that.pipes.Lease()
	req.buf.Write(p)
	req.Data = req.buf.B
	return req
}

func (that *Manager) releaseWriteReq(req *WriteReq) {
	that.pipes.Return(req.buf)
	that.writeReqs.Put(req)
}

// WalkConnsAndClose asks the loop to close every connection gracefully
// and reports whether the registry drained within timeout.
func (that *Manager) WalkConnsAndClose(timeout time.Duration) bool {
	return that.walk(timeout, func(c *Conn) {
		_ = c.Close(nil)
	})
}

// WalkConnsAndAbort force-closes whatever is left.
func (that *Manager) WalkConnsAndAbort(timeout time.Duration) bool {
	return that.walk(timeout, func(c *Conn) {
		c.Abort()
	})
}

func (that *Manager) walk(timeout time.Duration, fn func(*Conn)) bool {
	if that.Count() == 0 {
		return true
	}
	done := make(chan struct{})
	err := that.poster.Post(func(iface.PostArg) error {
		for _, c := range that.snapshot() {
			fn(c)
		}
		close(done)
		return nil
	}, nil)
	if err != nil {
		// worker already exiting, nothing left running on the loop
		return that.Count() == 0
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-done:
		return that.Count() == 0
	case <-t.C:
		return false
	}
}

func (that *Manager) snapshot() []*Conn {
	out := make([]*Conn, 0, len(that.conns))
	for _, c := range that.conns {
		out = append(out, c)
	}
	return out
}
