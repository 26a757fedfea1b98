/*
Package conn holds the stream connection the heartbeat ticks, the
loop-owned registry, and the pooled collaborators the worker disposes at
teardown.
*/
package conn

import (
	"net"

	"github.com/moqsien/processes/logger"
	"github.com/panjf2000/gnet/v2/pkg/buffer/elastic"

	"github.com/moqsien/gkuv/iface"
	"github.com/moqsien/gkuv/sys"
	"github.com/moqsien/gkuv/uv"
)

// DataHandler is invoked on the loop goroutine whenever new bytes land in
// the in-buffer. Protocol stacks hang off this hook.
type DataHandler func(c *Conn) error

var (
	_ sys.EventHandler = (*Conn)(nil)
	_ iface.Ticker     = (*Conn)(nil)
)

type Conn struct {
	Fd         int
	Stream     *uv.Stream
	AddrLocal  net.Addr
	AddrRemote net.Addr
	OutBuffer  *elastic.Buffer
	InBuffer   elastic.RingBuffer
	OnData     DataHandler
	Opened     bool
	IdleMs     int64 // idle budget enforced by Tick; 0 disables
	lastActive int64
	lastTick   int64
	mgr        *Manager
}

// New wires fd into the loop as a stream handle and registers the
// connection. Loop goroutine only.
func New(loop *uv.Loop, mgr *Manager, fd int, local, remote net.Addr) (c *Conn, err error) {
	c = &Conn{
		Fd:         fd,
		AddrLocal:  local,
		AddrRemote: remote,
		mgr:        mgr,
	}
	c.OutBuffer, _ = elastic.New(1024)
	if c.Stream, err = uv.NewStream(loop, fd, c); err != nil {
		return nil, err
	}
	c.Stream.Data = c
	c.Opened = true
	c.lastActive = loop.Now()
	mgr.add(c)
	return
}

// Tick records the heartbeat timestamp and enforces the idle budget.
// Called on the loop goroutine once per heartbeat.
func (that *Conn) Tick(nowMs int64) {
	if !that.Opened {
		return
	}
	that.lastTick = nowMs
	if that.IdleMs > 0 && nowMs-that.lastActive > that.IdleMs {
		_ = that.Close(nil)
	}
}

// LastTick returns the timestamp of the most recent heartbeat.
func (that *Conn) LastTick() int64 {
	return that.lastTick
}

// Close flushes what it can of the out-buffer, then releases the stream
// handle and unregisters the connection.
func (that *Conn) Close(err error) error {
	if !that.Opened {
		return nil
	}
	that.Opened = false

	for !that.OutBuffer.IsEmpty() {
		iov := that.OutBuffer.Peek(0)
		if len(iov) > iface.IovMax {
			iov = iov[:iface.IovMax]
		}
		n, e := sys.Writev(that.Fd, iov)
		if e != nil {
			if e != sys.EAGAIN {
				logger.Warningf("flush on close failed for fd=%d: %v", that.Fd, e)
			}
			break
		}
		that.OutBuffer.Discard(n)
	}
	that.release()
	return nil
}

// Abort closes immediately, dropping any buffered output.
func (that *Conn) Abort() {
	if !that.Opened {
		return
	}
	that.Opened = false
	that.release()
}

func (that *Conn) release() {
	that.mgr.remove(that)
	that.Stream.Close(nil)
	that.AddrLocal = nil
	that.AddrRemote = nil
	that.InBuffer.Done()
	that.OutBuffer.Release()
}
