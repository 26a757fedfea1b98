package conn

import (
	"github.com/moqsien/gkuv/iface"
	"github.com/moqsien/gkuv/sys"
)

func (that *Conn) write(data []byte) (n int, err error) {
	n = len(data)
	if !that.OutBuffer.IsEmpty() {
		return that.OutBuffer.Write(data)
	}
	var sent int
	if sent, err = sys.Write(that.Fd, data); err != nil {
		if err == sys.EAGAIN {
			_, _ = that.OutBuffer.Write(data)
			err = that.Stream.EnableWrite()
			return
		}
		return -1, that.Close(err)
	}
	if sent < n {
		_, _ = that.OutBuffer.Write(data[sent:])
		err = that.Stream.EnableWrite()
	}
	that.lastActive = that.Stream.Loop().Now()
	return
}

// Write sends data on the loop goroutine, spilling to the out-buffer on
// partial writes.
func (that *Conn) Write(p []byte) (int, error) {
	return that.write(p)
}

func asyncWrite(arg iface.PostArg) (err error) {
	req := arg.(*WriteReq)
	c := req.Conn
	if c.Opened {
		_, err = c.write(req.Data)
		if err == nil && req.Go != nil {
			err = req.Go(c)
		}
	}
	c.mgr.releaseWriteReq(req)
	return
}

// AsyncWrite queues data for the loop goroutine to write. The bytes are
// copied into a pooled buffer, so the caller may reuse p immediately.
// Safe from any goroutine.
func (that *Conn) AsyncWrite(p []byte, cb ...AsyncCallback) error {
	var callback AsyncCallback
	if len(cb) > 0 {
		callback = cb[0]
	}
	req := that.mgr.leaseWriteReq(that, p, callback)
	if err := that.mgr.poster.Post(asyncWrite, req); err != nil {
		that.mgr.releaseWriteReq(req)
		return err
	}
	return nil
}
