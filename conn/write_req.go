package conn

import (
	"sync"
	"sync/atomic"

	"github.com/valyala/bytebufferpool"
)

type AsyncCallback func(c *Conn) error

// WriteReq is one cross-thread write request travelling through the post
// queue. Instances are pooled; Data aliases a leased byte buffer.
type WriteReq struct {
	Conn *Conn
	Data []byte
	Go   AsyncCallback
	buf  *bytebufferpool.ByteBuffer
}

// WriteReqPool recycles WriteReq objects between posts.
type WriteReqPool struct {
	pool     sync.Pool
	disposed int32
}

func NewWriteReqPool() *WriteReqPool {
	return &WriteReqPool{pool: sync.Pool{New: func() interface{} {
		return &WriteReq{}
	}}}
}

func (that *WriteReqPool) Get() *WriteReq {
	if atomic.LoadInt32(&that.disposed) == 1 {
		return &WriteReq{}
	}
	return that.pool.Get().(*WriteReq)
}

func (that *WriteReqPool) Put(req *WriteReq) {
	req.Conn, req.Data, req.Go, req.buf = nil, nil, nil, nil
	if atomic.LoadInt32(&that.disposed) == 1 {
		return
	}
	that.pool.Put(req)
}

// Dispose stops recycling; requests still in flight complete untouched.
func (that *WriteReqPool) Dispose() {
	atomic.StoreInt32(&that.disposed, 1)
}
