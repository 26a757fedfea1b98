package conn

import (
	"sync/atomic"

	"github.com/valyala/bytebufferpool"
)

// PipeFactory leases scratch byte buffers for connection I/O. It fronts a
// shared buffer pool so the worker has one disposable collaborator to
// tear down.
type PipeFactory struct {
	disposed int32
}

func NewPipeFactory() *PipeFactory {
	return &PipeFactory{}
}

func (that *PipeFactory) Lease() *bytebufferpool.ByteBuffer {
	return bytebufferpool.Get()
}

func (that *PipeFactory) Return(b *bytebufferpool.ByteBuffer) {
	if b == nil || atomic.LoadInt32(&that.disposed) == 1 {
		return
	}
	bytebufferpool.Put(b)
}

// Dispose stops returning buffers to the shared pool.
func (that *PipeFactory) Dispose() {
	atomic.StoreInt32(&that.disposed, 1)
}
