package conn

import (
	"sync"

	"github.com/moqsien/gkuv/iface"
)

var readBufferPool = sync.Pool{New: func() interface{} {
	return make([]byte, iface.ReadBufferSize)
}}

func getReadBuffer() []byte {
	return readBufferPool.Get().([]byte)
}

func putReadBuffer(buf []byte) {
	readBufferPool.Put(buf[:cap(buf)])
}
