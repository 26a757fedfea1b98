package conn

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Ensure pooled requests come back zeroed after Put.
func TestWriteReqPoolRecycles(t *testing.T) {
	p := NewWriteReqPool()

	req := p.Get()
	req.Data = []byte("payload")
	req.Go = func(*Conn) error { return nil }
	p.Put(req)

	next := p.Get()
	require.Nil(t, next.Data)
	require.Nil(t, next.Go)
	require.Nil(t, next.Conn)
}

// Ensure a disposed pool still hands out usable requests.
func TestWriteReqPoolDisposed(t *testing.T) {
	p := NewWriteReqPool()
	p.Dispose()

	req := p.Get()
	require.NotNil(t, req)
	p.Put(req)
}

// Ensure leased buffers survive a factory round-trip.
func TestPipeFactoryLease(t *testing.T) {
	f := NewPipeFactory()

	b := f.Lease()
	b.Write([]byte("abc"))
	require.Equal(t, "abc", string(b.B))
	f.Return(b)

	f.Dispose()
	b2 := f.Lease()
	require.NotNil(t, b2)
	f.Return(b2)
}
