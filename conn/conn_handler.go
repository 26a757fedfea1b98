package conn

import (
	"github.com/moqsien/gkuv/iface"
	"github.com/moqsien/gkuv/sys"
)

func (that *Conn) ReadFromFd() error {
	buf := getReadBuffer()
	defer putReadBuffer(buf)
	n, err := sys.Read(that.Fd, buf)
	if err != nil || n == 0 {
		if err == sys.EAGAIN {
			return nil
		}
		// peer went away
		return that.Close(sys.ECONNRESET)
	}
	that.lastActive = that.Stream.Loop().Now()
	that.InBuffer.Write(buf[:n])
	if that.OnData != nil {
		return that.OnData(that)
	}
	return nil
}

func (that *Conn) WriteToFd() error {
	iov := that.OutBuffer.Peek(-1)
	var (
		n   int
		err error
	)
	if len(iov) > 1 {
		if len(iov) > iface.IovMax {
			iov = iov[:iface.IovMax]
		}
		n, err = sys.Writev(that.Fd, iov)
	} else if len(iov) == 1 {
		n, err = sys.Write(that.Fd, iov[0])
	}
	that.OutBuffer.Discard(n)
	switch err {
	case nil:
	case sys.EAGAIN:
		return nil
	default:
		return that.Close(err)
	}

	if that.OutBuffer.IsEmpty() {
		return that.Stream.DisableWrite()
	}
	return nil
}
