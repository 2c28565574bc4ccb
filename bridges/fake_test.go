package bridges

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

type fakeTransport struct {
	conns chan *fakeConn
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		conns: make(chan *fakeConn, 8),
	}
}

func (t *fakeTransport) String() string {
	return "fake"
}

func (t *fakeTransport) Dial(ctx context.Context) (Conn, error) {
	select {
	case conn := <-t.conns:
		if conn == nil {
			return nil, errors.New("dial failed")
		}
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

var errWriteFailed = errors.New("write failed")

// fakeConn is the peer side of a connection. Writes fail after writeBudget successful ones when it is non-negative.
type fakeConn struct {
	in          chan []byte
	out         chan []byte
	writeBudget atomic.Int64
	closed      chan struct{}
	closeOnce   sync.Once
}

func newFakeConn(writeBudget int64) *fakeConn {
	c := &fakeConn{
		in:     make(chan []byte, 64),
		out:    make(chan []byte, 64),
		closed: make(chan struct{}),
	}
	c.writeBudget.Store(writeBudget)
	return c
}

func (c *fakeConn) ReadFrame() ([]byte, error) {
	select {
	case bs := <-c.in:
		return bs, nil
	case <-c.closed:
		return nil, io.EOF
	}
}

func (c *fakeConn) WriteFrame(bs []byte) error {
	if c.writeBudget.Load() >= 0 {
		if c.writeBudget.Add(-1) < 0 {
			return errWriteFailed
		}
	}
	select {
	case c.out <- bs:
		return nil
	case <-c.closed:
		return io.ErrClosedPipe
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	return nil
}
