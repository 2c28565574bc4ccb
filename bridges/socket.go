package bridges

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"sync"
	"time"
)

type SocketMode string

const (
	SocketDial   SocketMode = "dial"
	SocketListen SocketMode = "listen"
)

// SocketTransport carries newline-delimited JSON over TCP.
// In listen mode it serves one observer at a time on a listener kept across reconnects.
type SocketTransport struct {
	Addr         string
	Mode         SocketMode
	Dialer       Dialer
	WriteTimeout time.Duration

	listenOnce sync.Once
	listener   net.Listener
	listenErr  error
}

var _ Transport = new(SocketTransport)

func (t *SocketTransport) String() string {
	return "tcp://" + t.Addr + " (" + string(t.Mode) + ")"
}

// Listen binds the listener in listen mode. Dial calls it as needed.
func (t *SocketTransport) Listen() (net.Addr, error) {
	t.listenOnce.Do(func() {
		t.listener, t.listenErr = net.Listen("tcp", t.Addr)
	})
	if t.listenErr != nil {
		return nil, t.listenErr
	}
	return t.listener.Addr(), nil
}

// Close releases the listener, if one was bound.
func (t *SocketTransport) Close() error {
	if t.listener == nil {
		return nil
	}
	return t.listener.Close()
}

func (t *SocketTransport) Dial(ctx context.Context) (Conn, error) {
	if t.Mode == SocketListen {
		return t.accept(ctx)
	}
	dialer := t.Dialer
	if dialer == nil {
		dialer = new(net.Dialer)
	}
	conn, err := dialer.DialContext(ctx, "tcp", t.Addr)
	if err != nil {
		return nil, err
	}
	return newLineConn(conn, t.WriteTimeout), nil
}

func (t *SocketTransport) accept(ctx context.Context) (Conn, error) {
	if _, err := t.Listen(); err != nil {
		return nil, err
	}
	// shutdown closes the listener to unblock Accept
	stop := context.AfterFunc(ctx, func() {
		t.listener.Close()
	})
	defer stop()
	conn, err := t.listener.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return newLineConn(conn, t.WriteTimeout), nil
}

type lineConn struct {
	conn         net.Conn
	reader       *bufio.Reader
	writeTimeout time.Duration
}

// NewLineConn frames a stream connection with newlines.
func NewLineConn(conn net.Conn, writeTimeout time.Duration) Conn {
	return newLineConn(conn, writeTimeout)
}

func newLineConn(conn net.Conn, writeTimeout time.Duration) *lineConn {
	return &lineConn{
		conn:         conn,
		reader:       bufio.NewReader(conn),
		writeTimeout: writeTimeout,
	}
}

func (c *lineConn) ReadFrame() ([]byte, error) {
	for {
		line, err := c.reader.ReadBytes('\n')
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			return line, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (c *lineConn) WriteFrame(bs []byte) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	buf := make([]byte, 0, len(bs)+1)
	buf = append(buf, bs...)
	buf = append(buf, '\n')
	_, err := c.conn.Write(buf)
	return err
}

func (c *lineConn) Close() error {
	return c.conn.Close()
}
