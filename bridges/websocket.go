package bridges

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/reusee/botrun/nets"
)

type Dialer = nets.Dialer

type WebsocketTransport struct {
	URL          string
	Dialer       Dialer
	WriteTimeout time.Duration
}

var _ Transport = new(WebsocketTransport)

func (t *WebsocketTransport) String() string {
	return t.URL
}

func (t *WebsocketTransport) Dial(ctx context.Context) (Conn, error) {
	dialer := &websocket.Dialer{
		HandshakeTimeout: time.Second * 10,
	}
	if t.Dialer != nil {
		dialer.NetDialContext = t.Dialer.DialContext
	}
	conn, resp, err := dialer.DialContext(ctx, t.URL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return &wsConn{
		conn:         conn,
		writeTimeout: t.WriteTimeout,
	}, nil
}

type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

// NewWebsocketConn wraps an accepted or dialed websocket connection.
func NewWebsocketConn(conn *websocket.Conn, writeTimeout time.Duration) Conn {
	return &wsConn{
		conn:         conn,
		writeTimeout: writeTimeout,
	}
}

func (c *wsConn) ReadFrame() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteFrame(bs []byte) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.conn.WriteMessage(websocket.TextMessage, bs)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
