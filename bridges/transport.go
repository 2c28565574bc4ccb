package bridges

import (
	"context"
	"fmt"
)

// Conn carries whole frames. One goroutine may read while another writes.
type Conn interface {
	ReadFrame() ([]byte, error)
	WriteFrame([]byte) error
	Close() error
}

type Transport interface {
	Dial(ctx context.Context) (Conn, error)
	String() string
}

func NewTransport(config Config, dialer Dialer) (Transport, error) {
	switch config.Transport {
	case TransportWebsocket:
		return &WebsocketTransport{
			URL:          config.URL,
			Dialer:       dialer,
			WriteTimeout: config.WriteTimeout,
		}, nil
	case TransportSocket:
		return &SocketTransport{
			Addr:         config.SocketAddr,
			Mode:         config.SocketMode,
			Dialer:       dialer,
			WriteTimeout: config.WriteTimeout,
		}, nil
	case TransportNone:
		return nil, nil
	}
	return nil, fmt.Errorf("unknown transport: %s", config.Transport)
}
