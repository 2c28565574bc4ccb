package bridges

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/reusee/dscope"
	"github.com/reusee/botrun/configs"
	"github.com/reusee/botrun/nets"
)

type Module struct {
	dscope.Module
	Configs configs.Module
	Nets    nets.Module
}

const (
	TransportWebsocket = "websocket"
	TransportSocket    = "socket"
	TransportNone      = "none"

	DefaultURL          = "ws://localhost:8765"
	DefaultSocketAddr   = "localhost:12345"
	DefaultBackoffBase  = time.Second
	DefaultBackoffCap   = time.Second * 10
	DefaultWriteTimeout = time.Second * 5
)

type Config struct {
	Transport    string
	URL          string
	SocketAddr   string
	SocketMode   SocketMode
	BackoffBase  time.Duration
	BackoffCap   time.Duration
	WriteTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Transport:    TransportWebsocket,
		URL:          DefaultURL,
		SocketAddr:   DefaultSocketAddr,
		SocketMode:   SocketDial,
		BackoffBase:  DefaultBackoffBase,
		BackoffCap:   DefaultBackoffCap,
		WriteTimeout: DefaultWriteTimeout,
	}
}

func (Module) Config(
	loader configs.Loader,
) Config {
	config := DefaultConfig()
	if v := configs.First[string](loader, "transport"); v != "" {
		config.Transport = v
	}
	if v := configs.First[string](loader, "ws_url"); v != "" {
		config.URL = v
	}
	if v := configs.First[string](loader, "socket_addr"); v != "" {
		config.SocketAddr = v
	}
	if v := configs.First[SocketMode](loader, "socket_mode"); v != "" {
		config.SocketMode = v
	}
	if v := configs.Duration(loader, "backoff_base"); v > 0 {
		config.BackoffBase = v
	}
	if v := configs.Duration(loader, "backoff_cap"); v > 0 {
		config.BackoffCap = v
	}
	return config
}

// ForInstance gives the i-th of several instances its own listen address by
// offsetting the port. Dial mode and port 0 are left unchanged.
func (c Config) ForInstance(i int) (Config, error) {
	if c.Transport != TransportSocket || c.SocketMode != SocketListen || i == 0 {
		return c, nil
	}
	host, portStr, err := net.SplitHostPort(c.SocketAddr)
	if err != nil {
		return c, fmt.Errorf("socket_addr %q: %w", c.SocketAddr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return c, fmt.Errorf("socket_addr %q: %w", c.SocketAddr, err)
	}
	if port == 0 {
		return c, nil
	}
	if port+i > 65535 {
		return c, fmt.Errorf("socket_addr %q: no port left for instance %d", c.SocketAddr, i)
	}
	c.SocketAddr = net.JoinHostPort(host, strconv.Itoa(port+i))
	return c, nil
}
