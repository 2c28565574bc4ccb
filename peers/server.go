package peers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/reusee/botrun/bridges"
	"github.com/reusee/botrun/frames"
	"github.com/reusee/botrun/logs"
)

const (
	DefaultHeartbeat = time.Second * 5
	DefaultWSAddr    = "localhost:8765"
	DefaultTCPAddr   = "localhost:12345"

	welcome     = "Welcome to the server!"
	invalidJSON = "Invalid JSON format"
)

// Server is an observer peer. It welcomes each client, echoes every valid JSON message,
// reports invalid ones and broadcasts heartbeats.
type Server struct {
	logger       logs.Logger
	heartbeat    time.Duration
	writeTimeout time.Duration
	upgrader     websocket.Upgrader

	// OnFrame, when set, sees every frame a client sends.
	OnFrame func(client string, frame frames.Frame)

	mu      sync.Mutex
	clients map[string]*client
	states  map[string]map[string]any
}

type client struct {
	id   string
	mu   sync.Mutex
	conn bridges.Conn
}

func (c *client) write(frame frames.Frame) error {
	bs, err := frames.Encode(frame)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteFrame(bs)
}

func NewServer(logger logs.Logger, heartbeat time.Duration) *Server {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &Server{
		logger:       logger,
		heartbeat:    heartbeat,
		writeTimeout: bridges.DefaultWriteTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[string]*client),
		states:  make(map[string]map[string]any),
	}
}

// ServeHTTP upgrades to websocket and serves the client until it disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WarnContext(r.Context(), "websocket upgrade", "error", err)
		return
	}
	s.serve(r.Context(), bridges.NewWebsocketConn(conn, s.writeTimeout))
}

// ServeTCP accepts newline-delimited JSON clients on ln until ctx is done.
func (s *Server) ServeTCP(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		ln.Close()
	})
	defer stop()
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serve(ctx, bridges.NewLineConn(conn, s.writeTimeout))
		}()
	}
}

func (s *Server) serve(ctx context.Context, conn bridges.Conn) {
	c := &client{
		id:   uuid.NewString(),
		conn: conn,
	}
	defer conn.Close()
	// unblock the read on shutdown
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.clients, c.id)
		s.mu.Unlock()
	}()

	s.logger.InfoContext(ctx, "client connected", "client", c.id)
	defer s.logger.InfoContext(ctx, "client disconnected", "client", c.id)

	if err := c.write(frames.Frame{
		Type:    frames.TypeConnected,
		Message: welcome,
	}); err != nil {
		return
	}

	for {
		bs, err := conn.ReadFrame()
		if err != nil {
			return
		}
		if err := c.write(s.handle(ctx, c.id, bs)); err != nil {
			s.logger.WarnContext(ctx, "write", "client", c.id, "error", err)
			return
		}
	}
}

func (s *Server) handle(ctx context.Context, id string, bs []byte) frames.Frame {
	if !json.Valid(bs) {
		s.logger.WarnContext(ctx, "invalid json", "client", id)
		return frames.Frame{
			Type:    frames.TypeError,
			Message: invalidJSON,
		}
	}

	if frame, err := frames.Decode(bs); err == nil {
		s.observe(id, frame)
		if s.OnFrame != nil {
			s.OnFrame(id, frame)
		}
	}

	return frames.Frame{
		Type: frames.TypeEcho,
		Data: json.RawMessage(bs),
	}
}

// observe folds state frames into the per-client view.
func (s *Server) observe(id string, frame frames.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch frame.Type {
	case frames.TypeGlobalState:
		state := make(map[string]any, len(frame.GlobalState))
		for k, v := range frame.GlobalState {
			state[k] = v
		}
		s.states[id] = state
	case frames.TypeStateUpdate:
		state, ok := s.states[id]
		if !ok {
			state = make(map[string]any)
			s.states[id] = state
		}
		for k, v := range frame.State {
			state[k] = v
		}
	}
}

// States returns a copy of the last known state of every client that ever reported one.
func (s *Server) States() map[string]map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := make(map[string]map[string]any, len(s.states))
	for id, state := range s.states {
		copied := make(map[string]any, len(state))
		for k, v := range state {
			copied[k] = v
		}
		ret[id] = copied
	}
	return ret
}

func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Broadcast writes frame to every connected client. Write failures are logged; the client's reader notices the broken connection.
func (s *Server) Broadcast(ctx context.Context, frame frames.Frame) {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()
	for _, c := range clients {
		if err := c.write(frame); err != nil {
			s.logger.DebugContext(ctx, "broadcast", "client", c.id, "error", err)
		}
	}
}

// RunHeartbeat broadcasts a heartbeat every interval until ctx is done.
func (s *Server) RunHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Broadcast(ctx, Heartbeat(now))
		}
	}
}

func Heartbeat(now time.Time) frames.Frame {
	return frames.Frame{
		Type: frames.TypeHeartbeat,
		Time: float64(now.UnixNano()) / float64(time.Second),
	}
}

// ListenAndServe runs a websocket server on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	server := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: time.Second * 10,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	stop := context.AfterFunc(ctx, func() {
		server.Close()
	})
	defer stop()
	s.logger.InfoContext(ctx, "websocket observer", "addr", ln.Addr().String())
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
