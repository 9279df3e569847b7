// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	applog "eqviewer/internal/log"
	"eqviewer/internal/workbench"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// Response answers one client command.
type Response struct {
	Type  string           `json:"type"` // Always "reply".
	ID    string           `json:"id,omitempty"`
	OK    bool             `json:"ok"`
	Error string           `json:"error,omitempty"`
	Reply *workbench.Reply `json:"reply,omitempty"`
}

// client serializes writes to one connection.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// WebSocketTransport implements the Transport interface for WebSocket
// connections. Every client receives broadcast frames; messages from a
// client are parsed as commands and answered on the same connection.
type WebSocketTransport struct {
	addr      string
	exec      Executor
	upgrader  websocket.Upgrader
	clients   map[*client]bool
	clientsMu sync.Mutex
	broadcast chan any
	done      chan struct{}
	closeOnce sync.Once
	server    *http.Server
}

// NewWebSocketTransport creates a new WebSocketTransport instance. An empty
// allowedOrigins accepts every origin.
func NewWebSocketTransport(addr string, exec Executor, allowedOrigins []string) *WebSocketTransport {
	wst := &WebSocketTransport{
		addr: addr,
		exec: exec,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 {
					return true
				}
				return slices.Contains(allowedOrigins, r.Header.Get("Origin"))
			},
		},
		clients:   make(map[*client]bool),
		broadcast: make(chan any, 256),
		done:      make(chan struct{}),
	}

	wst.server = &http.Server{
		Addr:              addr,
		Handler:           wst.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start broadcast handler
	go wst.handleBroadcasts()
	return wst
}

// Handler returns the HTTP handler serving /ws.
func (wst *WebSocketTransport) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wst.handleWebSocket)
	return mux
}

// Start begins the WebSocket server. It returns once the server stops.
func (wst *WebSocketTransport) Start() error {
	applog.Infof("WebSocketTransport: Starting WebSocket server on %s", wst.addr)
	if err := wst.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		applog.Errorf("WebSocketTransport: Server error: %v", err)
		return err
	}
	return nil
}

// Clients returns the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

// handleWebSocket upgrades HTTP connections to WebSocket and runs the
// client's command loop until it disconnects.
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("WebSocketTransport: Upgrade error: %v", err)
		return
	}
	c := &client{conn: conn}

	// The initial frame goes out before the client is registered for broadcasts.
	if err := c.write(wst.exec.Frame()); err != nil {
		applog.Warnf("WebSocketTransport: Error sending initial frame: %v", err)
		conn.Close()
		return
	}

	wst.clientsMu.Lock()
	wst.clients[c] = true
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	applog.Infof("WebSocketTransport: Client connected, total: %d", total)

	// Commands still running when the client leaves are cancelled, then awaited.
	var pending sync.WaitGroup
	defer pending.Wait()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			wst.drop(c)
			return
		}
		cmd, err := workbench.ParseCommand(data)
		if err != nil {
			_ = c.write(Response{Type: "reply", Error: err.Error()})
			continue
		}
		if cmd.Async() {
			pending.Add(1)
			go func() {
				defer pending.Done()
				wst.run(ctx, c, cmd)
			}()
			continue
		}
		wst.run(ctx, c, cmd)
	}
}

func (wst *WebSocketTransport) run(ctx context.Context, c *client, cmd workbench.Command) {
	reply, err := wst.exec.Execute(ctx, cmd)
	resp := Response{Type: "reply", ID: cmd.ID, OK: err == nil}
	if err != nil {
		resp.Error = err.Error()
	} else {
		resp.Reply = &reply
	}
	if werr := c.write(resp); werr != nil {
		applog.Debugf("WebSocketTransport: Error replying to %s: %v", cmd.Type, werr)
	}
}

func (wst *WebSocketTransport) drop(c *client) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[c]
	delete(wst.clients, c)
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	c.conn.Close()
	if ok {
		applog.Infof("WebSocketTransport: Client disconnected, total: %d", total)
	}
}

// handleBroadcasts sends messages to all connected clients
func (wst *WebSocketTransport) handleBroadcasts() {
	for {
		select {
		case <-wst.done:
			return
		case data := <-wst.broadcast:
			wst.clientsMu.Lock()
			targets := make([]*client, 0, len(wst.clients))
			for c := range wst.clients {
				targets = append(targets, c)
			}
			wst.clientsMu.Unlock()

			for _, c := range targets {
				if err := c.write(data); err != nil {
					applog.Warnf("WebSocketTransport: Error sending to client: %v", err)
					wst.drop(c)
				}
			}
		}
	}
}

// Send broadcasts data to all connected WebSocket clients. When the queue is
// full the message is dropped.
func (wst *WebSocketTransport) Send(data any) error {
	select {
	case <-wst.done:
		return errors.New("websocket transport closed")
	default:
	}
	select {
	case wst.broadcast <- data:
	default:
		applog.Debugf("WebSocketTransport: broadcast queue full, dropping %T", data)
	}
	return nil
}

// Close shuts down the WebSocket server
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		applog.Infof("WebSocketTransport: Closing server")
		close(wst.done)

		// Close all client connections
		wst.clientsMu.Lock()
		for c := range wst.clients {
			c.conn.Close()
		}
		wst.clients = make(map[*client]bool)
		wst.clientsMu.Unlock()

		// Close server
		err = wst.server.Close()
	})
	return err
}

// Ensure WebSocketTransport satisfies the interface
var _ Transport = (*WebSocketTransport)(nil)
