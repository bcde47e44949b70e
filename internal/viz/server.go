package viz

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nvandessel/repel/internal/ratelimit"
	"github.com/nvandessel/repel/internal/sim"
)

const (
	sendQueueSize = 32
	pingInterval  = 10 * time.Second
)

// Server streams simulation frames to browser clients over websockets.
// It serves the embedded viewer page on / and accepts websocket
// connections on /ws. Frames are paced per client by a token bucket so
// a fast simulation does not flood slow viewers; iteration stats are
// always delivered.
//
// Server implements the simulation observer interface and never
// returns an error from a callback: a broken or slow viewer must not
// stop the run.
type Server struct {
	bounds   sim.Bounds
	limiter  *ratelimit.Limiter // nil streams every frame
	upgrader websocket.Upgrader

	mu         sync.Mutex
	addr       string
	httpServer *http.Server

	connMu    sync.RWMutex
	conns     map[string]*client
	lastFrame []byte
	lastStats []byte
}

type client struct {
	conn      *websocket.Conn
	sendQueue chan []byte
}

type frameMsg struct {
	Type   string    `json:"type"`
	Frame  int       `json:"frame"`
	Bounds boundsMsg `json:"bounds"`
	X      []float64 `json:"x"`
	Y      []float64 `json:"y"`
	R      []float64 `json:"r"`
}

type boundsMsg struct {
	MinX float64 `json:"min_x"`
	MaxX float64 `json:"max_x"`
	MinY float64 `json:"min_y"`
	MaxY float64 `json:"max_y"`
}

type statsMsg struct {
	Type      string  `json:"type"`
	Iteration int     `json:"iteration"`
	Overlaps  int     `json:"overlaps"`
	Seconds   float64 `json:"seconds"`
}

// NewServer creates a viewer server. maxFPS caps the frame rate
// streamed to each client; 0 streams every frame.
func NewServer(bounds sim.Bounds, maxFPS float64) *Server {
	var limiter *ratelimit.Limiter
	if maxFPS > 0 {
		// Burst 2 lets the initial frame pair through before pacing.
		limiter = ratelimit.NewLimiter(maxFPS, 2)
	}
	return &Server{
		bounds:  bounds,
		limiter: limiter,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// The server binds to localhost only.
				return true
			},
		},
		conns: make(map[string]*client),
	}
}

// Addr returns the address the server is listening on (e.g., "localhost:PORT").
// Returns empty string if the server hasn't started yet.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// ListenAndServe starts the HTTP server on an OS-assigned port and blocks
// until the context is cancelled. Returns nil on clean shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/ws", s.handleWS)

	// Let the OS pick a free port.
	ln, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.httpServer = &http.Server{Handler: mux}
	s.mu.Unlock()

	// Graceful shutdown when context is cancelled. Websocket
	// connections are hijacked, so they are closed explicitly.
	go func() {
		<-ctx.Done()

		s.connMu.Lock()
		for _, cl := range s.conns {
			cl.conn.Close()
		}
		s.connMu.Unlock()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	err = s.httpServer.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// handleIndex serves the embedded viewer page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	page, err := assets.ReadFile("assets/index.html")
	if err != nil {
		http.Error(w, "viewer page unavailable: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

// handleWS upgrades the connection and registers the client. New
// clients immediately receive the latest frame and stats so a viewer
// joining mid-run is not blank until the next iteration.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	id := conn.RemoteAddr().String()
	cl := &client{
		conn:      conn,
		sendQueue: make(chan []byte, sendQueueSize),
	}

	s.connMu.Lock()
	s.conns[id] = cl
	if s.lastFrame != nil {
		cl.sendQueue <- s.lastFrame
	}
	if s.lastStats != nil {
		cl.sendQueue <- s.lastStats
	}
	s.connMu.Unlock()

	go s.serveConn(id, cl)
}

// serveConn owns one client connection until it drops.
func (s *Server) serveConn(id string, cl *client) {
	defer func() {
		cl.conn.Close()
		s.connMu.Lock()
		delete(s.conns, id)
		s.connMu.Unlock()
		if s.limiter != nil {
			s.limiter.Forget(id)
		}
	}()

	// Start message sender
	go s.sender(cl)

	// The viewer is read-only; drain until the connection drops.
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// sender drains the client queue, pinging during idle stretches. It
// returns when a write fails, which includes the connection being
// closed by serveConn or shutdown.
func (s *Server) sender(cl *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-cl.sendQueue:
			if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// OnFrame implements sim.Observer. Frames beyond a client's rate cap
// are dropped; the latest frame is retained for Flush and late joiners.
func (s *Server) OnFrame(frame int, st *sim.State) error {
	msg := frameMsg{
		Type:  "frame",
		Frame: frame,
		Bounds: boundsMsg{
			MinX: s.bounds.MinX,
			MaxX: s.bounds.MaxX,
			MinY: s.bounds.MinY,
			MaxY: s.bounds.MaxY,
		},
		X: st.X,
		Y: st.Y,
		R: st.R,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil
	}

	s.connMu.Lock()
	s.lastFrame = data
	for id, cl := range s.conns {
		if s.limiter != nil && !s.limiter.Allow(id) {
			continue
		}
		select {
		case cl.sendQueue <- data:
		default:
			// Skip if queue is full
		}
	}
	s.connMu.Unlock()
	return nil
}

// OnIteration implements sim.Observer. Stats are small and always sent.
func (s *Server) OnIteration(iter, overlaps int, elapsed time.Duration) error {
	msg := statsMsg{
		Type:      "iteration",
		Iteration: iter,
		Overlaps:  overlaps,
		Seconds:   elapsed.Seconds(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil
	}

	s.connMu.Lock()
	s.lastStats = data
	for _, cl := range s.conns {
		select {
		case cl.sendQueue <- data:
		default:
			// Skip if queue is full
		}
	}
	s.connMu.Unlock()
	return nil
}

// Flush pushes the latest retained frame to every client, bypassing
// the rate cap. Called after the run so viewers end on the final state.
func (s *Server) Flush() {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.lastFrame == nil {
		return
	}
	for _, cl := range s.conns {
		select {
		case cl.sendQueue <- s.lastFrame:
		default:
		}
	}
}
