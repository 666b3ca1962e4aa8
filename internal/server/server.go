// Package server carries the transport: one websocket per client, a JSON
// event envelope in both directions, and the small HTTP surface around it.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"dealroom/internal/engine"
	"dealroom/internal/store"
)

type Server struct {
	store    *store.Store
	engine   *engine.Engine
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*client
}

// New builds the server without an engine; the engine needs the server as
// its broadcaster, so the two are tied together with AttachEngine.
func New(st *store.Store, allowedOrigins []string, log *zap.Logger) *Server {
	s := &Server{
		store:   st,
		log:     log,
		clients: make(map[string]*client),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return s
}

func (s *Server) AttachEngine(e *engine.Engine) {
	s.engine = e
}

func originChecker(allowed []string) func(*http.Request) bool {
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// Handler wires the websocket endpoint and the HTTP surface behind CORS.
func (s *Server) Handler(allowedOrigins []string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/health", s.serveHealth)
	mux.HandleFunc("/info", s.serveInfo)

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(mux)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		id:   uuid.NewString(),
		srv:  s,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()

	s.log.Info("client connected", zap.String("conn", c.id))
	go c.writePump()
	go c.readPump()
}

func (s *Server) serveHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

func (s *Server) serveInfo(w http.ResponseWriter, _ *http.Request) {
	rooms, players, uptime := s.store.Counts()
	s.mu.Lock()
	conns := len(s.clients)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"rooms":         rooms,
		"players":       players,
		"connections":   conns,
		"uptimeSeconds": int64(uptime / time.Second),
	})
}

// dropClient unregisters a closed connection and lets the engine mark the
// player away.
func (s *Server) dropClient(c *client) {
	s.mu.Lock()
	if s.clients[c.id] != c {
		s.mu.Unlock()
		return
	}
	delete(s.clients, c.id)
	s.mu.Unlock()

	close(c.done)
	s.engine.HandleDisconnect(c.id)
	s.log.Info("client disconnected", zap.String("conn", c.id))
}

// outbound is the server push envelope.
type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Push implements engine.Broadcaster. Serialisation failures and unknown
// connections drop the frame; the next state update corrects the client.
func (s *Server) Push(connectionID, event string, payload any) {
	raw, err := json.Marshal(outbound{Event: event, Data: payload})
	if err != nil {
		s.log.Error("push marshal failed", zap.String("event", event), zap.Error(err))
		return
	}

	s.mu.Lock()
	c := s.clients[connectionID]
	s.mu.Unlock()
	if c == nil {
		return
	}
	c.enqueue(raw)
}
