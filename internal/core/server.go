package core

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"RoverRelay/internal/hub"
	"RoverRelay/internal/model"
	"RoverRelay/internal/parser"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// Server is the client-facing HTTP surface: the client websocket, health,
// metrics and the optional static front end.
type Server struct {
	Addr      string
	StaticDir string

	hub    *hub.Registry
	relay  *Relay
	health func() model.Health
	log    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	server *http.Server
}

// NewServer constructs a Server listening on addr.
func NewServer(addr, staticDir string, reg *hub.Registry, relay *Relay, health func() model.Health, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		Addr:      addr,
		StaticDir: staticDir,
		hub:       reg,
		relay:     relay,
		health:    health,
		log:       log.With("component", "server"),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.server = &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	return s
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/client", s.handleClient)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	if s.StaticDir != "" {
		mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(s.StaticDir))))
		mux.HandleFunc("/", s.handleIndex)
	}
	return mux
}

// Start serves until Stop. It blocks and returns nil after a clean shutdown.
func (s *Server) Start() error {
	s.log.Info("server listening", "addr", s.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop cancels in-flight client work, closes every client and shuts the
// HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	s.cancel()
	s.hub.CloseAll()
	return s.server.Shutdown(ctx)
}

// handleClient upgrades to websocket, registers the client and processes its
// messages sequentially until it disconnects.
func (s *Server) handleClient(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := hub.NewWSConn(ws)
	s.hub.Register(c)
	defer func() {
		s.hub.Unregister(c)
		if err := c.Close(); err != nil {
			s.log.Debug("close client", "client", c.ID(), "error", err)
		}
	}()

	for {
		b, err := c.Read()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("client read failed", "client", c.ID(), "error", err)
			}
			return
		}
		req, err := parser.DecodeRequest(b)
		if err != nil {
			if err := s.hub.SendTo(c, model.ClientReply{Error: "Invalid JSON format"}); err != nil {
				return
			}
			continue
		}
		s.relay.Handle(s.ctx, c, req)
		if s.ctx.Err() != nil {
			return
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.health()); err != nil {
		s.log.Warn("write health", "error", err)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	index := filepath.Join(s.StaticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, index)
}
