// Package web is a local stand-in for the MarketPulse query service. It speaks
// the same websocket contract and is used for development, demos and tests.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/codefionn/pulseterm/internal/consts"
	"github.com/codefionn/pulseterm/internal/logger"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// Server represents the stand-in web server
type Server struct {
	addr       string
	listener   net.Listener
	httpServer *http.Server
	router     *httprouter.Router
	upgrader   websocket.Upgrader
	responder  Responder
	hub        *Hub
	log        *logger.Logger
}

// NewServer creates a server for addr (host:port, port 0 picks a free one).
// A nil responder answers with an EchoResponder.
func NewServer(addr string, responder Responder) *Server {
	if responder == nil {
		responder = &EchoResponder{Sources: 6}
	}

	s := &Server{
		addr:      addr,
		router:    httprouter.New(),
		responder: responder,
		hub:       NewHub(),
		log:       logger.Global().WithPrefix("web"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  consts.BufferSize1KB,
			WriteBufferSize: consts.BufferSize1KB,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for local development
			},
		},
	}
	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.router.GET(consts.DefaultPath, s.handleWebSocket)
	s.router.GET("/health", s.handleHealth)
}

// Handler returns the HTTP handler serving all routes
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: consts.Timeout10Seconds,
		ErrorLog:          logger.StdLogger(s.log, slog.LevelError),
	}

	go s.hub.Run()

	go func() {
		s.log.Info("listening on %s", ln.Addr())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server error: %v", err)
		}
	}()

	return nil
}

// Stop closes all connections and shuts the server down
func (s *Server) Stop() error {
	s.log.Info("stopping")

	if s.httpServer == nil {
		return nil
	}

	// Hijacked websocket connections are not tracked by Shutdown
	s.hub.DropAll()
	s.hub.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), consts.Timeout5Seconds)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

// Addr returns the address the server listens on
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// URL returns the websocket endpoint URL
func (s *Server) URL() string {
	return "ws://" + s.Addr() + consts.DefaultPath
}

// DropConnections closes every open websocket abruptly, without a close
// frame, and returns how many were closed.
func (s *Server) DropConnections() int {
	return s.hub.DropAll()
}

// Broadcast writes a raw frame to every open connection
func (s *Server) Broadcast(frame []byte) {
	s.hub.Broadcast(frame)
}

// ClientCount returns the number of open connections
func (s *Server) ClientCount() int {
	return s.hub.ClientCount()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("failed to upgrade websocket: %v", err)
		return
	}

	client := NewClient(s.hub, conn, s.responder, s.log)
	if !s.hub.Register(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"status":"ok"}`)
}
