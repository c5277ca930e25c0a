package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Server is a WebSocket server that exposes the DuckServe dispatcher.
type Server struct {
	listener   net.Listener
	http       *http.Server
	dispatcher *Dispatcher
	upgrader   websocket.Upgrader
	sendBuffer int
	log        *logrus.Logger

	mu    sync.Mutex
	conns map[*Connection]struct{}
	wg    sync.WaitGroup
	done  chan struct{}
}

// NewServer creates a new server around dispatcher. sendBuffer bounds the
// number of replies queued per connection.
func NewServer(dispatcher *Dispatcher, sendBuffer int, log *logrus.Logger) *Server {
	s := &Server{
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		sendBuffer: sendBuffer,
		log:        log,
		conns:      map[*Connection]struct{}{},
		done:       make(chan struct{}),
	}

	router := mux.NewRouter()
	router.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
	router.HandleFunc("/", s.handleRoot)
	s.http = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start begins listening for connections on the specified address.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.listener = listener

	s.log.WithField("address", listener.Addr().String()).Info("Server listening")

	go func() {
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("Server stopped unexpectedly")
		}
	}()
	return nil
}

// Stop closes the listener and every open connection, then waits for the
// connection handlers to return.
func (s *Server) Stop() error {
	close(s.done)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.http.Shutdown(ctx)

	s.mu.Lock()
	for conn := range s.conns {
		conn.ws.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

// Addr returns the server's listening address.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	metrics.WritePrometheus(w, true)
}

// handleRoot upgrades WebSocket requests and answers anything else with the
// server identity.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "DuckServe v%s\n", Version)
		return
	}

	select {
	case <-s.done:
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Debug("Upgrade failed")
		return
	}

	conn := newConnection(uuid.NewString(), ws, s.sendBuffer, s.log)
	s.track(conn, true)
	s.wg.Add(1)
	go s.handleConnection(conn, r.RemoteAddr)
}

func (s *Server) track(conn *Connection, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
		connectionsActive.Inc()
	} else {
		delete(s.conns, conn)
		connectionsActive.Dec()
	}
}

func (s *Server) handleConnection(conn *Connection, remote string) {
	defer s.wg.Done()
	defer s.track(conn, false)
	defer conn.ws.Close()

	log := conn.log.WithField("remote", remote)
	log.Info("Client connected")

	go conn.writeLoop()
	defer conn.closeSend()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		_, frame, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Warn("Read failed")
			}
			log.Info("Client disconnected")
			return
		}

		reply := s.dispatcher.Dispatch(ctx, conn.ID(), frame)
		if !conn.Send(reply) {
			log.Warn("Send queue full, dropping response")
		}
	}
}
