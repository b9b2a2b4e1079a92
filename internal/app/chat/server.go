/*
Package chat contains the core logic of the chat server.

This file defines the Server, which owns the TCP listener, spawns one
connection handler goroutine per accepted socket, and coordinates graceful
shutdown: stop accepting, kick every live session, wait for handlers to
finish.
*/
package chat

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"dischat/internal/app/store"
	"dischat/internal/configs"
	"dischat/internal/pkg/limiter"
	"dischat/internal/pkg/logx"
)

// Server accepts chat connections and wires them into the shared state.
type Server struct {
	cfg *configs.AppConfig

	reg        *Registry
	router     *Router
	dispatcher *Dispatcher
	handler    *Handler

	listener  net.Listener
	startTime time.Time
	closed    atomic.Bool
	wg        sync.WaitGroup

	mu    sync.Mutex
	conns map[Conn]struct{}

	logger zerolog.Logger
}

// Stats is a point-in-time view of the server published on the status
// surface. Room passwords are never part of it.
type Stats struct {
	UptimeSeconds int64               `json:"uptimeSeconds"`
	UserCount     int                 `json:"userCount"`
	RoomCount     int                 `json:"roomCount"`
	Users         []string            `json:"users"`
	Rooms         map[string][]string `json:"rooms"`
}

// NewServer wires the registry, router, dispatcher, and connection handler
// over the opened stores.
func NewServer(cfg *configs.AppConfig, creds *store.CredentialStore, bans *store.BanStore, chatLog *store.ChatLog) *Server {
	reg := NewRegistry()
	router := NewRouter(reg)
	dispatcher := NewDispatcher(reg, router, creds, bans, chatLog, cfg.AdminPassword)
	units := limiter.NewIPRateLimiter(rate.Limit(cfg.MessageRate), cfg.MessageBurst)
	handler := NewHandler(reg, router, dispatcher, creds, bans, chatLog, cfg.AuthTimeout.Std(), units)

	return &Server{
		cfg:        cfg,
		reg:        reg,
		router:     router,
		dispatcher: dispatcher,
		handler:    handler,
		conns:      make(map[Conn]struct{}),
		startTime:  time.Now(),
		logger:     logx.Logger().With().Str("component", "server").Logger(),
	}
}

// Listen binds the TCP listener on the configured address.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return err
	}

	s.listener = listener
	s.logger.Info().Str("addr", listener.Addr().String()).Msg("Server listening")
	return nil
}

// Addr returns the bound listener address. Valid after Listen.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.cfg.Addr()
	}
	return s.listener.Addr().String()
}

// Serve runs the accept loop until Shutdown closes the listener. The loop
// never blocks on per-connection I/O.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closed.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn().Err(err).Msg("Accept failed")
			continue
		}

		if tcpConn, ok := conn.(*net.TCPConn); ok {
			if err := tcpConn.SetKeepAlive(true); err != nil {
				s.logger.Debug().Err(err).Msg("Failed to enable keep-alive")
			}
		}

		s.logger.Debug().Str("remote_addr", conn.RemoteAddr().String()).Msg("Connection accepted")
		go s.HandleConn(NewLineConn(conn, s.cfg.MaxLineBytes))
	}
}

// HandleConn runs the full connection lifecycle on the calling goroutine's
// behalf. It is also the entry point for alternate transports (the
// WebSocket bridge) that accept connections elsewhere.
func (s *Server) HandleConn(conn Conn) {
	if !s.track(conn) {
		conn.Close()
		return
	}
	defer s.wg.Done()
	defer s.untrack(conn)

	s.handler.Handle(conn)
}

// track registers a live connection for shutdown. The wg.Add happens under
// the same lock that Shutdown takes before waiting, so a connection is
// either refused or fully accounted for.
func (s *Server) track(conn Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

// Stats returns the current status snapshot.
func (s *Server) Stats() Stats {
	users, rooms, _ := s.reg.Snapshot()

	return Stats{
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		UserCount:     len(users),
		RoomCount:     len(rooms),
		Users:         users,
		Rooms:         rooms,
	}
}

// Shutdown stops accepting, disconnects every session, and waits for all
// handlers to finish. Safe to call once.
func (s *Server) Shutdown() {
	s.logger.Info().Msg("Server shutting down")
	s.mu.Lock()
	s.closed.Store(true)
	s.mu.Unlock()

	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("Listener close error")
		}
	}

	for _, sess := range s.reg.Sessions() {
		sess.Kick("Server shutting down.")
	}

	// Connections still authenticating have no session to kick; closing the
	// socket unblocks their read.
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info().Msg("All connections drained")
}
