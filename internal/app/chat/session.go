/*
Package chat contains the core logic of the chat server.

This file defines the Session struct, representing one authenticated
connection. The session owns the outbound side of the connection: messages
are queued on a buffered channel and drained by a single write pump
goroutine, so no registry lock or reader is ever blocked on a slow socket.
*/
package chat

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"dischat/internal/app/user"
	"dischat/internal/pkg/errs"
)

// sendQueueSize is the per-session outbound buffer. A client that cannot
// drain this many envelopes is disconnected rather than allowed to stall
// broadcast fan-out.
const sendQueueSize = 256

// Session represents one authenticated connection and its user identity.
// The connection handle is owned here exclusively; the registry keeps only
// a reference keyed by username.
type Session struct {
	// user is the authenticated identity. Immutable for the session's life.
	user user.User

	// conn is the underlying protocol transport.
	conn Conn

	// send queues marshaled envelopes for the write pump.
	send chan []byte

	// admin is the transient per-connection admin flag. It is read from the
	// moderation path and written from the session's own goroutine.
	admin atomic.Bool

	// writeMu serializes writes to the transport between the pump and the
	// moderation path.
	writeMu sync.Mutex

	// closeOnce guarantees the close path runs exactly once no matter how
	// many triggers fire (read error, write error, kick, shutdown).
	closeOnce sync.Once

	// done is closed when the session is shut down, releasing the pump.
	done chan struct{}

	// structured logger with session context.
	logger zerolog.Logger
}

// NewSession constructs a Session for an authenticated user and starts its
// write pump.
func NewSession(conn Conn, usr user.User, parent *zerolog.Logger) *Session {
	sessionLogger := parent.With().
		Str("username", usr.Name).
		Str("remote_addr", conn.RemoteAddr()).
		Logger()

	s := &Session{
		user:   usr,
		conn:   conn,
		send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
		logger: sessionLogger,
	}

	go s.writePump()

	return s
}

// User returns the session's authenticated identity.
func (s *Session) User() user.User {
	return s.user
}

// Name returns the session's username.
func (s *Session) Name() string {
	return s.user.Name
}

// RemoteAddr returns the peer address of the underlying connection.
func (s *Session) RemoteAddr() string {
	return s.conn.RemoteAddr()
}

// IsAdmin reports whether this connection holds the admin flag.
func (s *Session) IsAdmin() bool {
	return s.admin.Load()
}

// SetAdmin grants or revokes the admin flag for this connection only.
func (s *Session) SetAdmin(v bool) {
	s.admin.Store(v)
}

// Send marshals an envelope and queues it for delivery.
func (s *Session) Send(m *Message) {
	data, err := json.Marshal(m)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error marshaling envelope for session")
		return
	}
	s.SendUnit(data)
}

// SendError queues an error envelope for this session only.
func (s *Session) SendError(err *errs.CustomError) {
	s.Send(NewErrorMessage(err))
}

// SendErrorSync writes an error envelope directly to the transport,
// bypassing the queue. Used for the last envelope before a server-side
// close, which the write pump cannot be trusted to win.
func (s *Session) SendErrorSync(err *errs.CustomError) {
	data, merr := json.Marshal(NewErrorMessage(err))
	if merr != nil {
		s.logger.Error().Err(merr).Msg("Error marshaling envelope for session")
		return
	}
	if werr := s.writeUnit(data); werr != nil {
		s.logger.Debug().Err(werr).Msg("Final error envelope not delivered")
	}
}

// SendSystem queues a system notice for this session only.
func (s *Session) SendSystem(text string) {
	s.Send(NewSystem(text))
}

// SendUnit queues one pre-marshaled envelope. The enqueue never blocks: a
// full queue means the peer has stopped draining, and the session is closed
// so the failure stays isolated to this recipient.
func (s *Session) SendUnit(data []byte) {
	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.send <- data:
	default:
		s.logger.Warn().Int("queue_len", len(s.send)).Msg("Session send queue full, disconnecting")
		s.Close()
	}
}

// writeUnit performs one serialized write to the transport.
func (s *Session) writeUnit(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteUnit(data)
}

// writePump drains the send queue onto the connection.
func (s *Session) writePump() {
	for {
		select {
		case data := <-s.send:
			if err := s.writeUnit(data); err != nil {
				s.logger.Info().Err(err).Msg("Session write failed, disconnecting")
				s.Close()
				return
			}

		case <-s.done:
			return
		}
	}
}

// Kick queues a final notice and closes the session. Closing the underlying
// connection unblocks the reader, which drives the handler to its terminal
// state and exactly-once deregistration.
func (s *Session) Kick(notice string) {
	s.logger.Warn().Str("notice", notice).Msg("Session kicked")

	// Deliver the notice synchronously, best effort, before the socket
	// goes away.
	if data, err := json.Marshal(NewSystem(notice)); err == nil {
		if err := s.writeUnit(data); err != nil {
			s.logger.Debug().Err(err).Msg("Kick notice not delivered")
		}
	}

	s.Close()
}

// abandon stops the write pump without closing the connection. Used when
// registration loses the duplicate-username race and the connection must
// stay open for an auth retry.
func (s *Session) abandon() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// Close shuts the session down exactly once: the done channel releases the
// write pump and the connection close unblocks any pending read.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)

		if err := s.conn.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("Session connection close error")
		}
	})
}
