/*
Package chat contains the core logic of the chat server.

This file defines the connection Handler: the per-connection state machine
CONNECTING → AUTHENTICATING → AUTHENTICATED ⇄ IN_ROOM → CLOSED. The
authenticating phase runs under a read deadline; the authenticated phase is
a blocking read loop feeding the dispatcher. Deregistration runs exactly
once no matter how the connection ends.
*/
package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"dischat/internal/app/store"
	"dischat/internal/app/user"
	"dischat/internal/pkg/errs"
	"dischat/internal/pkg/limiter"
	"dischat/internal/pkg/logx"
)

// Username and password policy, enforced at registration.
const (
	MinUsernameRunes = 3
	MinPasswordRunes = 4
)

// Handler drives the lifecycle of accepted connections. One Handle call per
// connection, each on its own goroutine.
type Handler struct {
	reg        *Registry
	router     *Router
	dispatcher *Dispatcher
	creds      *store.CredentialStore
	bans       *store.BanStore
	log        *store.ChatLog

	// authTimeout bounds the window from accept to a valid login/register.
	authTimeout time.Duration

	// units throttles inbound protocol units per peer address.
	units *limiter.IPRateLimiter

	logger zerolog.Logger
}

// NewHandler constructs a connection Handler over the shared server state.
func NewHandler(reg *Registry, router *Router, dispatcher *Dispatcher, creds *store.CredentialStore, bans *store.BanStore, log *store.ChatLog, authTimeout time.Duration, units *limiter.IPRateLimiter) *Handler {
	return &Handler{
		reg:         reg,
		router:      router,
		dispatcher:  dispatcher,
		creds:       creds,
		bans:        bans,
		log:         log,
		authTimeout: authTimeout,
		units:       units,
		logger:      logx.Logger().With().Str("component", "handler").Logger(),
	}
}

// Handle owns one connection from accept to close. It blocks until the
// connection is finished.
func (h *Handler) Handle(conn Conn) {
	defer func() {
		if err := conn.Close(); err == nil {
			h.logger.Debug().Str("remote_addr", conn.RemoteAddr()).Msg("Connection closed")
		}
	}()

	sess, ok := h.authenticate(conn)
	if !ok {
		return
	}

	h.welcome(sess)
	h.readLoop(sess, conn)
}

// authenticate runs the AUTHENTICATING state: it reads units under the auth
// deadline until a login or register succeeds, the deadline expires, or a
// terminal rejection (ban) occurs. Failed attempts keep the connection in
// the state for retry.
func (h *Handler) authenticate(conn Conn) (*Session, bool) {
	remote := conn.RemoteAddr()

	if err := conn.SetReadDeadline(time.Now().Add(h.authTimeout)); err != nil {
		h.logger.Error().Err(err).Str("remote_addr", remote).Msg("Failed to set auth deadline")
		return nil, false
	}

	for {
		m, err := conn.ReadMessage()
		if err != nil {
			var ce *errs.CustomError
			if errors.As(err, &ce) {
				// Malformed unit: warn the peer, keep waiting for auth.
				// Malformed floods count against the unit budget too.
				if h.overUnitBudget(remote) {
					ce = errs.NewError(errs.ErrRateLimited)
				}
				h.writeError(conn, ce)
				continue
			}

			h.logger.Info().Err(err).Str("remote_addr", remote).Msg("Connection ended before authentication")
			return nil, false
		}

		// Auth attempts draw from the same budget as chat units, so
		// credential guessing is bounded before any store lookup.
		if h.overUnitBudget(remote) {
			h.writeError(conn, errs.NewError(errs.ErrRateLimited))
			continue
		}

		username := strings.TrimSpace(m.Username)

		switch m.Type {
		case TypeLogin:
			if h.bans.IsBanned(username) {
				// Ban is the one auth rejection that closes the socket.
				h.writeError(conn, errs.NewError(errs.ErrBanned))
				h.logger.Warn().Str("username", username).Str("remote_addr", remote).Msg("Banned user rejected")
				return nil, false
			}

			if !h.creds.Authenticate(username, m.Password) {
				h.writeError(conn, errs.NewError(errs.ErrInvalidCredentials))
				h.logger.Warn().Str("username", username).Str("remote_addr", remote).Msg("Failed login attempt")
				continue
			}

		case TypeRegister:
			if ce := h.register(username, m.Password); ce != nil {
				terminal := ce.Code == errs.ErrBanned
				h.writeError(conn, ce)
				if terminal {
					return nil, false
				}
				continue
			}

		default:
			h.writeError(conn, errs.NewError(errs.ErrAuthRequired))
			continue
		}

		sess := NewSession(conn, user.User{Name: username, Avatar: m.Avatar}, &h.logger)
		if ce := h.reg.Register(sess); ce != nil {
			// Another live session holds the username; retry allowed.
			sess.abandon()
			h.writeError(conn, ce)
			continue
		}

		if err := conn.SetReadDeadline(time.Time{}); err != nil {
			h.logger.Error().Err(err).Str("username", username).Msg("Failed to clear auth deadline")
			h.teardown(sess)
			return nil, false
		}

		return sess, true
	}
}

// register validates the account policy and persists the new credential.
func (h *Handler) register(username, password string) *errs.CustomError {
	if utf8.RuneCountInString(username) < MinUsernameRunes {
		return errs.NewError(errs.ErrUsernameTooShort)
	}
	if utf8.RuneCountInString(password) < MinPasswordRunes {
		return errs.NewError(errs.ErrPasswordTooShort)
	}
	if h.bans.IsBanned(username) {
		return errs.NewError(errs.ErrBanned)
	}

	created, err := h.creds.Create(username, password)
	if err != nil {
		h.logger.Error().Err(err).Str("username", username).Msg("Failed to persist new account")
		return errs.NewError(errs.ErrUnknown, err)
	}
	if !created {
		return errs.NewError(errs.ErrUserExists, username)
	}

	h.logger.Info().Str("username", username).Msg("New user registered")
	return nil
}

// welcome announces a freshly authenticated session to the sender and the
// rest of the server.
func (h *Handler) welcome(sess *Session) {
	name := sess.Name()

	sess.SendSystem("Authentication successful!")
	sess.SendSystem(fmt.Sprintf("Welcome to dischat, %s! Type /help for commands.", name))

	h.router.Global(NewSystem(fmt.Sprintf("%s joined the chat.", name)), name)
	h.router.PushUserList()

	if h.log != nil {
		if err := h.log.Append(store.EventJoin, name, "", "", sess.RemoteAddr()); err != nil {
			h.logger.Debug().Err(err).Msg("Chat log append failed")
		}
	}
}

// readLoop runs the AUTHENTICATED/IN_ROOM states: decode one unit at a
// time and hand each to the dispatcher. Any fatal read error, local or
// caused by a moderation close, drives the terminal state.
func (h *Handler) readLoop(sess *Session, conn Conn) {
	defer h.teardown(sess)

	for {
		m, err := conn.ReadMessage()
		if err != nil {
			var ce *errs.CustomError
			if errors.As(err, &ce) {
				// Malformed unit: answer the sender, keep the loop alive.
				// Malformed floods count against the unit budget too.
				if h.overUnitBudget(conn.RemoteAddr()) {
					ce = errs.NewError(errs.ErrRateLimited)
				}
				sess.SendError(ce)
				continue
			}

			if errors.Is(err, ErrUnitTooLarge) {
				// The envelope goes out past the write pump, and the
				// inbound side is drained first: closing with unread
				// bytes resets the connection and drops the reply.
				sess.SendErrorSync(errs.NewError(errs.ErrUnitTooLarge))
				h.drainInbound(conn)
				h.logger.Warn().Str("username", sess.Name()).Msg("Oversized unit, disconnecting")
			}
			return
		}

		if h.overUnitBudget(conn.RemoteAddr()) {
			sess.SendError(errs.NewError(errs.ErrRateLimited))
			continue
		}

		h.dispatcher.Dispatch(sess, m)
	}
}

// teardown is the CLOSED state: close the session and deregister exactly
// once, then tell everyone else.
func (h *Handler) teardown(sess *Session) {
	sess.Close()

	name := sess.Name()
	if _, wasOnline := h.reg.Deregister(name); !wasOnline {
		return
	}

	h.router.Global(NewSystem(fmt.Sprintf("%s left the chat.", name)))
	h.router.PushUserList()

	if h.log != nil {
		if err := h.log.Append(store.EventLeave, name, "", "", ""); err != nil {
			h.logger.Debug().Err(err).Msg("Chat log append failed")
		}
	}
}

// writeError replies with an error envelope during the auth phase, before
// a session write pump exists.
func (h *Handler) writeError(conn Conn, ce *errs.CustomError) {
	if err := WriteEnvelope(conn, NewErrorMessage(ce)); err != nil {
		h.logger.Debug().Err(err).Msg("Failed to write auth error")
	}
}

// overUnitBudget reports whether the peer has exhausted its inbound unit
// allowance.
func (h *Handler) overUnitBudget(remote string) bool {
	return h.units != nil && !h.units.Allow(remote)
}

// drainInbound consumes whatever the peer has already sent, so the close
// that follows does not reset the connection and discard the last reply.
func (h *Handler) drainInbound(conn Conn) {
	if err := conn.SetReadDeadline(time.Now().Add(250 * time.Millisecond)); err != nil {
		return
	}
	for {
		if _, err := conn.ReadMessage(); err != nil {
			var ce *errs.CustomError
			if errors.As(err, &ce) || errors.Is(err, ErrUnitTooLarge) {
				continue
			}
			return
		}
	}
}
