/*
Package chat contains the core logic of the chat server.

This file defines the Router, which resolves an outgoing envelope's
recipient set from a registry snapshot and fans it out. Envelopes are
marshaled once per broadcast; a failed delivery to one recipient triggers
only that recipient's own close path and never aborts the rest of the
fan-out or surfaces to the sender.
*/
package chat

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"dischat/internal/pkg/errs"
	"dischat/internal/pkg/logx"
)

// Router delivers envelopes to global, room, or single-user scopes.
type Router struct {
	reg    *Registry
	logger zerolog.Logger
}

// NewRouter constructs a Router over the given registry.
func NewRouter(reg *Registry) *Router {
	return &Router{
		reg:    reg,
		logger: logx.Logger().With().Str("component", "router").Logger(),
	}
}

// fanOut marshals once and queues the unit on every session in the set.
func (rt *Router) fanOut(sessions []*Session, m *Message) {
	if len(sessions) == 0 {
		return
	}

	data, err := json.Marshal(m)
	if err != nil {
		rt.logger.Error().Err(err).Str("msg_type", string(m.Type)).Msg("Error marshaling envelope for broadcast")
		return
	}

	for _, s := range sessions {
		s.SendUnit(data)
	}
}

// Global delivers to every connected user except the excluded usernames.
func (rt *Router) Global(m *Message, exclude ...string) {
	rt.fanOut(rt.reg.Sessions(exclude...), m)
}

// Room delivers to every member of the named room except the excluded
// usernames.
func (rt *Router) Room(room string, m *Message, exclude ...string) {
	rt.fanOut(rt.reg.SessionsInRoom(room, exclude...), m)
}

// User delivers to exactly the named recipient. It returns ErrUserNotFound
// when the target has no live session; nothing is delivered anywhere else.
func (rt *Router) User(target string, m *Message) *errs.CustomError {
	s, online := rt.reg.Session(target)
	if !online {
		return errs.NewError(errs.ErrUserNotFound, target)
	}

	s.Send(m)
	return nil
}

// PushUserList pushes a fresh registry snapshot to every connected user.
// Called after every membership change so clients track presence.
func (rt *Router) PushUserList() {
	users, rooms, userRooms := rt.reg.Snapshot()
	rt.Global(NewUserList(users, rooms, userRooms))
}
