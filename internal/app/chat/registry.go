/*
Package chat contains the core logic of the chat server.

This file defines the Registry, the single authoritative store of connected
users, room membership, and mute state. Every operation is atomic under one
coarse mutex; accessors hand out snapshots, never live references, so no
caller ever holds the lock across socket I/O.
*/
package chat

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"dischat/internal/pkg/errs"
	"dischat/internal/pkg/logx"
)

// member is the registry's view of one connected user.
type member struct {
	session *Session

	// muteUntil is the mute expiry. Zero or past means not muted; the
	// check is a plain clock comparison, never a timer.
	muteUntil time.Time
}

// roomState is the registry's view of one room. A roomState with no members
// is deleted immediately, so an existing room always has at least one.
type roomState struct {
	// password is bound at creation and required on every later join.
	// Empty means open.
	password string

	members map[string]struct{}
}

// Registry is the shared source of truth for connected users, rooms, and
// mute state. All exported methods are safe for concurrent use.
type Registry struct {
	mu sync.Mutex

	users    map[string]*member
	rooms    map[string]*roomState
	userRoom map[string]string

	// clock is the time source, swappable in tests for mute boundaries.
	clock func() time.Time

	logger zerolog.Logger
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		users:    make(map[string]*member),
		rooms:    make(map[string]*roomState),
		userRoom: make(map[string]string),
		clock:    time.Now,
		logger:   logx.Logger().With().Str("component", "registry").Logger(),
	}
}

// Register adds a session under its username. At most one live session may
// hold a username at any instant.
func (r *Registry) Register(s *Session) *errs.CustomError {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := s.Name()
	if _, online := r.users[name]; online {
		return errs.NewError(errs.ErrAlreadyOnline)
	}

	r.users[name] = &member{session: s}
	r.logger.Info().Str("username", name).Int("online", len(r.users)).Msg("User registered")
	return nil
}

// Deregister removes a user and their room membership, deleting the room if
// it empties. Idempotent: absent users are a no-op. It returns the vacated
// room name, if any.
func (r *Registry) Deregister(username string) (room string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, online := r.users[username]; !online {
		return "", false
	}

	delete(r.users, username)
	room = r.leaveRoomLocked(username)

	r.logger.Info().Str("username", username).Int("online", len(r.users)).Msg("User deregistered")
	return room, true
}

// leaveRoomLocked removes username from its current room and deletes the
// room when its member set empties. Caller holds the lock. Returns the
// vacated room name or "".
func (r *Registry) leaveRoomLocked(username string) string {
	room, inRoom := r.userRoom[username]
	if !inRoom {
		return ""
	}

	delete(r.userRoom, username)

	state, exists := r.rooms[room]
	if !exists {
		return room
	}

	delete(state.members, username)
	if len(state.members) == 0 {
		delete(r.rooms, room)
		r.logger.Info().Str("room", room).Msg("Empty room removed")
	}

	return room
}

// JoinRoom moves a user into a room, creating it on first use and binding
// the supplied password at creation. Joining an existing room requires the
// bound password to match. Leaving the previous room, including empty-room
// deletion, happens in the same critical section. It returns the vacated
// room, whether the target room was created, and a validation error on
// password mismatch.
func (r *Registry) JoinRoom(username, room, password string) (prevRoom string, created bool, err *errs.CustomError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, online := r.users[username]; !online {
		return "", false, errs.NewError(errs.ErrUserNotFound, username)
	}

	state, exists := r.rooms[room]
	if exists {
		if state.password != password {
			return "", false, errs.NewError(errs.ErrWrongRoomPassword)
		}
	}

	prevRoom = r.leaveRoomLocked(username)

	// Re-check: leaving may have deleted the target room if the user was
	// its last member.
	state, exists = r.rooms[room]
	if !exists {
		state = &roomState{password: password, members: make(map[string]struct{})}
		r.rooms[room] = state
		created = true
	}

	state.members[username] = struct{}{}
	r.userRoom[username] = room

	r.logger.Info().
		Str("username", username).
		Str("room", room).
		Bool("created", created).
		Msg("User joined room")
	return prevRoom, created, nil
}

// LeaveRoom removes a user from their current room. No-op when roomless.
func (r *Registry) LeaveRoom(username string) (room string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room = r.leaveRoomLocked(username)
	return room, room != ""
}

// RoomOf returns the user's current room, if any.
func (r *Registry) RoomOf(username string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.userRoom[username]
	return room, ok
}

// Mute sets the user's mute expiry to now+d. Reports whether the user is
// online.
func (r *Registry) Mute(username string, d time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, online := r.users[username]
	if !online {
		return false
	}

	m.muteUntil = r.clock().Add(d)
	return true
}

// Unmute clears the user's mute expiry. Reports whether the user is online.
func (r *Registry) Unmute(username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, online := r.users[username]
	if !online {
		return false
	}

	m.muteUntil = time.Time{}
	return true
}

// IsMuted reports whether the user's mute expiry lies in the future.
func (r *Registry) IsMuted(username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, online := r.users[username]
	if !online {
		return false
	}

	return m.muteUntil.After(r.clock())
}

// Session returns the live session for a username, if online.
func (r *Registry) Session(username string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, online := r.users[username]
	if !online {
		return nil, false
	}
	return m.session, true
}

// Users returns a sorted snapshot of online usernames.
func (r *Registry) Users() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.users))
	for name := range r.users {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RoomNames returns a sorted snapshot of room names. Passwords are never
// part of any snapshot.
func (r *Registry) RoomNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.rooms))
	for name := range r.rooms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Rooms returns a snapshot of room membership: room name to sorted member
// list.
func (r *Registry) Rooms() map[string][]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.roomsLocked()
}

func (r *Registry) roomsLocked() map[string][]string {
	snapshot := make(map[string][]string, len(r.rooms))
	for name, state := range r.rooms {
		members := make([]string, 0, len(state.members))
		for m := range state.members {
			members = append(members, m)
		}
		sort.Strings(members)
		snapshot[name] = members
	}
	return snapshot
}

// UserRooms returns a snapshot of the username-to-room mapping.
func (r *Registry) UserRooms() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make(map[string]string, len(r.userRoom))
	for u, room := range r.userRoom {
		snapshot[u] = room
	}
	return snapshot
}

// Snapshot returns the users, rooms, and user-room snapshots atomically, as
// pushed to clients in userlist envelopes.
func (r *Registry) Snapshot() (users []string, rooms map[string][]string, userRooms map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users = make([]string, 0, len(r.users))
	for name := range r.users {
		users = append(users, name)
	}
	sort.Strings(users)

	rooms = r.roomsLocked()

	userRooms = make(map[string]string, len(r.userRoom))
	for u, room := range r.userRoom {
		userRooms[u] = room
	}

	return users, rooms, userRooms
}

// Sessions returns a snapshot of all live sessions, excluding the named
// usernames. Fan-out happens on the snapshot after the lock is released.
func (r *Registry) Sessions(exclude ...string) []*Session {
	skip := make(map[string]struct{}, len(exclude))
	for _, name := range exclude {
		skip[name] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sessions := make([]*Session, 0, len(r.users))
	for name, m := range r.users {
		if _, excluded := skip[name]; excluded {
			continue
		}
		sessions = append(sessions, m.session)
	}
	return sessions
}

// SessionsInRoom returns a snapshot of the sessions currently in a room,
// excluding the named usernames.
func (r *Registry) SessionsInRoom(room string, exclude ...string) []*Session {
	skip := make(map[string]struct{}, len(exclude))
	for _, name := range exclude {
		skip[name] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	state, exists := r.rooms[room]
	if !exists {
		return nil
	}

	sessions := make([]*Session, 0, len(state.members))
	for name := range state.members {
		if _, excluded := skip[name]; excluded {
			continue
		}
		if m, online := r.users[name]; online {
			sessions = append(sessions, m.session)
		}
	}
	return sessions
}

// Counts returns the number of online users and live rooms.
func (r *Registry) Counts() (users, rooms int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.users), len(r.rooms)
}
