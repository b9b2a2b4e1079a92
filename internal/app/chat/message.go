/*
Package chat contains the core logic of the chat server: the wire codec, the
session registry, per-connection sessions, command dispatch, and broadcast
routing.

This file defines the Message envelope, the closed set of message types, the
decode-boundary validation that rejects anything outside the schema, and the
constructors for server-originated envelopes.
*/
package chat

import (
	"time"

	"github.com/google/uuid"

	"dischat/internal/pkg/errs"
)

// MessageType identifies one variant of the wire envelope.
type MessageType string

// Client-originated message types.
const (
	// TypeLogin authenticates an existing account.
	TypeLogin MessageType = "login"

	// TypeRegister creates an account and authenticates it.
	TypeRegister MessageType = "register"

	// TypeChat is a room-scoped chat message.
	TypeChat MessageType = "chat"

	// TypePrivate is a direct message to a single named recipient.
	TypePrivate MessageType = "private"

	// TypeCommand carries a slash-command line.
	TypeCommand MessageType = "command"

	// TypeTyping signals the sender's typing indicator state.
	TypeTyping MessageType = "typing"

	// TypeFile relays file metadata to a room or recipient. The server
	// never carries payload bytes.
	TypeFile MessageType = "file"
)

// Server-originated message types.
const (
	// TypeSystem is an informational notice.
	TypeSystem MessageType = "system"

	// TypeError reports a coded failure to the requester only.
	TypeError MessageType = "error"

	// TypeAction is a third-person action line (/me).
	TypeAction MessageType = "action"

	// TypeAnnounce is an admin announcement, delivered to everyone.
	TypeAnnounce MessageType = "announce"

	// TypeUserList is the authoritative online-user and room snapshot,
	// pushed after every membership change.
	TypeUserList MessageType = "userlist"
)

// timestampLayout is the human-readable timestamp carried on chat events.
const timestampLayout = "2006-01-02 15:04:05"

// Message is the wire envelope: one flat JSON object per protocol unit.
// Only the Type field is always present; the rest are type-specific.
type Message struct {
	Type MessageType `json:"type"`

	// ID is a server-assigned UUID on chat, private, and file envelopes.
	ID string `json:"id,omitempty"`

	// Credentials and identity (login/register).
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Avatar   string `json:"avatar,omitempty"`

	// Routing fields.
	From   string `json:"from,omitempty"`
	Target string `json:"target,omitempty"`
	Room   string `json:"room,omitempty"`

	// Payload fields.
	Text   string `json:"text,omitempty"`
	Code   int    `json:"code,omitempty"`
	Status bool   `json:"status,omitempty"`
	Name   string `json:"name,omitempty"`
	Size   int64  `json:"size,omitempty"`

	// Registry snapshot fields (userlist).
	Users     []string            `json:"users,omitempty"`
	Rooms     map[string][]string `json:"rooms,omitempty"`
	UserRooms map[string]string   `json:"userRooms,omitempty"`

	Timestamp string `json:"ts,omitempty"`
}

// clientTypes is the closed set of envelope types a client may send.
var clientTypes = map[MessageType]struct{}{
	TypeLogin:    {},
	TypeRegister: {},
	TypeChat:     {},
	TypePrivate:  {},
	TypeCommand:  {},
	TypeTyping:   {},
	TypeFile:     {},
}

// ValidateInbound checks a decoded client envelope against the schema:
// the type must belong to the closed client set and every field the type
// requires must be present. It returns a protocol-class error on violation.
func ValidateInbound(m *Message) *errs.CustomError {
	if _, ok := clientTypes[m.Type]; !ok {
		return errs.NewError(errs.ErrUnknownType, string(m.Type))
	}

	switch m.Type {
	case TypeLogin, TypeRegister:
		if m.Username == "" {
			return errs.NewError(errs.ErrMissingField, "username")
		}
		if m.Password == "" {
			return errs.NewError(errs.ErrMissingField, "password")
		}

	case TypeChat, TypeCommand:
		if m.Text == "" {
			return errs.NewError(errs.ErrMissingField, "text")
		}

	case TypePrivate:
		if m.Target == "" {
			return errs.NewError(errs.ErrMissingField, "target")
		}
		if m.Text == "" {
			return errs.NewError(errs.ErrMissingField, "text")
		}

	case TypeFile:
		if m.Name == "" {
			return errs.NewError(errs.ErrMissingField, "name")
		}
		if m.Size <= 0 {
			return errs.NewError(errs.ErrMissingField, "size")
		}
	}

	return nil
}

// now returns the wall-clock timestamp string carried on outbound envelopes.
func now() string {
	return time.Now().Format(timestampLayout)
}

// NewSystem builds a system notice envelope.
func NewSystem(text string) *Message {
	return &Message{Type: TypeSystem, Text: text, Timestamp: now()}
}

// NewErrorMessage builds an error envelope from a coded error.
func NewErrorMessage(err *errs.CustomError) *Message {
	return &Message{Type: TypeError, Code: err.Code, Text: err.Message, Timestamp: now()}
}

// NewChat builds a room-scoped chat envelope with a fresh message ID.
func NewChat(from, room, text string) *Message {
	return &Message{
		Type:      TypeChat,
		ID:        uuid.New().String(),
		From:      from,
		Room:      room,
		Text:      text,
		Timestamp: now(),
	}
}

// NewPrivate builds a direct-message envelope with a fresh message ID.
func NewPrivate(from, target, text string) *Message {
	return &Message{
		Type:      TypePrivate,
		ID:        uuid.New().String(),
		From:      from,
		Target:    target,
		Text:      text,
		Timestamp: now(),
	}
}

// NewAction builds a third-person action envelope.
func NewAction(from, room, text string) *Message {
	return &Message{
		Type:      TypeAction,
		From:      from,
		Room:      room,
		Text:      text,
		Timestamp: now(),
	}
}

// NewAnnounce builds an admin announcement envelope.
func NewAnnounce(from, text string) *Message {
	return &Message{Type: TypeAnnounce, From: from, Text: text, Timestamp: now()}
}

// NewTyping builds a typing-indicator envelope relayed to other users.
func NewTyping(from string, status bool) *Message {
	return &Message{Type: TypeTyping, From: from, Status: status}
}

// NewFileNotice builds a file-metadata relay envelope.
func NewFileNotice(from, name string, size int64, target string) *Message {
	return &Message{
		Type:      TypeFile,
		ID:        uuid.New().String(),
		From:      from,
		Name:      name,
		Size:      size,
		Target:    target,
		Timestamp: now(),
	}
}

// NewUserList builds the registry snapshot envelope.
func NewUserList(users []string, rooms map[string][]string, userRooms map[string]string) *Message {
	return &Message{
		Type:      TypeUserList,
		Users:     users,
		Rooms:     rooms,
		UserRooms: userRooms,
	}
}
