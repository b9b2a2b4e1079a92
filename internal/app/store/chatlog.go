/*
Package store implements the server's flat-file persistence.

This file defines the ChatLog, an append-only audit record of chat events.
Each event is one JSON line, so the log can be recovered or tailed with
standard tools and a corrupt tail never invalidates earlier entries.
*/
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"dischat/internal/pkg/logx"
)

// ChatLogFile is the default chat log file name inside the data dir.
const ChatLogFile = "chat_log.jsonl"

// Event kinds recorded in the chat log.
const (
	EventJoin     = "join"
	EventLeave    = "leave"
	EventChat     = "chat"
	EventPrivate  = "private"
	EventAction   = "action"
	EventRoom     = "room"
	EventFile     = "file"
	EventAdmin    = "admin"
	EventModerate = "moderate"
	EventAnnounce = "announce"
)

// Event is one audit record.
type Event struct {
	ID     string    `json:"id"`
	Time   time.Time `json:"ts"`
	Kind   string    `json:"kind"`
	Actor  string    `json:"actor,omitempty"`
	Room   string    `json:"room,omitempty"`
	Target string    `json:"target,omitempty"`
	Text   string    `json:"text,omitempty"`
}

// ChatLog is the append-only chat event log. Append failures are logged and
// reported to the caller, never propagated to chat users. All methods are
// safe for concurrent use.
type ChatLog struct {
	mu   sync.Mutex
	file *os.File
}

// OpenChatLog opens (or creates) the append-only log at path.
func OpenChatLog(path string) (*ChatLog, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open chat log: %w", err)
	}

	return &ChatLog{file: file}, nil
}

// Append writes one event with a fresh ID and the current time.
func (cl *ChatLog) Append(kind, actor, room, target, text string) error {
	event := Event{
		ID:     uuid.New().String(),
		Time:   time.Now().UTC(),
		Kind:   kind,
		Actor:  actor,
		Room:   room,
		Target: target,
		Text:   text,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, err := cl.file.Write(append(data, '\n')); err != nil {
		logx.Error(err, "Chat log append failed", "kind", kind, "actor", actor)
		return err
	}
	return nil
}

// Close flushes and closes the log file.
func (cl *ChatLog) Close() error {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.file == nil {
		return nil
	}

	err := cl.file.Sync()
	if closeErr := cl.file.Close(); err == nil {
		err = closeErr
	}
	cl.file = nil
	return err
}
