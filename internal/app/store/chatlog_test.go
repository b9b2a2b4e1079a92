package store

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestChatLogAppendsOneJSONLinePerEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), ChatLogFile)

	cl, err := OpenChatLog(path)
	if err != nil {
		t.Fatalf("OpenChatLog: %v", err)
	}

	if err := cl.Append(EventJoin, "alice", "", "", "203.0.113.7:4000"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := cl.Append(EventChat, "alice", "lounge", "", "hello"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := cl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening log: %v", err)
	}
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("line %q is not a JSON event: %v", scanner.Text(), err)
		}
		events = append(events, e)
	}

	if len(events) != 2 {
		t.Fatalf("log has %d events, want 2", len(events))
	}
	if events[0].Kind != EventJoin || events[0].Actor != "alice" {
		t.Fatalf("first event = %+v", events[0])
	}
	if events[1].Kind != EventChat || events[1].Room != "lounge" || events[1].Text != "hello" {
		t.Fatalf("second event = %+v", events[1])
	}
	for i, e := range events {
		if e.ID == "" || e.Time.IsZero() {
			t.Fatalf("event %d missing ID or timestamp: %+v", i, e)
		}
	}
}

func TestChatLogAppendsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), ChatLogFile)

	first, err := OpenChatLog(path)
	if err != nil {
		t.Fatalf("OpenChatLog: %v", err)
	}
	first.Append(EventJoin, "alice", "", "", "")
	first.Close()

	second, err := OpenChatLog(path)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	second.Append(EventLeave, "alice", "", "", "")
	second.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	lines := 0
	for _, b := range data {
		if b == '\n' {
			lines++
		}
	}
	if lines != 2 {
		t.Fatalf("log has %d lines after reopen, want 2 (append, not truncate)", lines)
	}
}

func TestChatLogCloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), ChatLogFile)

	cl, err := OpenChatLog(path)
	if err != nil {
		t.Fatalf("OpenChatLog: %v", err)
	}

	if err := cl.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := cl.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
