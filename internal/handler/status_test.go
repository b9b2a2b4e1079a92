package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"dischat/internal/app/chat"
	"dischat/internal/app/store"
	"dischat/internal/configs"
)

func newTestDeps(t *testing.T) *AppDeps {
	t.Helper()

	dir := t.TempDir()
	cfg := &configs.AppConfig{
		Environment:  "development",
		Host:         "127.0.0.1",
		Port:         0,
		AuthTimeout:  configs.Duration(5 * time.Second),
		MaxLineBytes: 8 * 1024,
		MessageRate:  100,
		MessageBurst: 100,
		DataDir:      dir,
	}

	creds, err := store.OpenCredentialStore(filepath.Join(dir, store.CredentialsFile))
	if err != nil {
		t.Fatalf("opening credential store: %v", err)
	}
	bans, err := store.OpenBanStore(filepath.Join(dir, store.BansFile))
	if err != nil {
		t.Fatalf("opening ban store: %v", err)
	}

	return &AppDeps{
		Server: chat.NewServer(cfg, creds, bans, nil),
		Config: cfg,
	}
}

func TestHealthz(t *testing.T) {
	router := Router(newTestDeps(t))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("status field = %q, want ok", body["status"])
	}
}

func TestStats(t *testing.T) {
	router := Router(newTestDeps(t))

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	req.RemoteAddr = "203.0.113.5:9000"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q, want application/json", ct)
	}

	var stats chat.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("response is not a stats snapshot: %v", err)
	}
	if stats.UserCount != 0 || stats.RoomCount != 0 {
		t.Fatalf("fresh server stats = %+v, want zero counts", stats)
	}
}

func TestUnknownRoute(t *testing.T) {
	router := Router(newTestDeps(t))

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestWebSocketBridgeSpeaksTheChatProtocol(t *testing.T) {
	deps := newTestDeps(t)

	ts := httptest.NewServer(Router(deps))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v", url, err)
	}
	defer conn.Close()

	payload, _ := json.Marshal(map[string]string{
		"type":     "register",
		"username": "wsuser",
		"password": "longenough",
	})
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		t.Fatalf("writing register frame: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("reading frame: %v", err)
		}

		var m chat.Message
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("frame %q is not an envelope: %v", data, err)
		}
		if m.Type == chat.TypeSystem && strings.Contains(m.Text, "Authentication successful") {
			return
		}
	}

	t.Fatal("never received the authentication confirmation")
}

func TestAnonymizeIP(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"203.0.113.77:4000", "203.0.113.0"},
		{"203.0.113.77", "203.0.113.0"},
		{"127.0.0.1:8080", "127.0.0.1"},
		{"[2001:db8:1:2:3:4:5:6]:443", "2001:db8:1:2::"},
		{"not-an-ip", "unknown_ip"},
		{"", "unknown_ip"},
	}

	for _, tt := range tests {
		if got := anonymizeIP(tt.in); got != tt.want {
			t.Errorf("anonymizeIP(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
