/*
Package handler provides the HTTP status surface of the chat server.

This file defines the Router: a small chi router exposing liveness, a stats
snapshot for external dashboards, and the WebSocket transport bridge that
feeds upgraded connections into the same session pipeline as TCP. The chat
protocol itself never travels over plain HTTP.
*/
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"dischat/internal/app/chat"
	"dischat/internal/configs"
	"dischat/internal/pkg/limiter"
	"dischat/internal/pkg/logx"
)

// Stats endpoint rate limit, per client IP.
const (
	StatsRate  = 2
	StatsBurst = 5
)

// AppDeps bundles what the HTTP surface needs from the rest of the server.
type AppDeps struct {
	Server *chat.Server
	Config *configs.AppConfig
}

// Router builds the status surface: CORS, request logging, rate-limited
// stats, and the WebSocket bridge.
func Router(deps *AppDeps) http.Handler {
	statsLimiter := limiter.NewIPRateLimiter(rate.Limit(StatsRate), StatsBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.Environment == "development" {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.Environment == "development" {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins: corsAllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/healthz", HandleHealthz)
	r.With(statsLimiter.Middleware).Get("/stats", HandleStats(deps))
	r.Get("/ws", HandleWebSocket(wsUpgrader, deps))

	return r
}

// HandleHealthz answers liveness probes.
func HandleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{
		"status":  "ok",
		"service": "dischat",
	})
}

// HandleStats returns the current server snapshot as JSON.
func HandleStats(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, deps.Server.Stats())
	}
}

// HandleWebSocket upgrades the request and hands the connection to the
// chat server. The bridge speaks the same envelope protocol as TCP, one
// JSON object per text frame, and blocks until the session ends.
func HandleWebSocket(upgrader websocket.Upgrader, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wsc, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Warn("WebSocket upgrade failed", "error", err.Error())
			return
		}

		deps.Server.HandleConn(chat.NewWSConn(wsc, deps.Config.MaxLineBytes))
	}
}

// respondJSON writes v as a JSON response body.
func respondJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Error(err, "Failed to encode JSON response")
	}
}
