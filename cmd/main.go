/*
Package main is the entry point for the dischat server.

It loads configuration (flags over environment over an optional YAML file),
initializes the global logger, opens the flat-file stores, starts the TCP
listener and the HTTP status surface, and handles operating system
interrupt signals for a graceful shutdown that flushes persistent state and
closes all open connections.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"dischat/internal/app/chat"
	"dischat/internal/app/store"
	"dischat/internal/configs"
	"dischat/internal/handler"
	"dischat/internal/pkg/logx"
)

func main() {
	flags := pflag.NewFlagSet("dischat", pflag.ExitOnError)
	configFile := flags.String("config", "", "path to YAML config file")
	host := flags.String("host", "", "TCP listen host (overrides config)")
	port := flags.Int("port", 0, "TCP listen port (overrides config)")
	statusAddr := flags.String("status-addr", "", "HTTP status listen address (overrides config)")
	dataDir := flags.String("data-dir", "", "data directory (overrides config)")
	adminPassword := flags.String("admin-password", "", "admin secret (overrides config)")

	if err := flags.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	cfg, err := configs.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if flags.Changed("host") {
		cfg.Host = *host
	}
	if flags.Changed("port") {
		cfg.Port = *port
	}
	if flags.Changed("status-addr") {
		cfg.StatusAddr = *statusAddr
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = *dataDir
	}
	if flags.Changed("admin-password") {
		cfg.AdminPassword = *adminPassword
	}

	logx.InitGlobalLogger(cfg.Environment == "development")
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Str("addr", cfg.Addr()).
		Str("status_addr", cfg.StatusAddr).
		Str("data_dir", cfg.DataDir).
		Msg("Configuration loaded successfully")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logx.Fatal(err, "Failed to create data directory")
	}

	creds, err := store.OpenCredentialStore(filepath.Join(cfg.DataDir, store.CredentialsFile))
	if err != nil {
		logx.Fatal(err, "Failed to open credential store")
	}

	bans, err := store.OpenBanStore(filepath.Join(cfg.DataDir, store.BansFile))
	if err != nil {
		logx.Fatal(err, "Failed to open ban store")
	}

	chatLog, err := store.OpenChatLog(filepath.Join(cfg.DataDir, store.ChatLogFile))
	if err != nil {
		logx.Fatal(err, "Failed to open chat log")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := chat.NewServer(cfg, creds, bans, chatLog)
	if err := server.Listen(); err != nil {
		logx.Fatal(err, "Failed to bind listener")
	}

	go func() {
		if err := server.Serve(); err != nil {
			logx.Fatal(err, "Accept loop failed")
		}
	}()

	var statusServer *http.Server
	if cfg.StatusAddr != "" {
		statusServer = &http.Server{
			Addr:         cfg.StatusAddr,
			Handler:      handler.Router(&handler.AppDeps{Server: server, Config: cfg}),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		}

		go func() {
			logx.Info("Status surface listening", "addr", cfg.StatusAddr)
			if err := statusServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logx.Fatal(err, "Status server failed to start")
			}
		}()
	}

	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	if statusServer != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		if err := statusServer.Shutdown(shutdownCtx); err != nil {
			logx.Error(err, "Status server forced to shutdown")
		}
		cancelShutdown()
	}

	server.Shutdown()

	if err := chatLog.Close(); err != nil {
		logx.Error(err, "Failed to close chat log")
	}

	logx.Info("Server gracefully stopped.")
}
