package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"

	"chatrelay/internal/auth"
	"chatrelay/internal/server"
	"chatrelay/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run wires configuration, storage, and the relay server together and
// manages the process lifecycle, so deferred cleanup always executes before
// the process exits.
func run() error {
	cfg, err := server.NewConfigFromEnv()
	if err != nil {
		return err
	}
	log := newLogger(cfg.LogLevel)

	db, err := badger.Open(badger.DefaultOptions(cfg.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		_ = db.Close()
	}()

	messages := store.NewBadgerLog(db, log)
	users := auth.NewUserStore(db)
	authenticator := auth.NewAuthenticator(users, []byte(cfg.SessionSecret), cfg.SessionTTL, log)
	registry := server.NewRegistry()
	relay := server.NewRelay(registry, messages, log)

	srv := server.NewServer(cfg, registry, relay, authenticator, messages, log)
	httpServer := srv.HTTPServer()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.Port)
		errCh <- httpServer.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server stopped: %w", err)
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	return srv.Shutdown(httpServer, 10*time.Second)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
