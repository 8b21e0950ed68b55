// Package main is the entry point for bupd, the repository monitor server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/relaypack/bupcask/internal/monitor"
	"github.com/relaypack/bupcask/internal/objstore"
	"github.com/relaypack/bupcask/internal/vfs"
	"github.com/relaypack/bupcask/internal/vfswatch"
)

// Build-time variables set via -ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	initLogger()

	repoPath := flag.String("repo", getEnv("BUPD_REPO", "."), "Path to the bupcask repository")
	port := flag.String("port", getEnv("BUPD_PORT", "8080"), "Port to listen on")
	host := flag.String("host", getEnv("BUPD_HOST", ""), "Host to bind to (empty = all interfaces)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("bupd %s (commit %s, built %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	store, err := objstore.Open(*repoPath)
	if err != nil {
		slog.Error("failed to open repository", "path", *repoPath, "err", err)
		os.Exit(1)
	}

	root := vfs.NewRoot(store)
	watcher := vfswatch.New(root, store.PackDir(), slog.Default())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := watcher.Start(ctx); err != nil {
		slog.Error("failed to start pack directory watcher", "err", err)
		os.Exit(1)
	}
	defer watcher.Close()

	addr := fmt.Sprintf("%s:%s", *host, *port)
	srv := monitor.NewServer(ctx, monitor.Config{
		Store:    store,
		Root:     root,
		Watcher:  watcher,
		Logger:   slog.Default(),
		Addr:     addr,
		RepoName: *repoPath,
	})

	slog.Info("bupd listening", "addr", "http://"+addr, "repo", *repoPath, "version", version)

	if err := srv.Start(ctx); err != nil {
		slog.Error("monitor server error", "err", err)
		os.Exit(1)
	}
}

func initLogger() {
	level := slog.LevelInfo
	switch getEnv("BUPCASK_LOG_LEVEL", "info") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if getEnv("BUPCASK_LOG_FORMAT", "text") == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
