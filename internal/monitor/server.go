package monitor

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/relaypack/bupcask/internal/gc"
	"github.com/relaypack/bupcask/internal/objstore"
	"github.com/relaypack/bupcask/internal/vfs"
	"github.com/relaypack/bupcask/internal/vfswatch"
)

// Server is a single-repository HTTP and WebSocket server: one store, one
// VFS root, one watcher, one hub. There is no multi-tenant session map —
// the teacher's SaaS mode has no equivalent here.
type Server struct {
	store   *objstore.DiskStore
	root    *vfs.Root
	watcher *vfswatch.Watcher
	hub     *hub
	logger  *slog.Logger

	repoName string
	httpSrv  *http.Server
}

// Config holds the parameters needed to construct a Server.
type Config struct {
	Store    *objstore.DiskStore
	Root     *vfs.Root
	Watcher  *vfswatch.Watcher
	Logger   *slog.Logger
	Addr     string
	RepoName string
}

// NewServer wires a Server from its dependencies but does not start
// listening; call Start for that.
func NewServer(ctx context.Context, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		store:    cfg.Store,
		root:     cfg.Root,
		watcher:  cfg.Watcher,
		hub:      newHub(ctx, logger),
		logger:   logger,
		repoName: cfg.RepoName,
	}

	s.watcher.SetOnRelease(func() {
		s.hub.publish(UpdateMessage{Invalidated: &VFSInvalidated{Reason: "pack directory changed"}})
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/docs", s.handleDocs)
	mux.HandleFunc("/ws", s.handleWebSocket)

	s.httpSrv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      requestLogger(logger)(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // WebSocket connections are long-lived
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// GCProgressHook returns a callback suitable for gc.Options.OnPackSwept that
// broadcasts each pack decision as a GCProgress event. packsTotal is the
// number of packs the caller is about to sweep, known up front from
// store.PackIndices before gc.Run invalidates them.
func (s *Server) GCProgressHook(packsTotal int) func(gc.PackResult) {
	done := 0
	return func(r gc.PackResult) {
		done++
		s.hub.publish(UpdateMessage{Progress: &GCProgress{
			Pack:       r.Path,
			Decision:   r.Decision.String(),
			Total:      r.Total,
			Live:       r.Live,
			PacksDone:  done,
			PacksTotal: packsTotal,
		}})
	}
}

// Start begins serving HTTP and blocks until the listener stops or ctx is
// canceled. Call it from a goroutine; use Shutdown to stop it gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.hub.start()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("monitor server listening", "addr", s.httpSrv.Addr, "repo", s.repoName)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

// Shutdown stops accepting new connections, drains the hub, and closes
// every client connection with a close frame.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("monitor HTTP shutdown error", "err", err)
	}

	s.hub.close()
	return nil
}

func (s *Server) addr() string {
	return s.httpSrv.Addr
}
