package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/loomterm/loom/pkg/block"
	"github.com/loomterm/loom/pkg/config"
	"github.com/loomterm/loom/pkg/engine"
	"github.com/loomterm/loom/pkg/vault"
	"github.com/loomterm/loom/pkg/wsapi"
)

// server owns the live sessions exposed over HTTP.
type server struct {
	cfg    config.Config
	logger *slog.Logger
	vault  *vault.Vault

	mu       sync.Mutex
	sessions map[uuid.UUID]*engine.Engine
}

// serveCmd runs the HTTP/WebSocket server until SIGINT or SIGTERM.
func serveCmd(cfg config.Config, configPath string, logger *slog.Logger) error {
	s := &server{
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[uuid.UUID]*engine.Engine),
	}
	if cfg.VaultPath != "" {
		v, err := vault.Open(cfg.VaultPath, vault.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("open vault: %w", err)
		}
		defer v.Close()
		s.vault = v
	}

	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer stop()

	if watcher, err := config.Watch(ctx, configPath, s.reload); err == nil {
		defer watcher.Close()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/sessions", s.handleSession)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		s.closeAll()
		return nil
	})
	return g.Wait()
}

// reload applies hot-reloadable settings to every live session.
func (s *server) reload(next config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Scrollback = next.Scrollback
	for _, eng := range s.sessions {
		eng.SetScrollbackCapacity(next.Scrollback)
	}
	s.logger.Info("config reloaded", "scrollback", next.Scrollback)
}

// handleSession spawns a session for the connection and streams its state.
func (s *server) handleSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	sessionID := uuid.New()
	var sink func(block.Block)
	if s.vault != nil {
		sink = func(b block.Block) {
			if err := s.vault.SaveBlock(sessionID, b); err != nil {
				s.logger.Warn("failed to save block", "block", b.ID, "error", err)
			}
		}
	}

	eng, err := engine.New(engine.Config{
		ID:         sessionID,
		Command:    cfg.Shell,
		Args:       cfg.Args,
		Cols:       cfg.Cols,
		Rows:       cfg.Rows,
		Scrollback: cfg.Scrollback,
		Logger:     s.logger,
		BlockSink:  sink,
	})
	if err != nil {
		s.logger.Error("failed to spawn session", "error", err)
		http.Error(w, "failed to spawn session", http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	s.sessions[eng.ID()] = eng
	s.mu.Unlock()
	defer func() {
		eng.Close()
		s.mu.Lock()
		delete(s.sessions, eng.ID())
		s.mu.Unlock()
	}()

	if s.vault != nil {
		if err := s.vault.CreateSession(eng.ID(), cfg.Shell, time.Now()); err != nil {
			s.logger.Warn("failed to record session", "error", err)
		}
		defer func() {
			snap := eng.Snapshot()
			if err := s.vault.EndSession(eng.ID(), snap.Exit, time.Now()); err != nil {
				s.logger.Warn("failed to finalize session", "error", err)
			}
		}()
	}

	s.logger.Info("session started", "session", eng.ID(), "remote", r.RemoteAddr)
	wsapi.NewHandler(eng, s.logger).ServeHTTP(w, r)
	s.logger.Info("session detached", "session", eng.ID())
}

func (s *server) closeAll() {
	s.mu.Lock()
	engines := make([]*engine.Engine, 0, len(s.sessions))
	for _, eng := range s.sessions {
		engines = append(engines, eng)
	}
	s.mu.Unlock()
	for _, eng := range engines {
		eng.Close()
	}
}
