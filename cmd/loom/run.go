package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/loomterm/loom/pkg/block"
	"github.com/loomterm/loom/pkg/config"
	"github.com/loomterm/loom/pkg/engine"
	"github.com/loomterm/loom/pkg/vault"
)

// runCmd attaches an interactive session to the current terminal: raw mode
// on stdin, raw PTY output mirrored to stdout, SIGWINCH propagated, and
// closed blocks persisted to the vault when one is configured.
func runCmd(cfg config.Config, configPath string, logger *slog.Logger, args []string) error {
	command := cfg.Shell
	cmdArgs := cfg.Args
	if len(args) > 0 {
		command = args[0]
		cmdArgs = args[1:]
	}

	cols, rows := cfg.Cols, cfg.Rows
	if w, h, err := term.GetSize(int(os.Stdin.Fd())); err == nil {
		cols, rows = uint16(w), uint16(h)
	}

	var v *vault.Vault
	if cfg.VaultPath != "" {
		var err error
		v, err = vault.Open(cfg.VaultPath, vault.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("open vault: %w", err)
		}
		defer v.Close()
	}

	sessionID := uuid.New()
	var sink func(block.Block)
	if v != nil {
		sink = func(b block.Block) {
			if err := v.SaveBlock(sessionID, b); err != nil {
				logger.Warn("failed to save block", "block", b.ID, "error", err)
			}
		}
	}

	eng, err := engine.New(engine.Config{
		ID:         sessionID,
		Command:    command,
		Args:       cmdArgs,
		Cols:       cols,
		Rows:       rows,
		Scrollback: cfg.Scrollback,
		Logger:     logger,
		Echo:       os.Stdout,
		BlockSink:  sink,
	})
	if err != nil {
		return err
	}

	if v != nil {
		if err := v.CreateSession(sessionID, command, time.Now()); err != nil {
			logger.Warn("failed to record session", "error", err)
		}
	}

	if term.IsTerminal(int(os.Stdin.Fd())) {
		oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("raw mode: %w", err)
		}
		defer term.Restore(int(os.Stdin.Fd()), oldState)
	}

	// Propagate window size changes to the PTY.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	winch := make(chan os.Signal, 1)
	signal.Notify(winch, unix.SIGWINCH)
	defer signal.Stop(winch)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-winch:
				if w, h, err := term.GetSize(int(os.Stdin.Fd())); err == nil {
					eng.Resize(uint16(w), uint16(h))
				}
			}
		}
	}()

	// Hot-reload scrollback capacity on config changes.
	if watcher, err := config.Watch(ctx, configPath, func(next config.Config) {
		eng.SetScrollbackCapacity(next.Scrollback)
	}); err == nil {
		defer watcher.Close()
	}

	go func() {
		io.Copy(eng, os.Stdin)
		eng.SendEOF()
	}()

	<-eng.Done()
	snap := eng.Snapshot()
	eng.Close()

	if v != nil {
		if err := v.EndSession(sessionID, snap.Exit, time.Now()); err != nil {
			logger.Warn("failed to finalize session", "error", err)
		}
	}
	return nil
}
