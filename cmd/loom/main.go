// Command loom manages shell sessions with structured terminal state:
// run attaches an interactive session, serve exposes sessions over
// WebSocket, history lists persisted command blocks.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/loomterm/loom/pkg/config"
)

func main() {
	var (
		configPath string
		debug      bool
		logJSON    bool
	)
	flag.StringVar(&configPath, "config", config.DefaultPath(), "Path to config file")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&logJSON, "log-json", false, "Output logs in JSON format")
	flag.Usage = usage
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loom: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg, debug, logJSON)

	args := flag.Args()
	cmd := "run"
	if len(args) > 0 {
		cmd = args[0]
		args = args[1:]
	}

	switch cmd {
	case "run":
		err = runCmd(cfg, configPath, logger, args)
	case "serve":
		err = serveCmd(cfg, configPath, logger)
	case "history":
		err = historyCmd(cfg, args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "loom: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: loom [flags] <command>

Commands:
  run [cmd args...]   Run an interactive session (default)
  serve               Serve sessions over HTTP/WebSocket
  history [-n limit]  Show persisted command blocks

Flags:
`)
	flag.PrintDefaults()
}

func newLogger(cfg config.Config, debug, logJSON bool) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if logJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
