// Package wsapi exposes a live engine over WebSocket: the server pushes JSON
// snapshots whenever terminal state changes, and the client sends control
// messages for input, resize, and signals.
package wsapi

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/loomterm/loom/pkg/engine"
)

// ControlMessage is a client-to-server command.
type ControlMessage struct {
	// Type is one of "input", "resize", "interrupt", "eof".
	Type string `json:"type"`
	// Data carries the input bytes for "input".
	Data string `json:"data,omitempty"`
	Cols uint16 `json:"cols,omitempty"`
	Rows uint16 `json:"rows,omitempty"`
}

// Handler serves one engine's state over WebSocket connections.
type Handler struct {
	eng      *engine.Engine
	upgrader gorillaws.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a WebSocket handler for the given engine.
func NewHandler(eng *engine.Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		eng:    eng,
		logger: logger,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin: func(r *http.Request) bool {
				// TODO: Add proper origin checking
				return true
			},
		},
	}
}

// ServeHTTP upgrades the request and streams snapshots until the client
// disconnects or the session ends.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(1 << 20)

	var writeMu sync.Mutex
	sendSnapshot := func() error {
		snap := h.eng.Snapshot()
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(snap)
	}

	if err := sendSnapshot(); err != nil {
		h.logger.Debug("initial snapshot write failed", "error", err)
		return
	}

	// Push loop: one snapshot per change signal, coalesced by Subscribe.
	closed := make(chan struct{})
	var once sync.Once
	shutdown := func() { once.Do(func() { close(closed) }) }

	go func() {
		defer shutdown()
		changes, unsubscribe := h.eng.Subscribe()
		defer unsubscribe()
		for {
			select {
			case <-closed:
				return
			case <-h.eng.Done():
				sendSnapshot()
				writeMu.Lock()
				closeData := gorillaws.FormatCloseMessage(gorillaws.CloseNormalClosure, "")
				conn.WriteControl(gorillaws.CloseMessage, closeData, time.Now().Add(2*time.Second))
				writeMu.Unlock()
				return
			case <-changes:
				if err := sendSnapshot(); err != nil {
					h.logger.Debug("snapshot write failed", "error", err)
					return
				}
			}
		}
	}()

	// Read loop: control messages from the client.
	for {
		var msg ControlMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if gorillaws.IsUnexpectedCloseError(err, gorillaws.CloseNormalClosure, gorillaws.CloseGoingAway) {
				h.logger.Debug("websocket read failed", "error", err)
			}
			break
		}
		if err := h.dispatch(msg); err != nil {
			h.logger.Warn("control message failed", "type", msg.Type, "error", err)
		}
	}
	shutdown()
}

func (h *Handler) dispatch(msg ControlMessage) error {
	switch msg.Type {
	case "input":
		_, err := h.eng.Write([]byte(msg.Data))
		return err
	case "resize":
		return h.eng.Resize(msg.Cols, msg.Rows)
	case "interrupt":
		return h.eng.SendInterrupt()
	case "eof":
		return h.eng.SendEOF()
	default:
		h.logger.Warn("unknown control message", "type", msg.Type)
		return nil
	}
}
