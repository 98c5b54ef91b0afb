package wsapi

import (
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/loomterm/loom/pkg/engine"
)

func skipOnNonUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("PTY sessions require a Unix platform")
	}
}

func dial(t *testing.T, url string) *gorillaws.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(url, "http")
	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

// readUntil reads snapshots until pred holds or the deadline passes.
func readUntil(t *testing.T, conn *gorillaws.Conn, pred func(engine.Snapshot) bool) engine.Snapshot {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var snap engine.Snapshot
		if err := conn.ReadJSON(&snap); err != nil {
			t.Fatalf("ReadJSON failed: %v", err)
		}
		if pred(snap) {
			return snap
		}
	}
}

func TestHandlerStreamsSnapshots(t *testing.T) {
	skipOnNonUnix(t)

	eng, err := engine.New(engine.Config{Command: "echo", Args: []string{"over websocket"}})
	if err != nil {
		t.Fatalf("engine.New failed: %v", err)
	}
	defer eng.Close()

	srv := httptest.NewServer(NewHandler(eng, nil))
	defer srv.Close()

	conn := dial(t, srv.URL)
	defer conn.Close()

	snap := readUntil(t, conn, func(s engine.Snapshot) bool {
		return strings.Contains(s.Grid.Text(), "over websocket")
	})
	if snap.Version == 0 {
		t.Error("expected non-zero version once output arrived")
	}
}

func TestHandlerInputControlMessage(t *testing.T) {
	skipOnNonUnix(t)

	eng, err := engine.New(engine.Config{Command: "cat"})
	if err != nil {
		t.Fatalf("engine.New failed: %v", err)
	}
	defer eng.Close()

	srv := httptest.NewServer(NewHandler(eng, nil))
	defer srv.Close()

	conn := dial(t, srv.URL)
	defer conn.Close()

	if err := conn.WriteJSON(ControlMessage{Type: "input", Data: "hello ws\n"}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	readUntil(t, conn, func(s engine.Snapshot) bool {
		return strings.Contains(s.Grid.Text(), "hello ws")
	})
}

func TestHandlerResizeControlMessage(t *testing.T) {
	skipOnNonUnix(t)

	eng, err := engine.New(engine.Config{Command: "cat", Cols: 80, Rows: 24})
	if err != nil {
		t.Fatalf("engine.New failed: %v", err)
	}
	defer eng.Close()

	srv := httptest.NewServer(NewHandler(eng, nil))
	defer srv.Close()

	conn := dial(t, srv.URL)
	defer conn.Close()

	if err := conn.WriteJSON(ControlMessage{Type: "resize", Cols: 40, Rows: 12}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	readUntil(t, conn, func(s engine.Snapshot) bool {
		return s.Grid.Cols == 40 && s.Grid.Rows == 12
	})
}

func TestHandlerSessionEndDeliversFinalSnapshot(t *testing.T) {
	skipOnNonUnix(t)

	eng, err := engine.New(engine.Config{Command: "sh", Args: []string{"-c", "exit 4"}})
	if err != nil {
		t.Fatalf("engine.New failed: %v", err)
	}
	defer eng.Close()

	srv := httptest.NewServer(NewHandler(eng, nil))
	defer srv.Close()

	conn := dial(t, srv.URL)
	defer conn.Close()

	snap := readUntil(t, conn, func(s engine.Snapshot) bool { return !s.Live })
	if snap.Exit != 4 {
		t.Errorf("expected exit 4 in final snapshot, got %d", snap.Exit)
	}
}
