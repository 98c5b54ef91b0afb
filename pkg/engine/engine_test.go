package engine

import (
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/loomterm/loom/pkg/block"
)

func skipOnNonUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("PTY sessions require a Unix platform")
	}
}

// waitDone fails the test if the session does not end in time.
func waitDone(t *testing.T, e *Engine, timeout time.Duration) {
	t.Helper()
	select {
	case <-e.Done():
	case <-time.After(timeout):
		t.Fatal("session did not end in time")
	}
}

func TestEngineCapturesOutput(t *testing.T) {
	skipOnNonUnix(t)

	e, err := New(Config{Command: "echo", Args: []string{"engine works"}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer e.Close()
	waitDone(t, e, 5*time.Second)

	snap := e.Snapshot()
	if !strings.Contains(snap.Grid.Text(), "engine works") {
		t.Errorf("expected output on grid, got %q", snap.Grid.Text())
	}
	if snap.Live {
		t.Error("expected Live false after exit")
	}
	if snap.Exit != 0 {
		t.Errorf("expected exit 0, got %d", snap.Exit)
	}
}

func TestEngineVersionAdvances(t *testing.T) {
	skipOnNonUnix(t)

	e, err := New(Config{Command: "echo", Args: []string{"v"}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer e.Close()
	waitDone(t, e, 5*time.Second)

	if e.Version() == 0 {
		t.Error("expected version to advance with output")
	}
}

func TestSnapshotStableAtSameVersion(t *testing.T) {
	skipOnNonUnix(t)

	e, err := New(Config{Command: "echo", Args: []string{"stable"}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer e.Close()
	waitDone(t, e, 5*time.Second)

	a := e.Snapshot()
	b := e.Snapshot()
	if a.Version != b.Version {
		t.Fatalf("versions diverged with no input: %d vs %d", a.Version, b.Version)
	}
	if a.Grid.Text() != b.Grid.Text() {
		t.Error("equal versions must render identically")
	}
}

func TestEngineBlocksFromMarkers(t *testing.T) {
	skipOnNonUnix(t)

	// A scripted shell session with explicit shell-integration markers.
	script := `printf '\033]133;A\007'; printf '$ '; ` +
		`printf '\033]133;B\007'; printf 'ls -la'; ` +
		`printf '\033]133;C\007'; printf 'total 8\nfile.txt\n'; ` +
		`printf '\033]133;D;0\007'`

	var sunk []block.Block
	done := make(chan struct{})
	e, err := New(Config{
		Command: "sh", Args: []string{"-c", script},
		BlockSink: func(b block.Block) {
			sunk = append(sunk, b)
			close(done)
		},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer e.Close()
	waitDone(t, e, 5*time.Second)

	snap := e.Snapshot()
	if len(snap.Blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(snap.Blocks))
	}
	b := snap.Blocks[0]
	if b.Command != "ls -la" {
		t.Errorf("expected command %q, got %q", "ls -la", b.Command)
	}
	if !strings.Contains(b.Output, "file.txt") {
		t.Errorf("expected captured output, got %q", b.Output)
	}
	if b.ExitCode != 0 {
		t.Errorf("expected exit 0, got %d", b.ExitCode)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("block sink never invoked")
	}
	if len(sunk) != 1 || sunk[0].Command != "ls -la" {
		t.Errorf("unexpected sink deliveries: %+v", sunk)
	}
}

func TestEngineForceClosesOpenBlockOnExit(t *testing.T) {
	skipOnNonUnix(t)

	// Command starts but the session ends before its D marker.
	script := `printf '\033]133;B\007'; printf 'doomed'; printf '\033]133;C\007'; printf 'partial\n'`
	e, err := New(Config{Command: "sh", Args: []string{"-c", script}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer e.Close()
	waitDone(t, e, 5*time.Second)

	snap := e.Snapshot()
	if len(snap.Blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(snap.Blocks))
	}
	b := snap.Blocks[0]
	if !b.Closed {
		t.Error("expected block force-closed at session end")
	}
	if b.ExitCode != block.ExitUnknown {
		t.Errorf("expected sentinel exit, got %d", b.ExitCode)
	}
}

func TestEngineTitleAndCwd(t *testing.T) {
	skipOnNonUnix(t)

	script := `printf '\033]2;my session\007'; printf '\033]7;file:///tmp\007'`
	e, err := New(Config{Command: "sh", Args: []string{"-c", script}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer e.Close()
	waitDone(t, e, 5*time.Second)

	snap := e.Snapshot()
	if snap.Title != "my session" {
		t.Errorf("expected title, got %q", snap.Title)
	}
	if snap.Cwd != "/tmp" {
		t.Errorf("expected cwd /tmp, got %q", snap.Cwd)
	}
}

func TestEngineSubscribe(t *testing.T) {
	skipOnNonUnix(t)

	e, err := New(Config{Command: "echo", Args: []string{"signal"}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer e.Close()

	ch, unsubscribe := e.Subscribe()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("no change signal received")
	}

	unsubscribe()
	e.subMu.Lock()
	remaining := len(e.subs)
	e.subMu.Unlock()
	if remaining != 0 {
		t.Errorf("expected subscriber list to be empty, got %d", remaining)
	}
}

func TestEngineResizePropagates(t *testing.T) {
	skipOnNonUnix(t)

	e, err := New(Config{Command: "cat", Cols: 80, Rows: 24})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer e.Close()

	if err := e.Resize(40, 12); err != nil {
		t.Fatalf("Resize failed: %v", err)
	}
	snap := e.Snapshot()
	if snap.Grid.Cols != 40 || snap.Grid.Rows != 12 {
		t.Errorf("expected 40x12 grid, got %dx%d", snap.Grid.Cols, snap.Grid.Rows)
	}

	if err := e.Resize(0, 12); err == nil {
		t.Error("expected error for zero dimensions")
	}
	snap = e.Snapshot()
	if snap.Grid.Cols != 40 || snap.Grid.Rows != 12 {
		t.Errorf("failed resize must not change the grid, got %dx%d", snap.Grid.Cols, snap.Grid.Rows)
	}
}

func TestEngineWriteRoundtrip(t *testing.T) {
	skipOnNonUnix(t)

	e, err := New(Config{Command: "cat"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer e.Close()

	if _, err := e.Write([]byte("ping\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if strings.Contains(e.Snapshot().Grid.Text(), "ping") {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("echo never appeared, grid: %q", e.Snapshot().Grid.Text())
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestSnapshotReadableAfterClose(t *testing.T) {
	skipOnNonUnix(t)

	e, err := New(Config{Command: "echo", Args: []string{"persists"}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	waitDone(t, e, 5*time.Second)
	if err := e.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	snap := e.Snapshot()
	if !strings.Contains(snap.Grid.Text(), "persists") {
		t.Errorf("expected grid readable after close, got %q", snap.Grid.Text())
	}
	if snap.Live {
		t.Error("expected Live false")
	}
}

func TestConcurrentSnapshots(t *testing.T) {
	skipOnNonUnix(t)

	e, err := New(Config{Command: "sh", Args: []string{"-c", "for i in 1 2 3 4 5; do echo line $i; done"}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer e.Close()

	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			for {
				select {
				case <-stop:
					return
				default:
					snap := e.Snapshot()
					_ = snap.Grid.Text()
				}
			}
		}()
	}
	waitDone(t, e, 5*time.Second)
	close(stop)

	if !strings.Contains(e.Snapshot().Grid.Text(), "line 5") {
		t.Errorf("expected all lines, got %q", e.Snapshot().Grid.Text())
	}
}
