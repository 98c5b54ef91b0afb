// Package vault persists sessions and their command blocks to SQLite so
// history survives the process. One vault serves many concurrent sessions.
package vault

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/loomterm/loom/pkg/block"
)

// Vault is a SQLite-backed store of session and block history.
type Vault struct {
	db     *sql.DB
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// Option configures a Vault.
type Option func(*Vault)

// WithLogger sets the vault's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Vault) { v.logger = logger }
}

// Open opens (creating if needed) the vault database at path.
func Open(path string, opts ...Option) (*Vault, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open vault database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping vault database: %w", err)
	}
	if err := initializeSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	v := &Vault{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

func initializeSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS sessions (
    session_id TEXT PRIMARY KEY,
    command TEXT NOT NULL,
    start_time INTEGER NOT NULL, -- Unix timestamp in nanoseconds
    end_time INTEGER DEFAULT NULL, -- NULL while the session is live
    exit_code INTEGER DEFAULT NULL,
    created_at INTEGER NOT NULL DEFAULT (unixepoch() * 1000000000)
);

CREATE TABLE IF NOT EXISTS blocks (
    block_id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    command TEXT NOT NULL,
    output TEXT NOT NULL,
    cwd TEXT NOT NULL DEFAULT '',
    exit_code INTEGER NOT NULL, -- -1 when the code was never reported
    start_row INTEGER NOT NULL,
    end_row INTEGER NOT NULL,
    started_at INTEGER NOT NULL, -- Unix timestamp in nanoseconds
    ended_at INTEGER NOT NULL,
    FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_blocks_session_id ON blocks(session_id);
CREATE INDEX IF NOT EXISTS idx_blocks_started_at ON blocks(started_at);
CREATE INDEX IF NOT EXISTS idx_sessions_start_time ON sessions(start_time);
`
	_, err := db.Exec(schema)
	return err
}

// CreateSession records a new live session.
func (v *Vault) CreateSession(id uuid.UUID, command string, startedAt time.Time) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return fmt.Errorf("vault is closed")
	}

	_, err := v.db.Exec(
		`INSERT INTO sessions (session_id, command, start_time) VALUES (?, ?, ?)`,
		id.String(), command, startedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	v.logger.Debug("created session", "session", id)
	return nil
}

// EndSession stamps the session's end time and exit code.
func (v *Vault) EndSession(id uuid.UUID, exitCode int, endedAt time.Time) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return fmt.Errorf("vault is closed")
	}

	_, err := v.db.Exec(
		`UPDATE sessions SET end_time = ?, exit_code = ? WHERE session_id = ?`,
		endedAt.UnixNano(), exitCode, id.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// SaveBlock persists one closed block under the given session.
func (v *Vault) SaveBlock(sessionID uuid.UUID, b block.Block) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return fmt.Errorf("vault is closed")
	}

	_, err := v.db.Exec(`
		INSERT INTO blocks (block_id, session_id, command, output, cwd,
			exit_code, start_row, end_row, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID.String(), sessionID.String(), b.Command, b.Output, b.Cwd,
		b.ExitCode, b.StartRow, b.EndRow,
		b.StartedAt.UnixNano(), b.EndedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert block: %w", err)
	}
	v.logger.Debug("saved block", "session", sessionID, "block", b.ID, "exit", b.ExitCode)
	return nil
}

// StoredBlock is a persisted block together with its owning session.
type StoredBlock struct {
	SessionID uuid.UUID
	Block     block.Block
}

// RecentBlocks returns up to limit blocks across all sessions, newest first.
func (v *Vault) RecentBlocks(limit int) ([]StoredBlock, error) {
	if limit <= 0 {
		limit = 50
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil, fmt.Errorf("vault is closed")
	}
	rows, err := v.db.Query(`
		SELECT block_id, session_id, command, output, cwd,
			exit_code, start_row, end_row, started_at, ended_at
		FROM blocks ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query blocks: %w", err)
	}
	defer rows.Close()
	return scanBlocks(rows)
}

// SessionBlocks returns the blocks of one session in execution order.
func (v *Vault) SessionBlocks(sessionID uuid.UUID) ([]StoredBlock, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil, fmt.Errorf("vault is closed")
	}
	rows, err := v.db.Query(`
		SELECT block_id, session_id, command, output, cwd,
			exit_code, start_row, end_row, started_at, ended_at
		FROM blocks WHERE session_id = ? ORDER BY started_at ASC`,
		sessionID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query blocks: %w", err)
	}
	defer rows.Close()
	return scanBlocks(rows)
}

func scanBlocks(rows *sql.Rows) ([]StoredBlock, error) {
	var out []StoredBlock
	for rows.Next() {
		var (
			blockID, sessionID   string
			startedAt, endedAt   int64
			sb                   StoredBlock
		)
		err := rows.Scan(&blockID, &sessionID, &sb.Block.Command, &sb.Block.Output,
			&sb.Block.Cwd, &sb.Block.ExitCode, &sb.Block.StartRow, &sb.Block.EndRow,
			&startedAt, &endedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan block: %w", err)
		}
		if sb.Block.ID, err = uuid.Parse(blockID); err != nil {
			return nil, fmt.Errorf("failed to parse block id %q: %w", blockID, err)
		}
		if sb.SessionID, err = uuid.Parse(sessionID); err != nil {
			return nil, fmt.Errorf("failed to parse session id %q: %w", sessionID, err)
		}
		sb.Block.StartedAt = time.Unix(0, startedAt)
		sb.Block.EndedAt = time.Unix(0, endedAt)
		sb.Block.Closed = true
		out = append(out, sb)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (v *Vault) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	v.closed = true
	if err := v.db.Close(); err != nil {
		return fmt.Errorf("failed to close vault database: %w", err)
	}
	return nil
}
