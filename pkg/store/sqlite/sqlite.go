// Package sqlite is a SQLite-backed implementation of store.Store. Grounded
// on the teacher's graph/store/sqlite.go: WAL mode, SetMaxOpenConns(1),
// busy_timeout, foreign_keys pragmas, and the upsert idiom, generalized
// from a single generic checkpoint table to the full relational schema of
// spec §3. Claim runs as a short serializable transaction (SELECT
// candidate → UPDATE → COMMIT), per spec §4.1's "backends without
// UPDATE...RETURNING row-level locking" branch.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// Store is a SQLite implementation of store.Store.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex // serializes claim transactions; SQLite allows one writer
	path string
}

// Open creates or attaches to a SQLite database at path ("./swisspipe.db"
// or ":memory:" for tests) and ensures the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: create tables: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS workflows (
	id TEXT PRIMARY KEY,
	definition TEXT NOT NULL,
	start_node_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS workflow_executions (
	id TEXT PRIMARY KEY,
	workflow_id TEXT NOT NULL,
	status TEXT NOT NULL,
	current_node_id TEXT NOT NULL DEFAULT '',
	input_data BLOB,
	output_data BLOB,
	error_message TEXT NOT NULL DEFAULT '',
	started_at INTEGER,
	completed_at INTEGER,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_executions_status ON workflow_executions(status);
CREATE INDEX IF NOT EXISTS idx_executions_workflow ON workflow_executions(workflow_id);

CREATE TABLE IF NOT EXISTS execution_steps (
	id TEXT PRIMARY KEY,
	execution_id TEXT NOT NULL REFERENCES workflow_executions(id) ON DELETE CASCADE,
	node_id TEXT NOT NULL,
	node_name TEXT NOT NULL,
	status TEXT NOT NULL,
	input_data BLOB,
	output_data BLOB,
	error_message TEXT NOT NULL DEFAULT '',
	started_at INTEGER,
	completed_at INTEGER,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_steps_execution ON execution_steps(execution_id, created_at);
CREATE INDEX IF NOT EXISTS idx_steps_execution_node ON execution_steps(execution_id, node_id, created_at);

CREATE TABLE IF NOT EXISTS job_queue (
	id TEXT PRIMARY KEY,
	execution_id TEXT NOT NULL REFERENCES workflow_executions(id) ON DELETE CASCADE,
	priority INTEGER NOT NULL DEFAULT 0,
	scheduled_at INTEGER NOT NULL,
	claimed_at INTEGER,
	claimed_by TEXT,
	max_retries INTEGER NOT NULL DEFAULT 0,
	retry_count INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'pending',
	error_message TEXT,
	payload BLOB,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_claim ON job_queue(status, priority DESC, scheduled_at ASC);
CREATE INDEX IF NOT EXISTS idx_jobs_execution ON job_queue(execution_id);

CREATE TABLE IF NOT EXISTS scheduled_delays (
	id TEXT PRIMARY KEY,
	execution_id TEXT NOT NULL REFERENCES workflow_executions(id) ON DELETE CASCADE,
	current_node_id TEXT NOT NULL,
	next_node_id TEXT NOT NULL,
	scheduled_at INTEGER NOT NULL,
	workflow_state BLOB,
	status TEXT NOT NULL DEFAULT 'pending',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_delays_pending ON scheduled_delays(status, scheduled_at);
CREATE INDEX IF NOT EXISTS idx_delays_execution ON scheduled_delays(execution_id);

CREATE TABLE IF NOT EXISTS http_loop_states (
	id TEXT PRIMARY KEY,
	execution_step_id TEXT NOT NULL,
	current_iteration INTEGER NOT NULL DEFAULT 0,
	max_iterations INTEGER,
	next_execution_at INTEGER NOT NULL,
	consecutive_failures INTEGER NOT NULL DEFAULT 0,
	loop_started_at INTEGER NOT NULL,
	last_response_status INTEGER,
	last_response_body TEXT,
	iteration_history TEXT,
	status TEXT NOT NULL DEFAULT 'running',
	termination_reason TEXT,
	url TEXT NOT NULL,
	method TEXT NOT NULL,
	timeout_seconds INTEGER NOT NULL,
	headers TEXT,
	loop_config TEXT,
	initial_event BLOB,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_loops_due ON http_loop_states(status, next_execution_at);

CREATE TABLE IF NOT EXISTS human_in_loop_tasks (
	id TEXT PRIMARY KEY,
	execution_id TEXT NOT NULL REFERENCES workflow_executions(id) ON DELETE CASCADE,
	workflow_id TEXT NOT NULL,
	node_id TEXT NOT NULL,
	node_execution_id TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	description TEXT,
	status TEXT NOT NULL DEFAULT 'pending',
	timeout_at INTEGER,
	timeout_action TEXT NOT NULL DEFAULT 'denied',
	required_fields TEXT,
	metadata TEXT,
	response_data TEXT,
	response_received_at INTEGER,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_hil_pending ON human_in_loop_tasks(status, timeout_at);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}
