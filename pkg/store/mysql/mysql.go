// Package mysql is a MySQL/MariaDB implementation of store.Store, grounded
// on the teacher's graph/store/mysql.go: connection pooling via
// database/sql, JSON columns for semi-structured fields, and
// CREATE TABLE IF NOT EXISTS schema bootstrap.
//
// Unlike the SQLite backend, MySQL supports real row-level locking, so
// Claim uses SELECT ... FOR UPDATE SKIP LOCKED instead of a single
// process-wide mutex (spec §4.1's MySQL/PostgreSQL-class claim protocol).
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/openobserve/swisspipe-engine/pkg/store"
)

// Store is a MySQL-backed implementation of store.Store.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open connects to MySQL using dsn (e.g.
// "user:pass@tcp(localhost:3306)/swisspipe?parseTime=true") and bootstraps
// the schema.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	s := &Store{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS workflows (
			id VARCHAR(64) PRIMARY KEY,
			definition JSON NOT NULL,
			start_node_id VARCHAR(255) NOT NULL
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS workflow_executions (
			id VARCHAR(36) PRIMARY KEY,
			workflow_id VARCHAR(64) NOT NULL,
			status VARCHAR(32) NOT NULL,
			current_node_id VARCHAR(255) NOT NULL,
			input_data JSON NULL,
			output_data JSON NULL,
			error_message TEXT NULL,
			started_at BIGINT NULL,
			completed_at BIGINT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			INDEX idx_exec_status (status),
			INDEX idx_exec_workflow (workflow_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS execution_steps (
			id VARCHAR(36) PRIMARY KEY,
			execution_id VARCHAR(36) NOT NULL,
			node_id VARCHAR(255) NOT NULL,
			node_name VARCHAR(255) NOT NULL,
			status VARCHAR(32) NOT NULL,
			input_data JSON NULL,
			output_data JSON NULL,
			error_message TEXT NULL,
			started_at BIGINT NULL,
			completed_at BIGINT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			INDEX idx_step_execution (execution_id),
			INDEX idx_step_exec_node (execution_id, node_id),
			CONSTRAINT fk_step_execution FOREIGN KEY (execution_id)
				REFERENCES workflow_executions(id) ON DELETE CASCADE
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS job_queue (
			id VARCHAR(36) PRIMARY KEY,
			execution_id VARCHAR(36) NOT NULL,
			priority INT NOT NULL DEFAULT 0,
			scheduled_at BIGINT NOT NULL,
			claimed_at BIGINT NULL,
			claimed_by VARCHAR(255) NULL,
			max_retries INT NOT NULL,
			retry_count INT NOT NULL DEFAULT 0,
			status VARCHAR(32) NOT NULL,
			error_message TEXT NULL,
			payload JSON NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			INDEX idx_job_execution (execution_id),
			INDEX idx_job_claim_order (status, priority DESC, scheduled_at ASC)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS scheduled_delays (
			id VARCHAR(36) PRIMARY KEY,
			execution_id VARCHAR(36) NOT NULL,
			current_node_id VARCHAR(255) NOT NULL,
			next_node_id VARCHAR(255) NOT NULL,
			scheduled_at BIGINT NOT NULL,
			workflow_state JSON NULL,
			status VARCHAR(32) NOT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			INDEX idx_delay_execution (execution_id),
			INDEX idx_delay_due (status, scheduled_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS http_loop_states (
			id VARCHAR(36) PRIMARY KEY,
			execution_step_id VARCHAR(36) NOT NULL,
			current_iteration INT NOT NULL DEFAULT 0,
			max_iterations INT NULL,
			next_execution_at BIGINT NOT NULL,
			consecutive_failures INT NOT NULL DEFAULT 0,
			loop_started_at BIGINT NOT NULL,
			last_response_status INT NULL,
			last_response_body MEDIUMTEXT NULL,
			iteration_history JSON NULL,
			status VARCHAR(32) NOT NULL,
			termination_reason TEXT NULL,
			url TEXT NOT NULL,
			method VARCHAR(16) NOT NULL,
			timeout_seconds INT NOT NULL,
			headers JSON NULL,
			loop_config JSON NULL,
			initial_event JSON NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			INDEX idx_loop_due (status, next_execution_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS human_in_loop_tasks (
			id VARCHAR(36) PRIMARY KEY,
			execution_id VARCHAR(36) NOT NULL,
			workflow_id VARCHAR(64) NOT NULL,
			node_id VARCHAR(255) NOT NULL,
			node_execution_id VARCHAR(36) NOT NULL UNIQUE,
			title VARCHAR(255) NOT NULL,
			description TEXT NULL,
			status VARCHAR(32) NOT NULL,
			timeout_at BIGINT NULL,
			timeout_action VARCHAR(32) NOT NULL,
			required_fields JSON NULL,
			metadata JSON NULL,
			response_data JSON NULL,
			response_received_at BIGINT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			INDEX idx_hil_pending (status, timeout_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func nowMicros() int64 { return time.Now().UnixMicro() }
