package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/openobserve/swisspipe-engine/pkg/model"
	"github.com/openobserve/swisspipe-engine/pkg/store"
)

// GetWorkflow loads a read-only Workflow definition (spec §3).
func (s *Store) GetWorkflow(ctx context.Context, id string) (*model.Workflow, error) {
	row := s.db.QueryRowContext(ctx, `SELECT definition, start_node_id FROM workflows WHERE id = ?`, id)
	var defJSON []byte
	var startNodeID string
	if err := row.Scan(&defJSON, &startNodeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	var wf model.Workflow
	if err := json.Unmarshal(defJSON, &wf); err != nil {
		return nil, err
	}
	wf.ID = id
	wf.StartNodeID = startNodeID
	return &wf, nil
}

// PutWorkflow is the (out-of-core-scope, but needed for tests/CLI) writer
// counterpart to GetWorkflow; production workflow CRUD lives in the REST
// layer named out-of-scope in spec §1.
func (s *Store) PutWorkflow(ctx context.Context, wf *model.Workflow) error {
	defJSON, err := json.Marshal(wf)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO workflows (id, definition, start_node_id) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET definition = excluded.definition, start_node_id = excluded.start_node_id
`, wf.ID, defJSON, wf.StartNodeID)
	return err
}
