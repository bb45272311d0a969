package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/openobserve/swisspipe-engine/pkg/model"
	"github.com/openobserve/swisspipe-engine/pkg/store"
)

func (s *Store) GetWorkflow(ctx context.Context, id string) (*model.Workflow, error) {
	var defJSON []byte
	var startNodeID string
	err := s.db.QueryRowContext(ctx, `SELECT definition, start_node_id FROM workflows WHERE id = ?`, id).Scan(&defJSON, &startNodeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
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

// PutWorkflow upserts a workflow definition (CLI/test convenience; workflow
// authoring itself is out of core scope).
func (s *Store) PutWorkflow(ctx context.Context, wf *model.Workflow) error {
	defJSON, err := json.Marshal(wf)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO workflows (id, definition, start_node_id) VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE definition = VALUES(definition), start_node_id = VALUES(start_node_id)
`, wf.ID, defJSON, wf.StartNodeID)
	return err
}
