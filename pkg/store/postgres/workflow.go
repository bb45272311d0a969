package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/openobserve/swisspipe-engine/pkg/model"
	"github.com/openobserve/swisspipe-engine/pkg/store"
)

func (s *Store) GetWorkflow(ctx context.Context, id string) (*model.Workflow, error) {
	var defJSON []byte
	var startNodeID string
	err := s.pool.QueryRow(ctx, `SELECT definition, start_node_id FROM workflows WHERE id = $1`, id).Scan(&defJSON, &startNodeID)
	if errors.Is(err, pgx.ErrNoRows) {
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

// PutWorkflow upserts a workflow definition (CLI/test convenience).
func (s *Store) PutWorkflow(ctx context.Context, wf *model.Workflow) error {
	defJSON, err := json.Marshal(wf)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO workflows (id, definition, start_node_id) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET definition = EXCLUDED.definition, start_node_id = EXCLUDED.start_node_id
`, wf.ID, defJSON, wf.StartNodeID)
	return err
}
