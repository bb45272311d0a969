package memstore

import (
	"context"

	"github.com/openobserve/swisspipe-engine/pkg/model"
	"github.com/openobserve/swisspipe-engine/pkg/store"
)

// CreateHilTask mirrors pkg/store/sqlite/hil.go's dedup-on-NodeExecutionID
// contract under the in-memory map.
func (s *Store) CreateHilTask(ctx context.Context, t *model.HilTask) (bool, *model.HilTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.hilByExec[t.NodeExecutionID]; ok {
		cp := *existing
		return false, &cp, nil
	}
	if t.ID == "" {
		t.ID = newID()
	}
	n := now()
	t.CreatedAt, t.UpdatedAt = n, n
	if t.Status == "" {
		t.Status = model.HilPending
	}
	if t.TimeoutAction == "" {
		t.TimeoutAction = model.HilDenied
	}
	cp := *t
	s.hilByExec[t.NodeExecutionID] = &cp
	s.hilByID[t.ID] = &cp
	return true, t, nil
}

func (s *Store) GetHilTask(ctx context.Context, id string) (*model.HilTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.hilByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *Store) UpdateHilTask(ctx context.Context, t *model.HilTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hilByID[t.ID]; !ok {
		return store.ErrNotFound
	}
	t.UpdatedAt = now()
	cp := *t
	s.hilByID[t.ID] = &cp
	s.hilByExec[t.NodeExecutionID] = &cp
	return nil
}

func (s *Store) ListExpiredPending(ctx context.Context, nowMicros int64) ([]*model.HilTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.HilTask
	for _, t := range s.hilByID {
		if t.Status == model.HilPending && t.TimeoutAt != nil && *t.TimeoutAt < nowMicros {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}
