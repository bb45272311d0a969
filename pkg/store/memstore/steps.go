package memstore

import (
	"context"

	"github.com/openobserve/swisspipe-engine/pkg/model"
	"github.com/openobserve/swisspipe-engine/pkg/store"
)

func (s *Store) CreateStep(ctx context.Context, st *model.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *st
	s.steps[st.ExecutionID] = append(s.steps[st.ExecutionID], &cp)
	return nil
}

func (s *Store) UpdateStep(ctx context.Context, st *model.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.steps[st.ExecutionID]
	for i, existing := range list {
		if existing.ID == st.ID {
			cp := *st
			list[i] = &cp
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) GetStepsByExecution(ctx context.Context, executionID string) ([]*model.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.steps[executionID]
	out := make([]*model.Step, len(list))
	for i, st := range list {
		cp := *st
		out[i] = &cp
	}
	return out, nil
}

func (s *Store) GetLatestStep(ctx context.Context, executionID, nodeID string) (*model.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.steps[executionID]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].NodeID == nodeID {
			cp := *list[i]
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}
