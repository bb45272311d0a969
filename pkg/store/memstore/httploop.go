package memstore

import (
	"context"

	"github.com/openobserve/swisspipe-engine/pkg/model"
	"github.com/openobserve/swisspipe-engine/pkg/store"
)

func (s *Store) CreateLoop(ctx context.Context, l *model.HttpLoopState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == "" {
		l.ID = newID()
	}
	n := now()
	l.CreatedAt, l.UpdatedAt = n, n
	if l.LoopStartedAt == 0 {
		l.LoopStartedAt = n
	}
	cp := *l
	s.loops[l.ID] = &cp
	return nil
}

func (s *Store) GetLoop(ctx context.Context, id string) (*model.HttpLoopState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.loops[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *Store) UpdateLoop(ctx context.Context, l *model.HttpLoopState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.loops[l.ID]; !ok {
		return store.ErrNotFound
	}
	l.UpdatedAt = now()
	cp := *l
	s.loops[l.ID] = &cp
	return nil
}

func (s *Store) ListDueLoops(ctx context.Context, nowMicros int64) ([]*model.HttpLoopState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.HttpLoopState
	for _, l := range s.loops {
		if l.Status == model.LoopRunning && l.NextExecutionAt <= nowMicros {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) ListRunningLoops(ctx context.Context) ([]*model.HttpLoopState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.HttpLoopState
	for _, l := range s.loops {
		if l.Status == model.LoopRunning {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}
