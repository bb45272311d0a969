package memstore

import (
	"context"
	"sort"

	"github.com/openobserve/swisspipe-engine/pkg/model"
	"github.com/openobserve/swisspipe-engine/pkg/store"
)

func (s *Store) CreateDelay(ctx context.Context, d *model.ScheduledDelay) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == "" {
		d.ID = newID()
	}
	n := now()
	d.CreatedAt, d.UpdatedAt = n, n
	if d.Status == "" {
		d.Status = model.DelayPending
	}
	cp := *d
	s.delays[d.ID] = &cp
	return nil
}

func (s *Store) GetDelay(ctx context.Context, id string) (*model.ScheduledDelay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.delays[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *Store) TriggerDelay(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.delays[id]
	if !ok || d.Status != model.DelayPending {
		return false, nil
	}
	d.Status = model.DelayTriggered
	d.UpdatedAt = now()
	return true, nil
}

func (s *Store) CancelDelay(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.delays[id]
	if !ok || d.Status != model.DelayPending {
		return false, nil
	}
	d.Status = model.DelayCancelled
	d.UpdatedAt = now()
	return true, nil
}

func (s *Store) CancelDelaysForExecution(ctx context.Context, executionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.delays {
		if d.ExecutionID == executionID && d.Status == model.DelayPending {
			d.Status = model.DelayCancelled
			d.UpdatedAt = now()
		}
	}
	return nil
}

func (s *Store) ListPendingDelays(ctx context.Context) ([]*model.ScheduledDelay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.ScheduledDelay
	for _, d := range s.delays {
		if d.Status == model.DelayPending {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt < out[j].ScheduledAt })
	return out, nil
}
