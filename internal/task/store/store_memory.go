package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"fitgate/internal/task/models"
	id "fitgate/pkg/domain"
	"fitgate/pkg/platform/sentinel"
	psync "fitgate/pkg/platform/sync"
)

const DefaultListLimit = 50

// InMemoryStore keeps tasks per tenant. Transitions on one task serialize on
// that task's shard lock; different tasks rarely contend.
//
// Error contract: lookups return sentinel.ErrNotFound, including for a task
// of another tenant; Transition propagates the mutator's error untouched.
type InMemoryStore struct {
	mu    sync.RWMutex
	tasks map[id.TenantID]map[id.TaskID]*models.Task
	locks *psync.ShardedMutex
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		tasks: make(map[id.TenantID]map[id.TaskID]*models.Task),
		locks: psync.NewShardedMutex(0),
	}
}

func (s *InMemoryStore) Create(_ context.Context, t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID := s.tasks[t.TenantID]
	if byID == nil {
		byID = make(map[id.TaskID]*models.Task)
		s.tasks[t.TenantID] = byID
	}
	if _, exists := byID[t.ID]; exists {
		return fmt.Errorf("task %s: %w", t.ID, sentinel.ErrConflict)
	}
	byID[t.ID] = t.Clone()
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, tenantID id.TenantID, taskID id.TaskID) (*models.Task, error) {
	key := lockKey(tenantID, taskID)
	s.locks.RLock(key)
	defer s.locks.RUnlock(key)
	t, err := s.find(tenantID, taskID)
	if err != nil {
		return nil, err
	}
	return t.Clone(), nil
}

// List returns the tenant's tasks newest first.
func (s *InMemoryStore) List(_ context.Context, tenantID id.TenantID, f models.Filter) ([]*models.Task, error) {
	s.mu.RLock()
	all := make([]*models.Task, 0, len(s.tasks[tenantID]))
	for _, t := range s.tasks[tenantID] {
		all = append(all, t)
	}
	s.mu.RUnlock()

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	out := make([]*models.Task, 0, min(limit, len(all)))
	for _, t := range all {
		key := lockKey(tenantID, t.ID)
		s.locks.RLock(key)
		if f.Status == "" || t.Status == f.Status {
			out = append(out, t.Clone())
		}
		s.locks.RUnlock(key)
	}
	slices.SortFunc(out, func(a, b *models.Task) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return compareIDs(a.ID, b.ID)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListByStatus returns every tenant's tasks in status, oldest first.
func (s *InMemoryStore) ListByStatus(_ context.Context, status models.Status) ([]*models.Task, error) {
	s.mu.RLock()
	var all []*models.Task
	for _, byID := range s.tasks {
		for _, t := range byID {
			all = append(all, t)
		}
	}
	s.mu.RUnlock()

	var out []*models.Task
	for _, t := range all {
		key := lockKey(t.TenantID, t.ID)
		s.locks.RLock(key)
		if t.Status == status {
			out = append(out, t.Clone())
		}
		s.locks.RUnlock(key)
	}
	slices.SortFunc(out, func(a, b *models.Task) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return compareIDs(a.ID, b.ID)
	})
	return out, nil
}

// Transition applies fn to a copy of the task under the task's lock and
// stores the result only when fn succeeds. Concurrent transitions on the
// same task are serialized, so the first one recorded wins and later ones
// see its outcome.
func (s *InMemoryStore) Transition(_ context.Context, tenantID id.TenantID, taskID id.TaskID, fn func(*models.Task) error) (*models.Task, error) {
	key := lockKey(tenantID, taskID)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	current, err := s.find(tenantID, taskID)
	if err != nil {
		return nil, err
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.tasks[tenantID][taskID] = next
	s.mu.Unlock()
	return next.Clone(), nil
}

func (s *InMemoryStore) find(tenantID id.TenantID, taskID id.TaskID) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[tenantID][taskID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return t, nil
}

func lockKey(tenantID id.TenantID, taskID id.TaskID) string {
	return psync.Key(tenantID.String(), taskID.String())
}

func compareIDs(a, b id.TaskID) int {
	return slices.Compare(a[:], b[:])
}
