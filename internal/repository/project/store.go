package project

import (
	"context"
	"errors"

	lru "github.com/hashicorp/golang-lru/v2"
)

var ErrNotFound = errors.New("project not found")

// Store defines persistence for projects and their task backlogs. Updates
// are last-write-wins; the core depends on nothing stronger.
type Store interface {
	Create(ctx context.Context, p *Project) error
	Get(ctx context.Context, id string) (*Project, error)
	Update(ctx context.Context, id string, apply func(*Project)) error
	CreateTask(ctx context.Context, t Task) (Task, error)
	ListTasks(ctx context.Context, projectID string) ([]Task, error)
}

// CachedStore wraps a Store with an LRU over hot project reads. Writes
// invalidate, never populate, so the cache can only serve what Get loaded.
type CachedStore struct {
	inner Store
	cache *lru.Cache[string, *Project]
}

func NewCachedStore(inner Store, size int) (*CachedStore, error) {
	if size <= 0 {
		size = 128
	}
	cache, err := lru.New[string, *Project](size)
	if err != nil {
		return nil, err
	}
	return &CachedStore{inner: inner, cache: cache}, nil
}

func (s *CachedStore) Create(ctx context.Context, p *Project) error {
	return s.inner.Create(ctx, p)
}

func (s *CachedStore) Get(ctx context.Context, id string) (*Project, error) {
	if p, ok := s.cache.Get(id); ok {
		return p, nil
	}
	p, err := s.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Add(id, p)
	return p, nil
}

func (s *CachedStore) Update(ctx context.Context, id string, apply func(*Project)) error {
	s.cache.Remove(id)
	return s.inner.Update(ctx, id, apply)
}

func (s *CachedStore) CreateTask(ctx context.Context, t Task) (Task, error) {
	return s.inner.CreateTask(ctx, t)
}

func (s *CachedStore) ListTasks(ctx context.Context, projectID string) ([]Task, error) {
	return s.inner.ListTasks(ctx, projectID)
}
