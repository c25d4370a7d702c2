package repository

import (
	"context"
	"sync"

	"github.com/fazilcanakbas/havacilaregitim/internal/content"
)

// MemoryRepo is an in-memory repository used when no MongoDB is configured
// and in unit tests. The mutex makes the slug check part of the write, which
// gives it the same uniqueness guarantee as the Mongo index.
type MemoryRepo struct {
	desc   *content.Descriptor
	mu     sync.RWMutex
	store  map[string]*content.Resource
	bySlug map[string]string
}

func NewMemoryRepo(d *content.Descriptor) *MemoryRepo {
	return &MemoryRepo{
		desc:   d,
		store:  make(map[string]*content.Resource),
		bySlug: make(map[string]string),
	}
}

func (m *MemoryRepo) Insert(_ context.Context, r *content.Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bySlug[r.Slug]; ok {
		return ErrSlugTaken
	}
	m.store[r.ID] = r.Clone()
	m.bySlug[r.Slug] = r.ID
	return nil
}

func (m *MemoryRepo) Replace(_ context.Context, r *content.Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.store[r.ID]
	if !ok {
		return ErrNotFound
	}
	if owner, ok := m.bySlug[r.Slug]; ok && owner != r.ID {
		return ErrSlugTaken
	}
	delete(m.bySlug, old.Slug)
	m.store[r.ID] = r.Clone()
	m.bySlug[r.Slug] = r.ID
	return nil
}

func (m *MemoryRepo) Get(_ context.Context, id string) (*content.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.store[id]; ok {
		return r.Clone(), nil
	}
	return nil, ErrNotFound
}

func (m *MemoryRepo) GetBySlug(_ context.Context, slug string) (*content.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.bySlug[slug]; ok {
		return m.store[id].Clone(), nil
	}
	return nil, ErrNotFound
}

func (m *MemoryRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.store[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.bySlug, r.Slug)
	delete(m.store, id)
	return nil
}

func (m *MemoryRepo) SlugExists(_ context.Context, slug, excludeID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.bySlug[slug]
	return ok && id != excludeID, nil
}

func (m *MemoryRepo) List(_ context.Context, q content.Query) ([]*content.Resource, int64, error) {
	m.mu.RLock()
	out := make([]*content.Resource, 0, len(m.store))
	for _, r := range m.store {
		if matches(m.desc, r, q) {
			out = append(out, r.Clone())
		}
	}
	m.mu.RUnlock()
	sortRecent(m.desc, out)
	return page(out, q.Skip, q.Limit), int64(len(out)), nil
}
