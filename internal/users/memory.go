package users

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fazilcanakbas/havacilaregitim/internal/models"
)

// MemoryUserRepository keeps users in a map; used without MongoDB and in tests.
type MemoryUserRepository struct {
	mu   sync.RWMutex
	byID map[string]*models.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{byID: map[string]*models.User{}}
}

func (r *MemoryUserRepository) Create(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrEmailTaken
		}
	}
	cp := *u
	r.byID[u.ID] = &cp
	return nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.byID {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if u, ok := r.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r *MemoryUserRepository) UpsertBySub(_ context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	for _, existing := range r.byID {
		if existing.Sub == u.Sub {
			existing.Email = u.Email
			existing.Name = u.Name
			existing.UpdatedAt = now
			cp := *existing
			return &cp, nil
		}
	}
	cp := *u
	cp.Role = models.RoleAdmin
	cp.CreatedAt = now
	cp.UpdatedAt = now
	r.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *MemoryUserRepository) TouchLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		u.LastLoginAt = &at
	}
	return nil
}
