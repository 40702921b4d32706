package account

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRepo struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]User
	byEmail map[string]uuid.UUID
}

func NewMemoryRepository() UserRepository {
	return &memoryRepo{
		byID:    make(map[uuid.UUID]User),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (r *memoryRepo) Create(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[u.Email]; ok {
		return ErrEmailTaken
	}
	u.ID = uuid.New()
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	r.byID[u.ID] = *u
	r.byEmail[u.Email] = u.ID
	return nil
}

func (r *memoryRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	u := r.byID[id]
	return &u, nil
}

func (r *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}
