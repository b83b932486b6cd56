package repository

import (
	"context"
	"crypto/subtle"
	"sync"

	"halaqa-points-api/internal/model"
)

// MemoryProfileRepository is an in-memory ProfileRepository for development and tests.
type MemoryProfileRepository struct {
	mu       sync.RWMutex
	profiles map[string]model.Profile
	keys     map[string]string
}

// NewMemoryProfileRepository creates an empty in-memory profile directory.
func NewMemoryProfileRepository() *MemoryProfileRepository {
	return &MemoryProfileRepository{
		profiles: make(map[string]model.Profile),
		keys:     make(map[string]string),
	}
}

// Put adds or replaces a profile and its access key.
func (r *MemoryProfileRepository) Put(p model.Profile, accessKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.UserID] = p
	r.keys[p.UserID] = accessKey
}

// GetProfile finds a profile by user id.
func (r *MemoryProfileRepository) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// ValidateAccessKey checks the access key of a profile.
func (r *MemoryProfileRepository) ValidateAccessKey(ctx context.Context, userID, accessKey string) (*model.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[userID]
	stored := r.keys[userID]
	if !ok || stored == "" || subtle.ConstantTimeCompare([]byte(stored), []byte(accessKey)) != 1 {
		return nil, ErrInvalidAccessKey
	}
	return &p, nil
}

// Ensure MemoryProfileRepository implements ProfileRepository
var _ ProfileRepository = (*MemoryProfileRepository)(nil)
