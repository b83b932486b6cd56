package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"halaqa-points-api/internal/cache"
	"halaqa-points-api/internal/logger"
	"halaqa-points-api/internal/model"
	"halaqa-points-api/internal/repository"
)

const profileCacheKeyPrefix = "halaqa:profile:"

// ErrInvalidCredentials is returned when a user id and access key do not match.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ProfileService reads the user directory through a cache.
type ProfileService struct {
	repo  repository.ProfileRepository
	cache cache.Cache
	ttl   time.Duration
}

// NewProfileService creates a profile service. c may be nil to disable caching.
func NewProfileService(repo repository.ProfileRepository, c cache.Cache, ttl time.Duration) *ProfileService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ProfileService{repo: repo, cache: c, ttl: ttl}
}

// Get returns a profile, served from cache when possible.
func (s *ProfileService) Get(ctx context.Context, userID string) (*model.Profile, error) {
	load := func() ([]byte, error) {
		p, err := s.repo.GetProfile(ctx, userID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(p)
	}

	var (
		data []byte
		err  error
	)
	if s.cache != nil {
		data, err = s.cache.GetOrSet(ctx, profileCacheKeyPrefix+userID, s.ttl, load)
	} else {
		data, err = load()
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile %s: %w", userID, err)
	}

	var p model.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode profile %s: %w", userID, err)
	}
	return &p, nil
}

// DisplayName returns the user's display name, falling back to the user id.
func (s *ProfileService) DisplayName(ctx context.Context, userID string) string {
	p, err := s.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.Warn("[Profiles] Display name lookup for %s failed: %v", userID, err)
		}
		return userID
	}
	if p.DisplayName == "" {
		return userID
	}
	return p.DisplayName
}

// Authenticate checks an access key against the directory. A successful
// login drops the cached profile so renamed users show up under their
// current display name.
func (s *ProfileService) Authenticate(ctx context.Context, userID, accessKey string) (*model.Profile, error) {
	p, err := s.repo.ValidateAccessKey(ctx, userID, accessKey)
	if errors.Is(err, repository.ErrInvalidAccessKey) || errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to validate access key: %w", err)
	}
	s.Invalidate(ctx, userID)
	return p, nil
}

// Invalidate removes a cached profile.
func (s *ProfileService) Invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, profileCacheKeyPrefix+userID); err != nil {
		logger.Warn("[Profiles] Failed to invalidate cached profile %s: %v", userID, err)
	}
}
