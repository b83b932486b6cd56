package service

import (
	"context"
	"testing"
	"time"

	"halaqa-points-api/internal/cache"
	"halaqa-points-api/internal/model"
	"halaqa-points-api/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProfiles(t *testing.T) (*ProfileService, *repository.MemoryProfileRepository, *cache.MemoryCache) {
	t.Helper()
	repo := repository.NewMemoryProfileRepository()
	repo.Put(model.Profile{UserID: "u1", DisplayName: "Aisha", Role: model.RoleStudent}, "secret")
	repo.Put(model.Profile{UserID: "t1", Role: model.RoleTeacher}, "teach")
	c := cache.NewMemoryCache()
	t.Cleanup(func() { c.Close() })
	return NewProfileService(repo, c, time.Minute), repo, c
}

func TestProfileGet_Cached(t *testing.T) {
	svc, repo, c := newProfiles(t)
	ctx := context.Background()

	p, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Aisha", p.DisplayName)

	repo.Put(model.Profile{UserID: "u1", DisplayName: "Renamed", Role: model.RoleStudent}, "secret")
	p, err = svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Aisha", p.DisplayName, "served from cache")

	stats := c.Stats(ctx)
	assert.Equal(t, int64(1), stats.Hits)
}

func TestProfileGet_NotFound(t *testing.T) {
	svc, _, _ := newProfiles(t)
	_, err := svc.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDisplayName(t *testing.T) {
	svc, _, _ := newProfiles(t)
	ctx := context.Background()

	assert.Equal(t, "Aisha", svc.DisplayName(ctx, "u1"))
	assert.Equal(t, "t1", svc.DisplayName(ctx, "t1"))
	assert.Equal(t, "nobody", svc.DisplayName(ctx, "nobody"))
}

func TestAuthenticate(t *testing.T) {
	svc, _, _ := newProfiles(t)
	ctx := context.Background()

	p, err := svc.Authenticate(ctx, "t1", "teach")
	require.NoError(t, err)
	assert.Equal(t, model.RoleTeacher, p.Role)

	_, err = svc.Authenticate(ctx, "t1", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "nobody", "teach")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticate_RefreshesCachedProfile(t *testing.T) {
	svc, repo, _ := newProfiles(t)
	ctx := context.Background()

	assert.Equal(t, "Aisha", svc.DisplayName(ctx, "u1"))
	repo.Put(model.Profile{UserID: "u1", DisplayName: "Aisha B.", Role: model.RoleStudent}, "secret")
	assert.Equal(t, "Aisha", svc.DisplayName(ctx, "u1"), "still cached")

	_, err := svc.Authenticate(ctx, "u1", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, "Aisha", svc.DisplayName(ctx, "u1"), "failed logins keep the cache")

	_, err = svc.Authenticate(ctx, "u1", "secret")
	require.NoError(t, err)
	assert.Equal(t, "Aisha B.", svc.DisplayName(ctx, "u1"))
}
