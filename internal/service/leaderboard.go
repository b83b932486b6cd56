package service

import (
	"context"
	"time"

	"halaqa-points-api/internal/model"
	"halaqa-points-api/internal/store"
)

// DefaultLeaderboardSize is the number of ranked users shown.
const DefaultLeaderboardSize = 5

// NameResolver maps user ids to display names.
type NameResolver interface {
	DisplayName(ctx context.Context, userID string) string
}

// Leaderboard is the top-N read model ordered by lifetime total.
type Leaderboard struct {
	store Store
	names NameResolver
	size  int
}

// NewLeaderboard creates a leaderboard of size entries. names may be nil, in
// which case user ids are shown.
func NewLeaderboard(s Store, names NameResolver, size int) *Leaderboard {
	if size <= 0 {
		size = DefaultLeaderboardSize
	}
	return &Leaderboard{store: s, names: names, size: size}
}

// Size returns the configured number of entries.
func (l *Leaderboard) Size() int {
	return l.size
}

// Top reads the current ranking once.
func (l *Leaderboard) Top(ctx context.Context) ([]model.LeaderboardEntry, error) {
	snaps, err := l.store.Top(ctx, l.size)
	if err != nil {
		return nil, storeError(err)
	}
	return l.entries(ctx, snaps), nil
}

// Watch calls fn with the ranking now and after every change to the
// collection, until the returned func is called. onError is called once if
// the subscription fails.
func (l *Leaderboard) Watch(fn func([]model.LeaderboardEntry), onError func(error)) func() {
	return l.store.SubscribeQuery(l.size, func(snaps []store.Snapshot) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		fn(l.entries(ctx, snaps))
	}, func(err error) {
		if onError != nil {
			onError(storeError(err))
		}
	})
}

// entries drops users with no lifetime points and ranks by position.
func (l *Leaderboard) entries(ctx context.Context, snaps []store.Snapshot) []model.LeaderboardEntry {
	out := make([]model.LeaderboardEntry, 0, len(snaps))
	for _, snap := range snaps {
		rec := snap.Record
		if rec.LifetimeTotal <= 0 {
			continue
		}
		name := rec.UserID
		if l.names != nil {
			name = l.names.DisplayName(ctx, rec.UserID)
		}
		out = append(out, model.LeaderboardEntry{
			Rank:          len(out) + 1,
			UserID:        rec.UserID,
			DisplayName:   name,
			LifetimeTotal: rec.LifetimeTotal,
			CosmeticRefs:  rec.Equipped,
		})
	}
	return out
}
