package service

import (
	"context"
	"testing"
	"time"

	"halaqa-points-api/internal/model"
	"halaqa-points-api/internal/repository"
	"halaqa-points-api/internal/store"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*store.Store, *repository.MemoryLedgerRepository) {
	t.Helper()
	repo := repository.NewMemoryLedgerRepository()
	return newStoreOver(repo), repo
}

func newStoreOver(repo repository.LedgerRepository) *store.Store {
	return store.New(repo, nil, store.Config{MaxAttempts: 50, Backoff: time.Millisecond})
}

// seed stores a ledger record directly, bypassing the operations.
func seed(t *testing.T, repo *repository.MemoryLedgerRepository, rec model.LedgerRecord) {
	t.Helper()
	body, err := store.EncodeLedger(rec)
	require.NoError(t, err)
	repo.SetDocument(model.LedgerDocument{UserID: rec.UserID, Body: body, LifetimeTotal: rec.LifetimeTotal})
}

func mustGet(t *testing.T, s *store.Store, userID string) model.LedgerRecord {
	t.Helper()
	snap, err := s.Get(context.Background(), userID)
	require.NoError(t, err)
	return snap.Record
}
