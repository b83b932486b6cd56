package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"halaqa-points-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ledgerRepositories(t *testing.T) map[string]LedgerRepository {
	t.Helper()

	sqliteRepo, err := NewSQLiteLedgerRepository(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqliteRepo.Close() })

	return map[string]LedgerRepository{
		"memory": NewMemoryLedgerRepository(),
		"sqlite": sqliteRepo,
	}
}

func document(userID string, lifetime int64) model.LedgerDocument {
	return model.LedgerDocument{
		UserID:        userID,
		Body:          []byte(fmt.Sprintf(`{"balance":%d,"lifetime_total":%d}`, lifetime, lifetime)),
		LifetimeTotal: lifetime,
		UpdatedAt:     time.Now().UTC(),
	}
}

func TestLedgerRepository_VersionedCommit(t *testing.T) {
	for name, repo := range ledgerRepositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := repo.GetDocument(ctx, "u1")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, repo.CommitDocument(ctx, document("u1", 10), 0))
			assert.ErrorIs(t, repo.CommitDocument(ctx, document("u1", 99), 0), ErrVersionConflict)

			doc, err := repo.GetDocument(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, int64(1), doc.Version)
			assert.JSONEq(t, `{"balance":10,"lifetime_total":10}`, string(doc.Body))

			require.NoError(t, repo.CommitDocument(ctx, document("u1", 20), 1))
			assert.ErrorIs(t, repo.CommitDocument(ctx, document("u1", 30), 1), ErrVersionConflict)

			doc, err = repo.GetDocument(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, int64(2), doc.Version)
			assert.Equal(t, int64(20), doc.LifetimeTotal)
		})
	}
}

func TestLedgerRepository_RedemptionsCommitWithDocument(t *testing.T) {
	for name, repo := range ledgerRepositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.CommitDocument(ctx, document("u1", 50), 0))

			r1 := model.RedemptionRecord{ID: "r1", UserID: "u1", RewardID: "voucher", Cost: 10, RedeemedBy: "t1", Timestamp: time.Now().UTC().Add(-time.Minute)}
			require.NoError(t, repo.CommitDocument(ctx, document("u1", 50), 1, r1))

			r2 := model.RedemptionRecord{ID: "r2", UserID: "u1", RewardID: "lost", Cost: 10, Timestamp: time.Now().UTC()}
			assert.ErrorIs(t, repo.CommitDocument(ctx, document("u1", 50), 1, r2), ErrVersionConflict)

			r3 := model.RedemptionRecord{ID: "r3", UserID: "u1", RewardID: "import", Cost: 5, Timestamp: time.Now().UTC()}
			require.NoError(t, repo.AppendRedemption(ctx, r3))

			records, err := repo.ListRedemptions(ctx, "u1", 10)
			require.NoError(t, err)
			require.Len(t, records, 2)
			assert.Equal(t, "r3", records[0].ID)
			assert.Equal(t, "r1", records[1].ID)
			assert.Equal(t, "t1", records[1].RedeemedBy)

			records, err = repo.ListRedemptions(ctx, "u1", 1)
			require.NoError(t, err)
			assert.Len(t, records, 1)

			records, err = repo.ListRedemptions(ctx, "nobody", 10)
			require.NoError(t, err)
			assert.Empty(t, records)
		})
	}
}

func TestLedgerRepository_TopAndScan(t *testing.T) {
	for name, repo := range ledgerRepositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, d := range []model.LedgerDocument{document("c", 30), document("a", 30), document("b", 90), document("d", 0)} {
				require.NoError(t, repo.CommitDocument(ctx, d, 0))
			}

			top, err := repo.TopByLifetime(ctx, 3)
			require.NoError(t, err)
			require.Len(t, top, 3)
			assert.Equal(t, []string{"b", "a", "c"}, []string{top[0].UserID, top[1].UserID, top[2].UserID})

			page, err := repo.ScanDocuments(ctx, "", 2)
			require.NoError(t, err)
			require.Len(t, page, 2)
			assert.Equal(t, "a", page[0].UserID)
			assert.Equal(t, "b", page[1].UserID)

			page, err = repo.ScanDocuments(ctx, "b", 10)
			require.NoError(t, err)
			require.Len(t, page, 2)
			assert.Equal(t, "c", page[0].UserID)

			stats, err := repo.GetStats(ctx)
			require.NoError(t, err)
			assert.NotEmpty(t, stats)
		})
	}
}
