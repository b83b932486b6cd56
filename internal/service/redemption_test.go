package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"halaqa-points-api/internal/model"
	"halaqa-points-api/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedeem(t *testing.T) {
	s, repo := newTestStore(t)
	seed(t, repo, model.LedgerRecord{UserID: "u1", Balance: 50, LifetimeTotal: 200, Inventory: []model.ItemID{"a"}})
	svc := NewRedemptionService(s)
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	audit, rec, err := svc.Redeem(context.Background(), RedeemRequest{UserID: "u1", RewardID: "book_voucher", Cost: 30, RedeemedBy: "Ustadh Ali"})
	require.NoError(t, err)

	assert.NotEmpty(t, audit.ID)
	assert.Equal(t, "book_voucher", audit.RewardID)
	assert.Equal(t, int64(30), audit.Cost)
	assert.Equal(t, "Ustadh Ali", audit.RedeemedBy)
	assert.Equal(t, fixed, audit.Timestamp)

	assert.Equal(t, int64(20), rec.Balance)
	assert.Equal(t, int64(200), rec.LifetimeTotal)
	assert.Equal(t, []model.ItemID{"a"}, rec.Inventory)

	history, err := svc.History(context.Background(), "u1", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, audit.ID, history[0].ID)
}

func TestRedeem_InsufficientFundsWritesNothing(t *testing.T) {
	s, repo := newTestStore(t)
	seed(t, repo, model.LedgerRecord{UserID: "u1", Balance: 10, LifetimeTotal: 10})
	svc := NewRedemptionService(s)

	_, _, err := svc.Redeem(context.Background(), RedeemRequest{UserID: "u1", RewardID: "trip", Cost: 11})
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	assert.Equal(t, int64(10), mustGet(t, s, "u1").Balance)
	history, err := svc.History(context.Background(), "u1", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRedeem_ObservedBalancePrecheck(t *testing.T) {
	s, repo := newTestStore(t)
	seed(t, repo, model.LedgerRecord{UserID: "u1", Balance: 100})
	svc := NewRedemptionService(s)

	observed := int64(5)
	_, _, err := svc.Redeem(context.Background(), RedeemRequest{UserID: "u1", RewardID: "trip", Cost: 20, ObservedBalance: &observed})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, int64(100), mustGet(t, s, "u1").Balance)

	observed = 500
	_, rec, err := svc.Redeem(context.Background(), RedeemRequest{UserID: "u1", RewardID: "trip", Cost: 20, ObservedBalance: &observed})
	require.NoError(t, err)
	assert.Equal(t, int64(80), rec.Balance)
}

func TestRedeem_Validation(t *testing.T) {
	s, _ := newTestStore(t)
	svc := NewRedemptionService(s)
	ctx := context.Background()

	_, _, err := svc.Redeem(ctx, RedeemRequest{RewardID: "x", Cost: 1})
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, _, err = svc.Redeem(ctx, RedeemRequest{UserID: "u1", RewardID: "x", Cost: 0})
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, _, err = svc.Redeem(ctx, RedeemRequest{UserID: "u1", Cost: 1})
	assert.ErrorIs(t, err, ErrInvalidItem)
	_, _, err = svc.Redeem(ctx, RedeemRequest{UserID: "ghost", RewardID: "x", Cost: 1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedeem_ConcurrentRedemptionsNeverOverdraw(t *testing.T) {
	s, repo := newTestStore(t)
	seed(t, repo, model.LedgerRecord{UserID: "u1", Balance: 100, LifetimeTotal: 100})
	svc := NewRedemptionService(s)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.Redeem(context.Background(), RedeemRequest{UserID: "u1", RewardID: "snack", Cost: 30})
			if err != nil {
				assert.ErrorIs(t, err, ErrInsufficientFunds)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), mustGet(t, s, "u1").Balance)
	history, err := svc.History(context.Background(), "u1", 100)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

type failingCommitRepo struct {
	*repository.MemoryLedgerRepository
}

func (r *failingCommitRepo) CommitDocument(ctx context.Context, doc model.LedgerDocument, expectedVersion int64, redemptions ...model.RedemptionRecord) error {
	return errors.New("disk full")
}

func TestRedeem_StoreFailureLeavesNoAuditRecord(t *testing.T) {
	repo := &failingCommitRepo{MemoryLedgerRepository: repository.NewMemoryLedgerRepository()}
	seed(t, repo.MemoryLedgerRepository, model.LedgerRecord{UserID: "u1", Balance: 100})
	svc := NewRedemptionService(newStoreOver(repo))

	_, _, err := svc.Redeem(context.Background(), RedeemRequest{UserID: "u1", RewardID: "trip", Cost: 20})
	assert.ErrorIs(t, err, ErrTransientStoreFailure)

	history, err := svc.History(context.Background(), "u1", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRecord(t *testing.T) {
	s, repo := newTestStore(t)
	seed(t, repo, model.LedgerRecord{UserID: "u1", Balance: 40})
	svc := NewRedemptionService(s)

	rec, err := svc.Record(context.Background(), model.RedemptionRecord{UserID: "u1", RewardID: "prize_day", Cost: 25, RedeemedBy: "import"})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.Timestamp.IsZero())

	assert.Equal(t, int64(40), mustGet(t, s, "u1").Balance, "recording does not debit")

	history, err := svc.History(context.Background(), "u1", 5)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "prize_day", history[0].RewardID)

	_, err = svc.Record(context.Background(), model.RedemptionRecord{UserID: "u1", RewardID: "x"})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestHistory_NewestFirstWithLimit(t *testing.T) {
	s, repo := newTestStore(t)
	seed(t, repo, model.LedgerRecord{UserID: "u1", Balance: 100})
	seed(t, repo, model.LedgerRecord{UserID: "u2", Balance: 100})
	svc := NewRedemptionService(s)
	ctx := context.Background()

	for _, reward := range []string{"r1", "r2", "r3"} {
		_, _, err := svc.Redeem(ctx, RedeemRequest{UserID: "u1", RewardID: reward, Cost: 1})
		require.NoError(t, err)
	}
	_, _, err := svc.Redeem(ctx, RedeemRequest{UserID: "u2", RewardID: "other", Cost: 1})
	require.NoError(t, err)

	history, err := svc.History(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "r3", history[0].RewardID)
	assert.Equal(t, "r2", history[1].RewardID)
}
