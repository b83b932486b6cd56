package service

import (
	"testing"

	"halaqa-points-api/internal/model"
	"halaqa-points-api/internal/store"

	"github.com/stretchr/testify/assert"
)

func TestDecideDebitAndGrant(t *testing.T) {
	existing := func(balance int64, inv ...model.ItemID) store.Snapshot {
		return store.Snapshot{Exists: true, Version: 1, Record: model.LedgerRecord{UserID: "u1", Balance: balance, LifetimeTotal: 500, Inventory: inv}}
	}

	tests := []struct {
		name    string
		cur     store.Snapshot
		cost    int64
		item    model.ItemID
		wantErr error
		balance int64
	}{
		{"missing record", store.Snapshot{}, 10, "frame_gold", ErrNotFound, 0},
		{"already owned beats insufficient funds", existing(5, "frame_gold"), 60, "frame_gold", ErrAlreadyOwned, 5},
		{"insufficient funds", existing(40), 50, "badge_star", ErrInsufficientFunds, 40},
		{"exact balance", existing(60), 60, "frame_gold", nil, 0},
		{"success", existing(100), 60, "frame_gold", nil, 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := decideDebitAndGrant(tt.cur, tt.cost, tt.item)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.balance, next.Balance)
			if tt.wantErr == nil {
				assert.True(t, next.Owns(tt.item))
				assert.Equal(t, int64(500), next.LifetimeTotal)
			}
		})
	}
}

func TestDecideDebitAndGrant_DoesNotMutateInput(t *testing.T) {
	cur := store.Snapshot{Exists: true, Record: model.LedgerRecord{Balance: 100, Inventory: make([]model.ItemID, 0, 4)}}

	_, err := decideDebitAndGrant(cur, 10, "a")
	assert.NoError(t, err)
	assert.Empty(t, cur.Record.Inventory)
	assert.Equal(t, int64(100), cur.Record.Balance)
}

func TestDecideRedeem(t *testing.T) {
	cur := store.Snapshot{Exists: true, Record: model.LedgerRecord{Balance: 30, LifetimeTotal: 90, Inventory: []model.ItemID{"a"}}}

	next, err := decideRedeem(cur, 30)
	assert.NoError(t, err)
	assert.Zero(t, next.Balance)
	assert.Equal(t, int64(90), next.LifetimeTotal)
	assert.Equal(t, []model.ItemID{"a"}, next.Inventory)

	_, err = decideRedeem(cur, 31)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = decideRedeem(store.Snapshot{}, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}
