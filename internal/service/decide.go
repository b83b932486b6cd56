package service

import (
	"halaqa-points-api/internal/model"
	"halaqa-points-api/internal/store"
)

// decideDebitAndGrant is the pure decision behind DebitAndGrant.
// Checks run in order: record exists, item not owned, funds sufficient.
func decideDebitAndGrant(cur store.Snapshot, cost int64, item model.ItemID) (model.LedgerRecord, error) {
	if !cur.Exists {
		return cur.Record, ErrNotFound
	}
	if cur.Record.Owns(item) {
		return cur.Record, ErrAlreadyOwned
	}
	if cur.Record.Balance < cost {
		return cur.Record, ErrInsufficientFunds
	}

	next := cur.Record.Clone()
	next.Balance -= cost
	next.Inventory = append(next.Inventory, item)
	return next, nil
}

// decideRedeem debits a reward cost. Rewards leave inventory and the
// lifetime total untouched.
func decideRedeem(cur store.Snapshot, cost int64) (model.LedgerRecord, error) {
	if !cur.Exists {
		return cur.Record, ErrNotFound
	}
	if cur.Record.Balance < cost {
		return cur.Record, ErrInsufficientFunds
	}

	next := cur.Record.Clone()
	next.Balance -= cost
	return next, nil
}
