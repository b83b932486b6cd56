package service

import (
	"context"
	"errors"

	"halaqa-points-api/internal/logger"
	"halaqa-points-api/internal/model"
	"halaqa-points-api/internal/store"
)

// MaxCreditAmount is the largest award a single Credit accepts.
const MaxCreditAmount = 100000

// LedgerService implements the three ledger mutations. No other code path
// writes balance, lifetime total or inventory.
type LedgerService struct {
	store Store
}

// NewLedgerService creates a new ledger service.
func NewLedgerService(s Store) *LedgerService {
	return &LedgerService{store: s}
}

// Get returns the stored record, or the zero state when none exists yet.
func (s *LedgerService) Get(ctx context.Context, userID string) (model.LedgerRecord, error) {
	if userID == "" {
		return model.LedgerRecord{}, ErrUnauthenticated
	}
	snap, err := s.store.Get(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return snap.Record, storeError(err)
	}
	return snap.Record, nil
}

// Credit adds amount to both balance and lifetime total in one atomic write,
// creating the record if needed. Repeated calls award repeatedly. Amounts
// outside 1..MaxCreditAmount, or that would overflow a counter, fail with
// ErrInvalidAmount and write nothing.
func (s *LedgerService) Credit(ctx context.Context, userID string, amount int64) (model.LedgerRecord, error) {
	if userID == "" {
		return model.LedgerRecord{}, ErrUnauthenticated
	}
	if amount <= 0 || amount > MaxCreditAmount {
		return model.LedgerRecord{}, ErrInvalidAmount
	}

	rec, err := s.store.Update(ctx, userID, store.FieldDeltas{Balance: amount, LifetimeTotal: amount})
	if err != nil {
		return rec, storeError(err)
	}
	logger.Info("[Ledger] Credited %d to %s (balance=%d, lifetime=%d)", amount, userID, rec.Balance, rec.LifetimeTotal)
	return rec, nil
}

// DebitAndGrant deducts cost and adds item to the inventory against the
// current stored state. Concurrent calls for the same user are serialized by
// the store's optimistic transaction, so an item is granted at most once and
// the balance never goes negative.
func (s *LedgerService) DebitAndGrant(ctx context.Context, userID string, cost int64, item model.ItemID) (model.LedgerRecord, error) {
	if userID == "" {
		return model.LedgerRecord{}, ErrUnauthenticated
	}
	if cost <= 0 {
		return model.LedgerRecord{}, ErrInvalidAmount
	}
	if item == "" {
		return model.LedgerRecord{}, ErrInvalidItem
	}

	rec, err := s.store.RunTransaction(ctx, userID, func(cur store.Snapshot) (store.TxResult, error) {
		next, err := decideDebitAndGrant(cur, cost, item)
		if err != nil {
			return store.TxResult{}, err
		}
		return store.TxResult{Record: next}, nil
	})
	if err != nil {
		logger.Debug("[Ledger] Spend of %d for %s by %s rejected: %v", cost, item, userID, err)
		return rec, storeError(err)
	}
	logger.Info("[Ledger] %s bought %s for %d (balance=%d)", userID, item, cost, rec.Balance)
	return rec, nil
}

// Equip assigns item to slot. Ownership is not checked.
func (s *LedgerService) Equip(ctx context.Context, userID string, slot model.Slot, item model.ItemID) (model.LedgerRecord, error) {
	if userID == "" {
		return model.LedgerRecord{}, ErrUnauthenticated
	}
	if !slot.Valid() {
		return model.LedgerRecord{}, ErrInvalidSlot
	}

	rec, err := s.store.Update(ctx, userID, store.FieldDeltas{Equip: map[model.Slot]model.ItemID{slot: item}})
	return rec, storeError(err)
}
